package smtlib

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/cottand/sigil/axiom"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fake answers every (check-sat) with reply, and every (get-model) with model
func fake(t *testing.T, reply, model string) *Process {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell to run a fake solver with")
	}
	script := `while IFS= read -r line; do
  case "$line" in
    "(check-sat)") echo '` + reply + `' ;;
    "(get-model)") echo '` + model + `' ;;
    "(get-info :reason-unknown)") echo '(:reason-unknown "incomplete quantifiers")' ;;
    "(exit)") exit 0 ;;
  esac
done`
	return &Process{Command: "sh", Args: []string{"-c", script}, WaitDelay: time.Second}
}

func disequality() solver.Problem {
	a, b := &axiom.Var{Name: "a", T: g}, &axiom.Var{Name: "b", T: g}
	return solver.Problem{
		Goal:      axiom.Not(axiom.Eq(a, b)),
		Constants: []*axiom.Var{a, b},
	}
}

func TestProcessSat(t *testing.T) {
	p := fake(t, "sat", `((define-fun a () |G| |G!val!0|) (define-fun |b| () |G| |G!val!1|))`)

	resp, err := p.Check(context.Background(), disequality())
	require.NoError(t, err)
	assert.Equal(t, solver.Sat, resp.Verdict)
	assert.Equal(t, map[string]string{"a": "G!val!0", "b": "G!val!1"}, resp.Model)
}

func TestProcessUnsatAndUnknown(t *testing.T) {
	resp, err := fake(t, "unsat", "").Check(context.Background(), disequality())
	require.NoError(t, err)
	assert.Equal(t, solver.Unsat, resp.Verdict)

	resp, err = fake(t, "unknown", "").Check(context.Background(), disequality())
	require.NoError(t, err)
	assert.Equal(t, solver.Unknown, resp.Verdict)
	assert.Equal(t, "incomplete quantifiers", resp.Reason)
}

func TestProcessErrors(t *testing.T) {
	_, err := fake(t, `(error "line 4 column 1: invalid command")`, "").Check(context.Background(), disequality())
	assert.Equal(t, sigerr.SolverProtocol, sigerr.CodeOf(err))

	missing := &Process{Command: "sigil-test-no-such-solver"}
	_, err = missing.Check(context.Background(), disequality())
	assert.Equal(t, sigerr.SolverUnavailable, sigerr.CodeOf(err))
}

func TestProcessTimeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell to run a fake solver with")
	}
	slow := &Process{Command: "sh", Args: []string{"-c", "exec sleep 30"}, WaitDelay: 100 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := slow.Check(ctx, disequality())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestZ3(t *testing.T) {
	z3 := NewZ3()
	if _, err := exec.LookPath(z3.Command); err != nil {
		t.Skip("z3 is not installed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, b := &axiom.Var{Name: "a", T: g}, &axiom.Var{Name: "b", T: g}
	resp, err := z3.Check(ctx, solver.Problem{
		Assumptions: []axiom.Formula{commutativity()},
		Goal:        axiom.Not(commutes(a, b)),
		Constants:   []*axiom.Var{a, b},
	})
	require.NoError(t, err)
	assert.Equal(t, solver.Unsat, resp.Verdict)

	resp, err = z3.Check(ctx, disequality())
	require.NoError(t, err)
	assert.Equal(t, solver.Sat, resp.Verdict)
	assert.NotEqual(t, resp.Model["a"], resp.Model["b"])
}
