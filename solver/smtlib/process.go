package smtlib

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/internal/log"
	"github.com/cottand/sigil/internal/sexpr"
	"github.com/cottand/sigil/solver"
	"github.com/pkg/errors"
)

var logger = log.Section("solver")

var _ solver.Solver = (*Process)(nil)

// Process runs one solver process per query and talks SMT-LIB 2 to it
// over its standard input and output
type Process struct {
	Command string
	Args    []string
	// WaitDelay bounds how long a killed solver may hold on to its output
	WaitDelay time.Duration
}

// NewZ3 is a Process running z3 from PATH
func NewZ3() *Process {
	return &Process{Command: "z3", Args: []string{"-in", "-smt2"}, WaitDelay: time.Second}
}

type outcome struct {
	resp solver.Response
	err  error
}

// Check runs the solver on p. When ctx is done first, the solver is killed and
// ctx's error is returned.
func (p *Process) Check(ctx context.Context, problem solver.Problem) (solver.Response, error) {
	script, err := Encode(problem)
	if err != nil {
		return solver.Response{}, err
	}
	path, err := exec.LookPath(p.Command)
	if err != nil {
		return solver.Response{}, sigerr.New(sigerr.NewSolverUnavailable{Solver: p.Command, From: err})
	}

	cmd := exec.CommandContext(ctx, path, p.Args...)
	cmd.WaitDelay = p.WaitDelay
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return solver.Response{}, errors.Wrap(err, "opening solver input")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return solver.Response{}, errors.Wrap(err, "opening solver output")
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return solver.Response{}, sigerr.New(sigerr.NewSolverUnavailable{Solver: p.Command, From: err})
	}
	logger.Debug("started solver", "command", p.Command, "pid", cmd.Process.Pid)

	done := make(chan outcome, 1)
	go func() {
		resp, err := converse(stdin, sexpr.NewDecoder(stdout), script)
		_ = stdin.Close()
		waitErr := cmd.Wait()
		if err != nil && waitErr != nil && stderr.Len() > 0 {
			err = errors.Wrapf(err, "solver exited with %v: %s", waitErr, strings.TrimSpace(stderr.String()))
		}
		done <- outcome{resp, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() != nil {
			return solver.Response{}, errors.WithStack(ctx.Err())
		}
		return out.resp, out.err
	case <-ctx.Done():
		return solver.Response{}, errors.Wrap(ctx.Err(), "waiting for solver")
	}
}

func converse(w io.Writer, dec *sexpr.Decoder, script *Script) (solver.Response, error) {
	send := func(cmd string) error {
		_, err := io.WriteString(w, cmd)
		return errors.Wrap(err, "writing to solver")
	}
	reply := func() (sexpr.Node, error) {
		n, err := dec.Next()
		if err != nil {
			return n, errors.Wrap(err, "reading from solver")
		}
		return n, nil
	}

	if err := send(script.Text + "(check-sat)\n"); err != nil {
		return solver.Response{}, err
	}
	n, err := reply()
	if err != nil {
		return solver.Response{}, err
	}
	verdict, err := ParseVerdict(n)
	if err != nil {
		return solver.Response{}, err
	}
	resp := solver.Response{Verdict: verdict}
	switch verdict {
	case solver.Sat:
		if err := send("(get-model)\n"); err != nil {
			return solver.Response{}, err
		}
		if n, err = reply(); err != nil {
			return solver.Response{}, err
		}
		if resp.Model, err = ParseModel(n, script.Constants); err != nil {
			return solver.Response{}, err
		}
	case solver.Unknown:
		if err := send("(get-info :reason-unknown)\n"); err != nil {
			return solver.Response{}, err
		}
		// (:reason-unknown "timeout")
		if n, err = reply(); err == nil && n.Kind == sexpr.List && len(n.Items) == 2 {
			resp.Reason = n.Items[1].Atom
		}
	}
	_ = send("(exit)\n")
	return resp, nil
}
