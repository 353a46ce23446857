package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cottand/sigil/evaluator"
	"github.com/cottand/sigil/internal/log"
	"github.com/cottand/sigil/sigil"
	"github.com/cottand/sigil/solver/smtlib"
	"github.com/cottand/sigil/verify"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var CheckCmd = &cobra.Command{
	Use:          "check theory.yaml...",
	Short:        "Check the assertions of theory files",
	RunE:         runCheck,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

var (
	checkTimeout    *time.Duration
	checkSolver     *string
	checkSolverArgs *[]string
	checkWorkers    *int
	checkCacheDB    *string
	checkLogLevel   *int
	checkSections   *[]string
)

func init() {
	flags := CheckCmd.Flags()
	checkTimeout = flags.DurationP("timeout", "t", verify.DefaultTimeout, "time limit of every solver query")
	checkSolver = flags.String("solver", "z3", "SMT-LIB 2 solver executable")
	checkSolverArgs = flags.StringArray("solver-arg", []string{"-in", "-smt2"}, "arguments of the solver, which must read commands from stdin")
	checkWorkers = flags.IntP("workers", "w", 0, "assertions checked concurrently (0 for one per CPU)")
	checkCacheDB = flags.String("cache-db", "", "SQLite database to keep results in across runs")
	checkLogLevel = flags.IntP("log-level", "l", int(slog.LevelError), "log level")
	checkSections = flags.StringSlice("log-section", nil, "sections (types, axiom, verify, solver, theory) logged below the warning level")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*checkLogLevel))
	log.EnableSections(*checkSections...)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runID := uuid.New()
	logger := log.Section("verify").With("run", runID.String())

	engine, closeEngine, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()

	out := cmd.OutOrStdout()
	p := printer{w: out, color: isTerminal(out)}
	var total verify.Summary
	loadFailed := false
	unexpected := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("could not read theory: %w", err)
		}
		th, err := sigil.Load(path, data)
		if th == nil {
			return err
		}
		if err != nil {
			loadFailed = true
			for _, line := range strings.Split(err.Error(), "\n") {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), line)
			}
		}

		logger.Info("checking theory", "path", path, "assertions", len(th.Assertions))
		reports, summary := th.Check(ctx, engine)
		p.header(path)
		for _, r := range reports {
			p.report(r)
			if r.Unexpected() || (r.Assertion.Expect == 0 && !r.Outcome.OK()) {
				unexpected++
			}
		}
		total = total.Add(summary)
	}

	_, _ = fmt.Fprintf(out, "\n%s (run %s)\n", total, runID)
	switch {
	case loadFailed:
		return fmt.Errorf("theories contain invalid declarations")
	case unexpected > 0:
		return fmt.Errorf("%d of %d assertions did not hold", unexpected, total.Total)
	}
	return nil
}

func newEngine(ctx context.Context) (*verify.Engine, func(), error) {
	ev, err := evaluator.New()
	if err != nil {
		return nil, nil, fmt.Errorf("could not start the evaluator: %w", err)
	}
	process := smtlib.NewZ3()
	process.Command = *checkSolver
	process.Args = *checkSolverArgs

	engine := verify.NewEngine(process, ev)
	engine.Timeout = *checkTimeout
	if *checkWorkers > 0 {
		engine.Workers = *checkWorkers
	}
	if *checkCacheDB == "" {
		return engine, func() {}, nil
	}
	cache, err := verify.OpenSQLiteCache(ctx, *checkCacheDB)
	if err != nil {
		return nil, nil, err
	}
	engine.Cache = cache
	return engine, func() { _ = cache.Close() }, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBold   = "\x1b[1m"
)

type printer struct {
	w     io.Writer
	color bool
}

func (p printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

func (p printer) header(path string) {
	_, _ = fmt.Fprintln(p.w, p.paint(ansiBold, path))
}

func (p printer) report(r sigil.Report) {
	var status string
	switch r.Outcome {
	case verify.Passed, verify.Verified:
		status = p.paint(ansiGreen, fmt.Sprintf("%-9s", r.Outcome))
	case verify.Unknown:
		status = p.paint(ansiYellow, fmt.Sprintf("%-9s", r.Outcome))
	default:
		status = p.paint(ansiRed, fmt.Sprintf("%-9s", r.Outcome))
	}
	line := fmt.Sprintf("  %s %s", status, r.Name)
	switch r.Outcome {
	case verify.Failed:
		line += fmt.Sprintf(": expected %s, got %s", r.Expected, r.Actual)
		if r.Reason != "" {
			line += " (" + r.Reason + ")"
		}
	case verify.Disproved:
		parts := make([]string, len(r.Counterexample))
		for i, b := range r.Counterexample {
			parts[i] = b.Name + " = " + b.Value
		}
		if len(parts) > 0 {
			line += ": counterexample " + strings.Join(parts, ", ")
		}
	case verify.Unknown:
		line += ": " + r.Reason
	}
	if r.Cached {
		line += " (cached)"
	}
	if r.Unexpected() {
		line += p.paint(ansiRed, fmt.Sprintf(" [expected %s]", r.Assertion.Expect))
	}
	_, _ = fmt.Fprintln(p.w, line)
}
