package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cottand/sigil/frontend"
	"github.com/cottand/sigil/frontend/types"
	"github.com/cottand/sigil/internal/log"
	"github.com/cottand/sigil/sigil"
	"github.com/spf13/cobra"
)

var ResolveCmd = &cobra.Command{
	Use:   "resolve theory.yaml structure [operation [argument types...]]",
	Short: "Show the types of the operations of a structure",
	Long: `Without an operation, lists the operations of the structure with their
signatures, the parameters of the structure kept abstract.
With an operation and the types of its arguments, shows the type of the result.`,
	RunE:         runResolve,
	Args:         cobra.MinimumNArgs(2),
	SilenceUsage: true,
}

var (
	resolveAbstract *bool
	resolveLogLevel *int
)

func init() {
	resolveAbstract = ResolveCmd.Flags().BoolP("abstract", "a", false, "resolve inside the abstract instance of the structure, its parameters kept opaque")
	resolveLogLevel = ResolveCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
}

func runResolve(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*resolveLogLevel))

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("could not read theory: %w", err)
	}
	th, err := sigil.Load(args[0], data)
	if err != nil {
		return err
	}
	structure := args[1]
	st, ok := th.Structures.Get(structure)
	if !ok {
		return fmt.Errorf("no structure named %s in %s", structure, args[0])
	}
	out := cmd.OutOrStdout()

	if len(args) == 2 {
		for _, op := range st.Operations() {
			session := types.NewSession()
			ctx, err := th.Structures.AbstractContext(session, structure)
			if err != nil {
				return err
			}
			sig, _ := st.Signature(op)
			t, err := types.Interpret(sig, ctx.At(sig))
			if err != nil {
				return fmt.Errorf("operation %s: %w", op, err)
			}
			_, _ = fmt.Fprintf(out, "%s : %s\n", op, t)
		}
		return nil
	}

	op := args[2]
	session := types.NewSession()
	argTypes := make([]types.Type, 0, len(args)-3)
	for _, src := range args[3:] {
		e, err := frontend.ParseTypeExpr(src)
		if err != nil {
			return fmt.Errorf("argument type %s: %w", src, err)
		}
		t, err := types.Interpret(e, types.NewBindingContext(session, th.Registry).At(e))
		if err != nil {
			return fmt.Errorf("argument type %s: %w", src, err)
		}
		argTypes = append(argTypes, t)
	}
	interpret := th.Structures.InterpretOperation
	if *resolveAbstract {
		interpret = th.Structures.InterpretAbstractOperation
	}
	result, err := interpret(session, structure, op, argTypes)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, result)
	return nil
}
