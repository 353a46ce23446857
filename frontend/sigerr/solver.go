package sigerr

import (
	"fmt"
	"time"

	"github.com/cottand/sigil/frontend/ast"
)

type NewSolverTimeout struct {
	ast.Range
	After time.Duration
	stack []byte
}

func (e NewSolverTimeout) Error() string {
	return fmt.Sprintf("solver did not answer within %v", e.After)
}
func (e NewSolverTimeout) Code() ErrCode    { return SolverTimeout }
func (e NewSolverTimeout) getStack() []byte { return e.stack }
func (e NewSolverTimeout) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewSolverUnavailable struct {
	ast.Range
	Solver string
	From   error
	stack  []byte
}

func (e NewSolverUnavailable) Error() string {
	return fmt.Sprintf("solver '%s' is unavailable: %v", e.Solver, e.From)
}
func (e NewSolverUnavailable) Unwrap() error    { return e.From }
func (e NewSolverUnavailable) Code() ErrCode    { return SolverUnavailable }
func (e NewSolverUnavailable) getStack() []byte { return e.stack }
func (e NewSolverUnavailable) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

// NewSolverProtocol reports a response the solver backend could not make sense of,
// including (error ...) replies to the query
type NewSolverProtocol struct {
	ast.Range
	Message string
	stack   []byte
}

func (e NewSolverProtocol) Error() string    { return "solver protocol: " + e.Message }
func (e NewSolverProtocol) Code() ErrCode    { return SolverProtocol }
func (e NewSolverProtocol) getStack() []byte { return e.stack }
func (e NewSolverProtocol) withStack(stack []byte) Error {
	e.stack = stack
	return e
}
