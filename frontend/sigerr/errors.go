package sigerr

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cottand/sigil/frontend/ast"
)

// enableDebugErrorPrinting makes errors include the frame that created them when printed
var enableDebugErrorPrinting = false

const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	Parse
	ArityMismatch
	DimMismatch
	TagMismatch
	TypeMismatch
	UnboundParameter
	InfiniteType
	KindAnnotation
	DimensionEval
	UnknownOperation
	DuplicateTypeDefinition
	DuplicateStructure
	UnknownStructure
	Unsupported
	SolverTimeout
	SolverUnavailable
	SolverProtocol
)

// Error is implemented by every error this module reports about user input or
// verification infrastructure
type Error interface {
	error
	Code() ErrCode
	ast.Positioner

	withStack([]byte) Error
	getStack() []byte
}

func FormatWithCode(e Error) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			lines := strings.Split(stack, "\n")
			if len(lines) > 6 {
				stack = strings.TrimSpace(lines[6])
			}
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	if pos := e.Pos(); pos.IsValid() {
		return fmt.Sprintf("%v: (E%03d) %s", pos, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

// New records the stack of the caller on err
func New[E Error](err E) Error {
	return err.withStack(debug.Stack())
}

// CodeOf returns the code of the first Error in err's chain, or None
func CodeOf(err error) ErrCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return None
}

// Is reports whether err's chain contains an Error with the given code
func Is(err error, code ErrCode) bool {
	return err != nil && CodeOf(err) == code
}

type Unclassified struct {
	From error
	ast.Range
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Unwrap() error    { return e.From }
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewParse struct {
	ast.Range
	Message string
	stack   []byte
}

func (e NewParse) Error() string    { return e.Message }
func (e NewParse) Code() ErrCode    { return Parse }
func (e NewParse) getStack() []byte { return e.stack }
func (e NewParse) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewArityMismatch struct {
	ast.Range
	Name     string
	Expected int
	Got      int
	stack    []byte
}

func (e NewArityMismatch) Error() string {
	return fmt.Sprintf("type '%s' expects %d parameters, got %d", e.Name, e.Expected, e.Got)
}
func (e NewArityMismatch) Code() ErrCode    { return ArityMismatch }
func (e NewArityMismatch) getStack() []byte { return e.stack }
func (e NewArityMismatch) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewDimMismatch struct {
	ast.Range
	// Param is the dimension parameter being bound, empty when two literals disagree
	Param    string
	Expected string
	Got      string
	stack    []byte
}

func (e NewDimMismatch) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("dimension mismatch: expected %s, got %s", e.Expected, e.Got)
	}
	return fmt.Sprintf("dimension constraint violated: '%s' was bound to %s, but got %s", e.Param, e.Expected, e.Got)
}
func (e NewDimMismatch) Code() ErrCode    { return DimMismatch }
func (e NewDimMismatch) getStack() []byte { return e.stack }
func (e NewDimMismatch) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewTagMismatch struct {
	ast.Range
	Param    string
	Expected string
	Got      string
	stack    []byte
}

func (e NewTagMismatch) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("tag mismatch: expected %q, got %q", e.Expected, e.Got)
	}
	return fmt.Sprintf("tag parameter '%s' was bound to %q, but got %q", e.Param, e.Expected, e.Got)
}
func (e NewTagMismatch) Code() ErrCode    { return TagMismatch }
func (e NewTagMismatch) getStack() []byte { return e.stack }
func (e NewTagMismatch) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewTypeMismatch struct {
	ast.Range
	Expected string
	Found    string
	Reason   string
	stack    []byte
}

func (e NewTypeMismatch) Error() string {
	msg := fmt.Sprintf("type mismatch: expected type '%s', but found a different type '%s'", e.Expected, e.Found)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
func (e NewTypeMismatch) Code() ErrCode    { return TypeMismatch }
func (e NewTypeMismatch) getStack() []byte { return e.stack }
func (e NewTypeMismatch) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewUnboundParameter struct {
	ast.Range
	Structure string
	Name      string
	// Operation is set when the parameter was left uninstantiated by a call
	Operation string
	stack     []byte
}

func (e NewUnboundParameter) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("parameter '%s' of structure '%s' is not instantiated by the arguments of '%s'", e.Name, e.Structure, e.Operation)
	}
	return fmt.Sprintf("parameter '%s' of structure '%s' is not used by any of its members", e.Name, e.Structure)
}
func (e NewUnboundParameter) Code() ErrCode    { return UnboundParameter }
func (e NewUnboundParameter) getStack() []byte { return e.stack }
func (e NewUnboundParameter) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewInfiniteType struct {
	ast.Range
	Var    string
	Inside string
	stack  []byte
}

func (e NewInfiniteType) Error() string {
	return fmt.Sprintf("cannot construct the infinite type %s = %s", e.Var, e.Inside)
}
func (e NewInfiniteType) Code() ErrCode    { return InfiniteType }
func (e NewInfiniteType) getStack() []byte { return e.stack }
func (e NewInfiniteType) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewKindAnnotation struct {
	ast.Range
	Param string
	Kind  string
	stack []byte
}

func (e NewKindAnnotation) Error() string {
	return fmt.Sprintf("unknown kind '%s' for parameter '%s' (expected Nat, Type or String)", e.Kind, e.Param)
}
func (e NewKindAnnotation) Code() ErrCode    { return KindAnnotation }
func (e NewKindAnnotation) getStack() []byte { return e.stack }
func (e NewKindAnnotation) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewDimensionEval struct {
	ast.Range
	Message string
	stack   []byte
}

func (e NewDimensionEval) Error() string    { return "dimension expression: " + e.Message }
func (e NewDimensionEval) Code() ErrCode    { return DimensionEval }
func (e NewDimensionEval) getStack() []byte { return e.stack }
func (e NewDimensionEval) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewUnknownOperation struct {
	ast.Range
	Structure string
	Name      string
	stack     []byte
}

func (e NewUnknownOperation) Error() string {
	if e.Structure == "" {
		return fmt.Sprintf("operation '%s' is not declared by any structure", e.Name)
	}
	return fmt.Sprintf("operation '%s' not found in structure '%s'", e.Name, e.Structure)
}
func (e NewUnknownOperation) Code() ErrCode    { return UnknownOperation }
func (e NewUnknownOperation) getStack() []byte { return e.stack }
func (e NewUnknownOperation) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewDuplicateTypeDefinition struct {
	ast.Range
	Name  string
	stack []byte
}

func (e NewDuplicateTypeDefinition) Error() string {
	return fmt.Sprintf("type '%s' is already defined", e.Name)
}
func (e NewDuplicateTypeDefinition) Code() ErrCode    { return DuplicateTypeDefinition }
func (e NewDuplicateTypeDefinition) getStack() []byte { return e.stack }
func (e NewDuplicateTypeDefinition) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewDuplicateStructure struct {
	ast.Range
	Name  string
	stack []byte
}

func (e NewDuplicateStructure) Error() string {
	return fmt.Sprintf("structure '%s' is already defined", e.Name)
}
func (e NewDuplicateStructure) Code() ErrCode    { return DuplicateStructure }
func (e NewDuplicateStructure) getStack() []byte { return e.stack }
func (e NewDuplicateStructure) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewUnknownStructure struct {
	ast.Range
	Name  string
	stack []byte
}

func (e NewUnknownStructure) Error() string {
	return fmt.Sprintf("structure '%s' is not defined", e.Name)
}
func (e NewUnknownStructure) Code() ErrCode    { return UnknownStructure }
func (e NewUnknownStructure) getStack() []byte { return e.stack }
func (e NewUnknownStructure) withStack(stack []byte) Error {
	e.stack = stack
	return e
}

type NewUnsupported struct {
	ast.Range
	What  string
	stack []byte
}

func (e NewUnsupported) Error() string    { return "not supported: " + e.What }
func (e NewUnsupported) Code() ErrCode    { return Unsupported }
func (e NewUnsupported) getStack() []byte { return e.stack }
func (e NewUnsupported) withStack(stack []byte) Error {
	e.stack = stack
	return e
}
