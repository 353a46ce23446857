package sigerr

import (
	"errors"
	"fmt"
	"log/slog"
)

// Errors accumulates the problems found while processing a batch of declarations.
// A nil *Errors is empty and ready to use.
type Errors struct {
	errs []Error
}

func (r *Errors) With(err ...Error) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

// WithErr adds err, classifying it as Unclassified when it is not an Error
func (r *Errors) WithErr(err error) *Errors {
	if err == nil {
		return r
	}
	var e Error
	if errors.As(err, &e) {
		return r.With(e)
	}
	return r.With(New(Unclassified{From: err}))
}

func (r *Errors) Errors() []Error {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}
