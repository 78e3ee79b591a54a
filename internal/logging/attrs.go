package logging

import (
	"context"
	"log/slog"
)

// Shared attribute keys so queue operations tag log lines consistently.
const (
	FieldComponent   = "component"
	FieldAssociateID = "associate_id"
	FieldEntryID     = "entry_id"
	FieldSessionRef  = "session_ref"
	FieldCampus      = "campus"
	FieldPosition    = "position"
)

// WithComponent returns a logger tagged with a component name. A nil base
// logger yields the no-op logger.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger.With(slog.String(FieldComponent, component))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
