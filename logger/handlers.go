package logger

import (
	"context"
	"log/slog"
)

type nullHandler struct{}

func (nullHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nullHandler) Handle(context.Context, slog.Record) error { return nil }
func (n nullHandler) WithAttrs([]slog.Attr) slog.Handler      { return n }
func (n nullHandler) WithGroup(string) slog.Handler           { return n }
