// Package logredact filters PII out of log output.
//
// Log messages are expected to contain fields formatted as
// "key=value<separator>". The values of configured fields are replaced
// with a fixed redaction string before the message is written.
package logredact

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
)

// PIIFields are the fields that are considered personally identifiable
// and are redacted by default.
var PIIFields = []string{"name", "email", "phone", "ssn", "password"}

// Redactor replaces the values of the configured fields in log messages.
type Redactor struct {
	re        *regexp.Regexp
	redaction string
}

// New creates a Redactor that obfuscates the values of the given fields.
// Values run up to the next occurrence of separator.
func New(fields []string, redaction, separator string) (*Redactor, error) {
	if len(fields) == 0 {
		return nil, errors.New("no fields to redact")
	}

	if separator == "" {
		return nil, errors.New("no separator")
	}

	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			return nil, errors.New("empty field name")
		}
		quoted = append(quoted, regexp.QuoteMeta(f))
	}

	re, err := regexp.Compile(`(` + strings.Join(quoted, `|`) + `)=[^` + regexp.QuoteMeta(separator) + `]*`)
	if err != nil {
		return nil, err
	}

	return &Redactor{
		re:        re,
		redaction: redaction,
	}, nil
}

// Redact returns msg with the values of all configured fields replaced
// by the redaction string.
func (r *Redactor) Redact(msg string) string {
	// ReplaceAllStringFunc instead of ReplaceAllString so that redaction
	// strings containing $ are not expanded as group references.
	return r.re.ReplaceAllStringFunc(msg, func(match string) string {
		field, _, _ := strings.Cut(match, "=")
		return field + "=" + r.redaction
	})
}

// Filter is a one-shot helper that redacts the values of fields in msg.
func Filter(fields []string, redaction, msg, separator string) (string, error) {
	r, err := New(fields, redaction, separator)
	if err != nil {
		return "", err
	}

	return r.Redact(msg), nil
}

// Handler is a slog.Handler that redacts messages and string attribute
// values before passing records to the wrapped handler.
type Handler struct {
	inner    slog.Handler
	redactor *Redactor
}

// NewHandler wraps the given handler with the redactor.
func NewHandler(inner slog.Handler, r *Redactor) *Handler {
	return &Handler{
		inner:    inner,
		redactor: r,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, h.redactor.Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(h.redactAttr(a))
		return true
	})

	return h.inner.Handle(ctx, nr)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		redacted = append(redacted, h.redactAttr(a))
	}

	return &Handler{
		inner:    h.inner.WithAttrs(redacted),
		redactor: h.redactor,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		inner:    h.inner.WithGroup(name),
		redactor: h.redactor,
	}
}

func (h *Handler) redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactor.Redact(v.String()))
	case slog.KindGroup:
		attrs := v.Group()
		redacted := make([]any, 0, len(attrs))
		for _, ga := range attrs {
			redacted = append(redacted, h.redactAttr(ga))
		}
		return slog.Group(a.Key, redacted...)
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}
