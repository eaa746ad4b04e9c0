package observability

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// MaxAttrValueLen bounds exported string attribute values in bytes.
// Longer values are cut and suffixed with "...".
const MaxAttrValueLen = 256

// exportedNamespaces lists the span attribute key prefixes that leave the
// process. Anything else, request and response bodies included, is dropped.
var exportedNamespaces = []string{
	"beat.",
	"error.",
	"http.",
	"mcp.",
	"melodist.",
	"pitch.",
	"solver.",
}

// NewSpanRedactor wraps next so exported spans only carry attributes in the
// melodist namespaces, with long strings truncated. Dropped keys are logged
// at warn level when log is non-nil.
func NewSpanRedactor(next sdktrace.SpanProcessor, log *slog.Logger) sdktrace.SpanProcessor {
	return &spanRedactor{next: next, log: log}
}

type spanRedactor struct {
	next sdktrace.SpanProcessor
	log  *slog.Logger
}

func (r *spanRedactor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	r.next.OnStart(parent, s)
}

func (r *spanRedactor) OnEnd(s sdktrace.ReadOnlySpan) {
	r.next.OnEnd(redactedSpan{ReadOnlySpan: s, attrs: r.redact(s.Attributes())})
}

func (r *spanRedactor) Shutdown(ctx context.Context) error {
	return r.next.Shutdown(ctx) //nolint:wrapcheck // delegate errors pass through.
}

func (r *spanRedactor) ForceFlush(ctx context.Context) error {
	return r.next.ForceFlush(ctx) //nolint:wrapcheck // delegate errors pass through.
}

func (r *spanRedactor) redact(in []attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(in))

	for _, kv := range in {
		key := string(kv.Key)

		if !exported(key) {
			if r.log != nil {
				r.log.Warn("span attribute dropped", "key", key)
			}

			continue
		}

		if kv.Value.Type() == attribute.STRING && len(kv.Value.AsString()) > MaxAttrValueLen {
			kv = kv.Key.String(truncate(kv.Value.AsString()))
		}

		out = append(out, kv)
	}

	return out
}

func exported(key string) bool {
	if key == "error" {
		return true
	}

	for _, ns := range exportedNamespaces {
		if strings.HasPrefix(key, ns) {
			return true
		}
	}

	return false
}

func truncate(s string) string {
	cut := MaxAttrValueLen

	// Back up to a rune boundary.
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

type redactedSpan struct {
	sdktrace.ReadOnlySpan

	attrs []attribute.KeyValue
}

func (s redactedSpan) Attributes() []attribute.KeyValue { return s.attrs }
