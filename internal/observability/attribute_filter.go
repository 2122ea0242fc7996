package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exportedPrefixes lists the span attribute key prefixes that reach the exporter.
var exportedPrefixes = []string{
	"treechurn.",
	"http.",
	"error",
}

// attributeFilter drops span attributes outside exportedPrefixes before the
// delegate sees the span. Repository paths and subdirectories are only
// exported under the treechurn. namespace.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
}

// NewAttributeFilter wraps delegate with the export allow-list.
func NewAttributeFilter(delegate sdktrace.SpanProcessor) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(filteredSpan{ReadOnlySpan: s})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	return f.delegate.Shutdown(ctx)
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	return f.delegate.ForceFlush(ctx)
}

func exported(key attribute.Key) bool {
	for _, prefix := range exportedPrefixes {
		if strings.HasPrefix(string(key), prefix) {
			return true
		}
	}

	return false
}

// filteredSpan is a read-only view exposing only exported attributes.
type filteredSpan struct {
	sdktrace.ReadOnlySpan
}

func (s filteredSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if exported(kv.Key) {
			kept = append(kept, kv)
		}
	}

	return kept
}
