// Package actor carries the optional identity responsible for a change
// through a request context.
package actor

import (
	"context"
	"strings"
)

// System is the tag recorded when no interactive actor is known.
const System = "system"

type contextKey struct{}

// With returns a context carrying the given actor tag. Blank tags are ignored.
func With(ctx context.Context, tag string) context.Context {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, tag)
}

// Lookup returns the actor tag stored on ctx, if any.
func Lookup(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tag, ok := ctx.Value(contextKey{}).(string)
	return tag, ok && tag != ""
}

// FromContext returns the actor tag on ctx or fallback when absent. An empty
// fallback resolves to System.
func FromContext(ctx context.Context, fallback string) string {
	if tag, ok := Lookup(ctx); ok {
		return tag
	}
	if strings.TrimSpace(fallback) == "" {
		return System
	}
	return fallback
}
