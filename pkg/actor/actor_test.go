package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, System, FromContext(ctx, ""))
	assert.Equal(t, "importer", FromContext(ctx, "importer"))

	ctx = With(ctx, "  registrar@school.test ")
	assert.Equal(t, "registrar@school.test", FromContext(ctx, "importer"))
}

func TestWithIgnoresBlank(t *testing.T) {
	ctx := With(context.Background(), "   ")
	_, ok := Lookup(ctx)
	assert.False(t, ok)
}
