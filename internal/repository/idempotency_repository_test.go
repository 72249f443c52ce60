package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

func TestIdempotencyRepositoryWithoutClient(t *testing.T) {
	repo := NewIdempotencyRepository(nil, nil)
	ctx := context.Background()

	claimed, err := repo.Claim(ctx, "idempotency:abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	_, err = repo.Get(ctx, "idempotency:abc")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	require.NoError(t, repo.Save(ctx, "idempotency:abc", models.StoredResponse{Status: 201}, time.Minute))
	require.NoError(t, repo.Release(ctx, "idempotency:abc"))
	require.NoError(t, repo.Close())
}
