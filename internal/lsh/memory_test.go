package lsh

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dferrors "github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/model"
)

func TestMemoryEngine_CreateFindPurge(t *testing.T) {
	ctx := context.Background()
	engine := NewMemoryEngine(0)

	params := DefaultParams()
	params.Filename = "test run"
	matrixID, err := engine.CreateMatrix(ctx, params)
	require.NoError(t, err)
	assert.NotEmpty(t, matrixID)

	matrix, err := engine.FindMatrix(ctx, matrixID)
	require.NoError(t, err)
	assert.Equal(t, matrixID, matrix.ID())
	assert.Equal(t, DefaultRows, matrix.Params().Rows)

	require.NoError(t, engine.PurgeMatrix(ctx, matrixID))
	_, err = engine.FindMatrix(ctx, matrixID)
	assert.True(t, errors.Is(err, dferrors.ErrMatrixNotFound))

	// Purging twice is a no-op
	assert.NoError(t, engine.PurgeMatrix(ctx, matrixID))
}

func TestMemoryEngine_CapacityExhausted(t *testing.T) {
	ctx := context.Background()
	engine := NewMemoryEngine(1)

	_, err := engine.CreateMatrix(ctx, DefaultParams())
	require.NoError(t, err)

	_, err = engine.CreateMatrix(ctx, DefaultParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dferrors.ErrIndexingUnavailable))
	assert.Equal(t, 1, engine.Len())
}

func TestMemoryEngine_InvalidParams(t *testing.T) {
	ctx := context.Background()
	engine := NewMemoryEngine(0)

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"zero rows", func(p *Params) { p.Rows = 0 }},
		{"zero bands", func(p *Params) { p.Bands = 0 }},
		{"zero modulo", func(p *Params) { p.MinhashModulo = 0 }},
		{"bad shingle scheme", func(p *Params) { p.ShingleType = "z9" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)
			_, err := engine.CreateMatrix(ctx, params)
			assert.True(t, errors.Is(err, dferrors.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestMemoryMatrix_IdenticalTextsShareAllBuckets(t *testing.T) {
	ctx := context.Background()
	engine := NewMemoryEngine(0)
	matrixID, err := engine.CreateMatrix(ctx, DefaultParams())
	require.NoError(t, err)
	matrix, err := engine.FindMatrix(ctx, matrixID)
	require.NoError(t, err)

	stats := map[string]any{}
	require.NoError(t, matrix.CreateDocument(ctx, "1", "dup one", stats))
	require.NoError(t, matrix.CreateDocument(ctx, "2", "dup one", stats))
	require.NoError(t, matrix.CreateDocument(ctx, "3", "a completely unrelated sentence", stats))

	rows, err := matrix.FindChildRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"1", "2", "3"}, []string{rows[0].DocID, rows[1].DocID, rows[2].DocID})
	assert.Len(t, rows[0].Buckets, DefaultBands)
	assert.Equal(t, rows[0].Buckets, rows[1].Buckets)

	shared := make(map[model.BucketID]bool)
	for _, b := range rows[0].Buckets {
		shared[b] = true
	}
	for _, b := range rows[2].Buckets {
		assert.False(t, shared[b], "unrelated text should not share bucket %d", b)
	}
}

func TestMemoryMatrix_SameTextSameBucketsAcrossMatrices(t *testing.T) {
	ctx := context.Background()
	engine := NewMemoryEngine(0)

	var buckets [][]model.BucketID
	for i := 0; i < 2; i++ {
		matrixID, err := engine.CreateMatrix(ctx, DefaultParams())
		require.NoError(t, err)
		matrix, err := engine.FindMatrix(ctx, matrixID)
		require.NoError(t, err)
		require.NoError(t, matrix.CreateDocument(ctx, "1", "hello world", nil))
		rows, err := matrix.FindChildRows(ctx)
		require.NoError(t, err)
		buckets = append(buckets, rows[0].Buckets)
	}
	assert.Equal(t, buckets[0], buckets[1])
}

func TestMemoryMatrix_EmptyTextAndReplacement(t *testing.T) {
	ctx := context.Background()
	engine := NewMemoryEngine(0)
	matrixID, err := engine.CreateMatrix(ctx, DefaultParams())
	require.NoError(t, err)
	matrix, err := engine.FindMatrix(ctx, matrixID)
	require.NoError(t, err)

	require.NoError(t, matrix.CreateDocument(ctx, "1", "", nil))
	require.NoError(t, matrix.CreateDocument(ctx, "2", "some text", nil))
	require.NoError(t, matrix.CreateDocument(ctx, "1", "some text", nil))

	rows, err := matrix.FindChildRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].DocID)
	assert.Equal(t, rows[1].Buckets, rows[0].Buckets)

	err = matrix.CreateDocument(ctx, "", "text", nil)
	assert.True(t, errors.Is(err, dferrors.ErrInvalidInput))
}
