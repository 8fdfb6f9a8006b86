package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryImages_SaveAndOpen(t *testing.T) {
	images := NewMemoryImages()
	ctx := context.Background()

	ref, err := images.Save(ctx, "logo.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, ImagePathPrefix+ref.FileID, ref.URL)
	assert.Equal(t, int64(9), ref.Size)

	rc, info, err := images.Open(ctx, ref.FileID)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, "logo.png", info.Filename)
}

func TestMemoryImages_Missing(t *testing.T) {
	_, _, err := NewMemoryImages().Open(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrImageNotFound)
}
