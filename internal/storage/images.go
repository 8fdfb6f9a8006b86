// Package storage keeps uploaded profile images.
package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"business-directory/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ImagePathPrefix is where the public API serves stored images.
const ImagePathPrefix = "/api/images/"

var ErrImageNotFound = stderrors.New("storage: image not found")

type ImageInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

type ImageStore interface {
	Save(ctx context.Context, filename, contentType string, data []byte) (*models.ProfileImage, error)
	Open(ctx context.Context, fileID string) (io.ReadCloser, ImageInfo, error)
}

// GridFSImages stores images in a MongoDB GridFS bucket.
type GridFSImages struct {
	bucket *gridfs.Bucket
}

func NewGridFSImages(db *mongo.Database, bucketName string) (*GridFSImages, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &GridFSImages{bucket: bucket}, nil
}

func (g *GridFSImages) Save(ctx context.Context, filename, contentType string, data []byte) (*models.ProfileImage, error) {
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	stream, err := g.bucket.OpenUploadStream(filename, opts)
	if err != nil {
		return nil, fmt.Errorf("open upload stream: %w", err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}
	if _, err := io.Copy(stream, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	fileID := stream.FileID.(primitive.ObjectID).Hex()
	return &models.ProfileImage{
		FileID:      fileID,
		URL:         ImagePathPrefix + fileID,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (g *GridFSImages) Open(ctx context.Context, fileID string) (io.ReadCloser, ImageInfo, error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, ImageInfo{}, ErrImageNotFound
	}

	stream, err := g.bucket.OpenDownloadStream(oid)
	if err != nil {
		if stderrors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ImageInfo{}, ErrImageNotFound
		}
		return nil, ImageInfo{}, fmt.Errorf("open download stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	file := stream.GetFile()
	info := ImageInfo{Filename: file.Name, Size: file.Length, ContentType: "application/octet-stream"}
	if file.Metadata != nil {
		if ct, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok {
			info.ContentType = ct
		}
	}
	return stream, info, nil
}

// MemoryImages is an in-process ImageStore.
type MemoryImages struct {
	mu    sync.RWMutex
	files map[string]memoryImage
}

type memoryImage struct {
	info ImageInfo
	data []byte
}

func NewMemoryImages() *MemoryImages {
	return &MemoryImages{files: make(map[string]memoryImage)}
}

func (m *MemoryImages) Save(_ context.Context, filename, contentType string, data []byte) (*models.ProfileImage, error) {
	id := uuid.NewString()
	m.mu.Lock()
	m.files[id] = memoryImage{
		info: ImageInfo{Filename: filename, ContentType: contentType, Size: int64(len(data))},
		data: append([]byte(nil), data...),
	}
	m.mu.Unlock()

	return &models.ProfileImage{
		FileID:      id,
		URL:         ImagePathPrefix + id,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (m *MemoryImages) Open(_ context.Context, fileID string) (io.ReadCloser, ImageInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, ImageInfo{}, ErrImageNotFound
	}
	return io.NopCloser(bytes.NewReader(f.data)), f.info, nil
}
