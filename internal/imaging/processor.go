// Package imaging hands uploaded images to the external image-processing service.
package imaging

import (
	"context"
	"strings"
	"time"

	"business-directory/internal/common/errors"
	commonhttp "business-directory/internal/common/http"
	"business-directory/internal/common/logger"
)

const maxProcessedBytes = 10 << 20

// Processor resizes or re-encodes an image and returns the result with its content type.
type Processor interface {
	Process(ctx context.Context, filename, contentType string, data []byte) ([]byte, string, error)
}

// Passthrough returns images unchanged. Used when no processing service is configured.
type Passthrough struct{}

func (Passthrough) Process(_ context.Context, _ string, contentType string, data []byte) ([]byte, string, error) {
	return data, contentType, nil
}

// HTTPProcessor posts the raw image to <baseURL>/process.
type HTTPProcessor struct {
	baseURL string
	client  *commonhttp.Client
	logger  logger.Logger
}

// New picks the HTTP processor when baseURL is set and Passthrough otherwise.
func New(baseURL string, timeout time.Duration, log logger.Logger) Processor {
	if strings.TrimSpace(baseURL) == "" {
		return Passthrough{}
	}
	return &HTTPProcessor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  commonhttp.NewClient(timeout),
		logger:  log,
	}
}

func (p *HTTPProcessor) Process(ctx context.Context, filename, contentType string, data []byte) ([]byte, string, error) {
	start := time.Now()
	out, outType, err := p.client.PostBytes(ctx, p.baseURL+"/process", contentType, data, maxProcessedBytes)
	if err != nil {
		p.logger.Error("Image processing failed", map[string]interface{}{
			"filename": filename,
			"error":    err.Error(),
		})
		return nil, "", errors.NewImageProcessingFailedError(err)
	}
	if outType == "" {
		outType = contentType
	}

	p.logger.Debug("Image processed", map[string]interface{}{
		"filename":   filename,
		"inBytes":    len(data),
		"outBytes":   len(out),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return out, outType, nil
}
