package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/sdejongh/fylr/pkg/ratelimit"
	"github.com/sdejongh/fylr/pkg/storage"
)

// Partial hashing configuration
const (
	// Minimum file size to enable partial hashing (1MB)
	partialHashThreshold = 1 * 1024 * 1024
	// Size of partial hash to compute (256KB)
	partialHashSize = 256 * 1024
)

// hasher computes SHA-256 digests through a shared buffer pool
type hasher struct {
	bufferPool *sync.Pool
	// limiter throttles reads when set
	limiter *ratelimit.Limiter
}

func newHasher(bufferSize int) *hasher {
	if bufferSize < 4096 {
		bufferSize = 4096
	}
	return &hasher{
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// sum hashes the file at path; limit > 0 hashes only the first limit bytes
func (h *hasher) sum(ctx context.Context, backend storage.Backend, path string, limit int64) (string, error) {
	reader, err := backend.Read(ctx, path)
	if err != nil {
		return "", err
	}
	reader = ratelimit.NewReadCloser(ctx, reader, h.limiter)
	defer reader.Close()

	var src io.Reader = reader
	if limit > 0 {
		src = io.LimitReader(reader, limit)
	}

	digest := sha256.New()

	bufPtr := h.bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer h.bufferPool.Put(bufPtr)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := src.Read(buffer)
		if n > 0 {
			digest.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}
