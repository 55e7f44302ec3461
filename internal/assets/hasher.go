package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	digestCacheExpiration = 30 * time.Minute
	digestCacheCleanup    = time.Hour
)

// Hasher computes SHA-256 content digests. Results are memoized by path,
// size and modification time so repeated events for an untouched file do not
// re-read it.
type Hasher struct {
	cache *gocache.Cache
}

// NewHasher creates a hasher with an empty memo.
func NewHasher() *Hasher {
	return &Hasher{cache: gocache.New(digestCacheExpiration, digestCacheCleanup)}
}

// Digest returns the hex SHA-256 of the file at path.
func (h *Hasher) Digest(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	key := path + "|" + strconv.FormatInt(info.Size(), 10) + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
	if cached, ok := h.cache.Get(key); ok {
		return cached.(string), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, &contextReader{ctx: ctx, r: file}); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	digest := hex.EncodeToString(sum.Sum(nil))
	h.cache.Set(key, digest, gocache.DefaultExpiration)
	return digest, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
