// Package blob stores uploaded bytes and issues time-limited retrieval URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DownloadURLExpiry = 24 * time.Hour
	PreviewURLExpiry  = time.Hour
)

var ErrEmptyKey = errors.New("blob key is empty")

// Object is a stored blob: its generated key and canonical unsigned URL.
type Object struct {
	Key string
	URL string
}

type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

type Gateway interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, expiry time.Duration) (SignedURL, error)
}

// NewKey builds "<prefix>/<owner>/<uuid><ext>" keeping the file extension.
func NewKey(prefix, owner, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("%s/%s/%s%s", prefix, owner, uuid.NewString(), ext)
}
