package testutil

import (
	"context"
	"io"
	"sync"
)

// MemoryUploader keeps uploaded objects in memory and serves them from a fake CDN host.
type MemoryUploader struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Err     error
}

func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{Objects: make(map[string][]byte)}
}

func (u *MemoryUploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if u.Err != nil {
		return "", u.Err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (u *MemoryUploader) Keys() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	keys := make([]string, 0, len(u.Objects))
	for k := range u.Objects {
		keys = append(keys, k)
	}
	return keys
}
