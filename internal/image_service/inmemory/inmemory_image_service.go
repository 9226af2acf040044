package inmemory

import (
	"fmt"
	"os"
	"sync"

	"github.com/AnishMulay/fscheck/internal/image_service"
	"github.com/AnishMulay/fscheck/internal/log_service"
)

// InMemoryImageLoader serves images registered under a name. The daemon
// uses it to hand request bodies to the checker.
type InMemoryImageLoader struct {
	ls     log_service.LogService
	mu     sync.RWMutex
	images map[string][]byte
}

func NewInMemoryImageLoader(ls log_service.LogService) *InMemoryImageLoader {
	return &InMemoryImageLoader{ls: ls, images: make(map[string][]byte)}
}

func (l *InMemoryImageLoader) Put(name string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.images[name] = data
}

func (l *InMemoryImageLoader) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.images, name)
}

func (l *InMemoryImageLoader) Load(name string) (*image_service.Image, error) {
	l.mu.RLock()
	data, ok := l.images[name]
	l.mu.RUnlock()

	if !ok {
		l.ls.Warn(log_service.LogEvent{
			Message:  "Image not registered",
			Metadata: map[string]any{"name": name},
		})
		return nil, fmt.Errorf("%w: %w", image_service.ErrImageOpenFailed,
			&os.PathError{Op: "open", Path: name, Err: os.ErrNotExist})
	}
	return image_service.NewImage(name, data, nil), nil
}

var _ image_service.ImageLoader = (*InMemoryImageLoader)(nil)
