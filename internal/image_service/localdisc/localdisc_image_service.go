package localdisc

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/AnishMulay/fscheck/internal/image_service"
	"github.com/AnishMulay/fscheck/internal/log_service"
)

// LocalDiscImageLoader reads images from the local filesystem. With mmap
// enabled, and on platforms that support it, the file is mapped read-only
// instead of copied.
type LocalDiscImageLoader struct {
	ls   log_service.LogService
	mmap bool
}

func NewLocalDiscImageLoader(ls log_service.LogService, mmap bool) *LocalDiscImageLoader {
	return &LocalDiscImageLoader{ls: ls, mmap: mmap}
}

// Load opens path. Open errors wrap both ErrImageOpenFailed and the
// underlying *os.PathError, so callers can print the OS message.
func (l *LocalDiscImageLoader) Load(path string) (*image_service.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		l.ls.Error(log_service.LogEvent{
			Message:  "Failed to open image",
			Metadata: map[string]any{"path": path, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %w", image_service.ErrImageOpenFailed, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", image_service.ErrImageReadFailed, err)
	}

	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %w", image_service.ErrImageReadFailed,
			&os.PathError{Op: "read", Path: path, Err: syscall.EISDIR})
	}

	var img *image_service.Image
	if l.mmap {
		img, err = mapImage(path, f, fi.Size())
	} else {
		img, err = readImage(path, f)
	}
	if err != nil {
		l.ls.Error(log_service.LogEvent{
			Message:  "Failed to read image",
			Metadata: map[string]any{"path": path, "mmap": l.mmap, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %w", image_service.ErrImageReadFailed, err)
	}

	l.ls.Debug(log_service.LogEvent{
		Message:  "Loaded image",
		Metadata: map[string]any{"path": path, "bytes": len(img.Data), "mmap": l.mmap},
	})
	return img, nil
}

func readImage(path string, f *os.File) (*image_service.Image, error) {
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return image_service.NewImage(path, data, nil), nil
}

var _ image_service.ImageLoader = (*LocalDiscImageLoader)(nil)
