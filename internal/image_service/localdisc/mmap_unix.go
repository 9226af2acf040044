//go:build unix

package localdisc

import (
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/AnishMulay/fscheck/internal/image_service"
)

func mapImage(path string, f *os.File, size int64) (*image_service.Image, error) {
	// mmap rejects zero-length mappings
	if size == 0 {
		f.Close()
		return image_service.NewImage(path, []byte{}, nil), nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, &os.PathError{Op: "mmap", Path: path, Err: err}
	}

	return image_service.NewImage(path, data, func() error {
		return multierr.Append(unix.Munmap(data), f.Close())
	}), nil
}
