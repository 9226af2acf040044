//go:build !unix

package localdisc

import (
	"os"

	"github.com/AnishMulay/fscheck/internal/image_service"
)

func mapImage(path string, f *os.File, _ int64) (*image_service.Image, error) {
	return readImage(path, f)
}
