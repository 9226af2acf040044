package image_service

import "errors"

var (
	ErrImageOpenFailed = errors.New("failed to open image")
	ErrImageReadFailed = errors.New("failed to read image")
)

// Image is a file system image held in memory. Data stays valid until Close.
type Image struct {
	Path  string
	Data  []byte
	close func() error
}

func NewImage(path string, data []byte, close func() error) *Image {
	return &Image{Path: path, Data: data, close: close}
}

// Close releases the backing storage. Calling it more than once is a no-op.
func (img *Image) Close() error {
	if img == nil || img.close == nil {
		return nil
	}
	fn := img.close
	img.close = nil
	img.Data = nil
	return fn()
}

type ImageLoader interface {
	Load(path string) (*Image, error)
}
