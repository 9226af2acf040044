package layout

import "errors"

var (
	ErrImageTooSmall      = errors.New("image too small to hold a superblock")
	ErrLayoutInconsistent = errors.New("superblock geometry does not partition the image")
	ErrImageTruncated     = errors.New("image shorter than the size recorded in its superblock")
)
