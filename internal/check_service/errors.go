package check_service

import "errors"

var (
	ErrCheckCancelled = errors.New("check cancelled")
)
