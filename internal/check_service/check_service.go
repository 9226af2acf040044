package check_service

import (
	"context"

	"github.com/AnishMulay/fscheck/internal/layout"
)

// CheckService validates a whole file system image. A structural violation
// is returned as a *Violation error and also recorded in the report; any
// other error means the image could not be checked at all.
type CheckService interface {
	Check(ctx context.Context, image []byte) (*Report, error)
}

// Report summarizes one run over one image.
type Report struct {
	RunID      string
	Superblock layout.Superblock
	Geometry   layout.Geometry
	DataStart  uint32
	// Passed lists the checks, in order, that completed without a violation.
	Passed    []int
	Violation *Violation
}

func (r *Report) OK() bool {
	return r != nil && r.Violation == nil
}
