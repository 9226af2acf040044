// Package sequential runs the twelve consistency checks one after another
// over a single image, stopping at the first violation.
package sequential

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/AnishMulay/fscheck/internal/check_service"
	"github.com/AnishMulay/fscheck/internal/layout"
	"github.com/AnishMulay/fscheck/internal/log_service"
)

type run struct {
	id string
	l  *layout.Layout
	ls log_service.LogService
}

type stage struct {
	name   string
	checks []int
	fn     func(r *run) *check_service.Violation
}

// stages is the fixed check order. Reordering it changes which defect is
// reported for images with more than one.
var stages = []stage{
	{"inode types", []int{1}, checkInodeTypes},
	{"block addresses", []int{2}, checkBlockAddresses},
	{"root directory", []int{3}, checkRootDirectory},
	{"directory format", []int{4}, checkDirectoryFormat},
	{"bitmap marks referenced blocks", []int{5}, checkReferencedBlocksMarked},
	{"bitmap has no stray blocks", []int{6}, checkMarkedBlocksReferenced},
	{"duplicate addresses", []int{7, 8}, checkDuplicateAddresses},
	{"directory references", []int{9, 10, 11, 12}, checkDirectoryReferences},
}

type SequentialCheckService struct {
	ls log_service.LogService
}

func NewSequentialCheckService(ls log_service.LogService) *SequentialCheckService {
	return &SequentialCheckService{ls: ls}
}

func (s *SequentialCheckService) Check(ctx context.Context, image []byte) (*check_service.Report, error) {
	runID := uuid.New().String()

	l, err := layout.Resolve(image)
	if err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to resolve image layout",
			Metadata: map[string]any{"runID": runID, "bytes": len(image), "error": err.Error()},
		})
		return nil, err
	}

	s.ls.Debug(log_service.LogEvent{
		Message: "Resolved image layout",
		Metadata: map[string]any{
			"runID":     runID,
			"size":      l.Super.Size,
			"nblocks":   l.Super.NBlocks,
			"ninodes":   l.Super.NInodes,
			"dataStart": l.DataStart,
			"geometry":  l.Geometry.String(),
		},
	})

	report := &check_service.Report{
		RunID:      runID,
		Superblock: l.Super,
		Geometry:   l.Geometry,
		DataStart:  l.DataStart,
	}
	r := &run{id: runID, l: l, ls: s.ls}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", check_service.ErrCheckCancelled, err)
		}

		s.ls.Debug(log_service.LogEvent{
			Message:  "Running check stage",
			Metadata: map[string]any{"runID": runID, "stage": st.name, "checks": st.checks},
		})

		if v := st.fn(r); v != nil {
			report.Violation = v
			s.ls.Warn(log_service.LogEvent{
				Message: "Image failed consistency check",
				Metadata: map[string]any{
					"runID": runID,
					"check": v.Check(),
					"code":  v.Code.String(),
					"inode": v.Inode,
					"block": v.Block,
				},
			})
			return report, v
		}
		report.Passed = append(report.Passed, st.checks...)
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Image is consistent",
		Metadata: map[string]any{"runID": runID, "size": l.Super.Size},
	})
	return report, nil
}

var _ check_service.CheckService = (*SequentialCheckService)(nil)
