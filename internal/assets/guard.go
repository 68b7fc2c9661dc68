package assets

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/martinhoang/urdf2mjcf/internal/logger"
	"github.com/martinhoang/urdf2mjcf/pkg/formats"
	"github.com/martinhoang/urdf2mjcf/pkg/geometry"
)

// ErrFaceLimitExceeded marks an asset the downstream compiler would reject
// even after decimation.
var ErrFaceLimitExceeded = errors.New("mesh face count exceeds limit")

// Verdict classifies the outcome of one face-count check.
type Verdict string

// Guard verdicts.
const (
	VerdictOK        Verdict = "ok"
	VerdictFixed     Verdict = "fixed"
	VerdictUnfixable Verdict = "unfixable"
)

// FaceCountReport records one asset's check.
type FaceCountReport struct {
	Path    string
	Faces   int // pre-fix count
	Limit   int
	Verdict Verdict
	Backup  string // set when the asset was mutated
}

// Guard enforces the face limit on mesh assets. Assets over the limit are
// backed up, decimated in place to half the limit and re-counted; an asset
// still over the limit after decimation fails the run.
type Guard struct {
	Limit        int
	BackupSuffix string
	Workers      int // 0 = NumCPU
	Timeout      time.Duration
	Decimator    geometry.Decimator
}

// Check processes every asset. Independent assets run in parallel; each
// asset's backup, mutation and verification is transactional per file.
// Returns all reports plus the first hard error encountered.
func (g *Guard) Check(ctx context.Context, paths []string) ([]FaceCountReport, error) {
	workers := g.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	reports := make([]FaceCountReport, len(paths))
	errs := make([]error, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				reports[i], errs[i] = g.checkAsset(ctx, paths[i])
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (g *Guard) checkAsset(ctx context.Context, path string) (FaceCountReport, error) {
	report := FaceCountReport{Path: path, Limit: g.Limit, Verdict: VerdictUnfixable}

	count, err := formats.CountFaces(path)
	if err != nil {
		return report, fmt.Errorf("counting faces of %s: %w", path, err)
	}
	report.Faces = count
	if count <= g.Limit {
		report.Verdict = VerdictOK
		return report, nil
	}

	logger.Warn("mesh over face limit, decimating",
		zap.String("path", path),
		zap.Int("faces", count),
		zap.Int("limit", g.Limit))

	format, err := formats.DetectFormat(path)
	if err != nil {
		return report, err
	}
	if format == formats.FormatCollada {
		// In-place decimation of composite scenes is not supported; these
		// should have been expanded during preprocessing.
		return report, fmt.Errorf("%w: %s is a composite scene with %d faces", ErrFaceLimitExceeded, path, count)
	}

	backup := path + g.BackupSuffix
	if err := CopyFile(path, backup); err != nil {
		return report, fmt.Errorf("backing up %s: %w", path, err)
	}
	report.Backup = backup

	if err := g.decimateInPlace(ctx, path); err != nil {
		rollback(path, backup)
		return report, fmt.Errorf("%w: %s: decimation failed: %v", ErrFaceLimitExceeded, path, err)
	}

	recount, err := formats.CountSTLFaces(path)
	if err != nil {
		rollback(path, backup)
		return report, fmt.Errorf("recounting %s: %w", path, err)
	}
	if recount > g.Limit {
		rollback(path, backup)
		return report, fmt.Errorf("%w: %s still has %d faces after decimation", ErrFaceLimitExceeded, path, recount)
	}

	report.Verdict = VerdictFixed
	logger.Info("mesh decimated within limit",
		zap.String("path", path),
		zap.Int("before", count),
		zap.Int("after", recount))
	return report, nil
}

// decimateInPlace rewrites the STL at path to at most half the limit,
// leaving headroom against incidental re-triangulation. The decimator call
// is bounded by the per-asset timeout.
func (g *Guard) decimateInPlace(ctx context.Context, path string) error {
	mesh, err := formats.ParseSTLFile(path)
	if err != nil {
		return err
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	decimated, err := g.Decimator.Decimate(ctx, mesh, g.Limit/2)
	if err != nil {
		return err
	}
	return formats.WriteBinarySTL(path, decimated)
}

func rollback(path, backup string) {
	if err := CopyFile(backup, path); err != nil {
		logger.Error("rollback from backup failed",
			zap.String("path", path),
			zap.String("backup", backup),
			zap.Error(err))
	}
}
