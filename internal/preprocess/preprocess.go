// Package preprocess rewrites a parsed robot description into a
// self-contained intermediate form: composite mesh references are expanded
// into primitive references with generated materials, rotated inertial frames
// are normalized, and missing inertial tensors are optionally estimated from
// geometry.
package preprocess

import (
	"go.uber.org/zap"

	"github.com/martinhoang/urdf2mjcf/internal/assets"
	"github.com/martinhoang/urdf2mjcf/internal/logger"
	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// Options configures one preprocessing pass.
type Options struct {
	// BaseDir resolves relative mesh references of the source document.
	BaseDir string
	// MeshDir is the filesystem directory receiving extracted mesh files.
	MeshDir string
	// RefDir is the path prefix written into rewritten mesh references.
	// Empty means MeshDir.
	RefDir string
	// DefaultUnitScale applies to composite scenes that declare no unit.
	DefaultUnitScale float64
	// ZeroRPY rewrites rotated inertial frames into zero-orientation form.
	ZeroRPY bool
	// Estimate fills missing inertial tensors from mesh geometry.
	Estimate bool
}

// Preprocessor mutates a source tree in place. It is single-threaded; rule
// and document order are part of the output contract.
type Preprocessor struct {
	opts      Options
	manifest  *Manifest
	materials map[string]bool
	written   map[string]bool
}

// New returns a Preprocessor for one conversion run.
func New(opts Options) *Preprocessor {
	if opts.RefDir == "" {
		opts.RefDir = opts.MeshDir
	}
	return &Preprocessor{
		opts:      opts,
		manifest:  &Manifest{},
		materials: make(map[string]bool),
		written:   make(map[string]bool),
	}
}

// Manifest returns the extraction records accumulated so far.
func (p *Preprocessor) Manifest() *Manifest { return p.manifest }

// Run applies all preprocessing passes to root.
func (p *Preprocessor) Run(root *xmltree.Element) error {
	p.extractComposites(root)

	if p.opts.ZeroRPY {
		if err := normalizeInertialFrames(root); err != nil {
			return err
		}
	}

	if p.opts.Estimate {
		for _, link := range root.FindAll("link") {
			if link.Child("inertial") == nil {
				continue
			}
			if err := p.estimateInertia(link); err != nil {
				logger.Warn("inertia estimation skipped", zap.Error(err))
			}
		}
	}
	return nil
}

func (p *Preprocessor) resolve(ref string) (string, error) {
	return assets.Resolve(ref, p.opts.BaseDir)
}
