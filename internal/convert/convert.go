// Package convert sequences one conversion run: preprocess the source tree,
// gate its mesh assets, hand the intermediate to the external compiler and
// apply the source's injection rules to the compiled document.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/martinhoang/urdf2mjcf/internal/assets"
	"github.com/martinhoang/urdf2mjcf/internal/compiler"
	"github.com/martinhoang/urdf2mjcf/internal/config"
	"github.com/martinhoang/urdf2mjcf/internal/inject"
	"github.com/martinhoang/urdf2mjcf/internal/logger"
	"github.com/martinhoang/urdf2mjcf/internal/preprocess"
	"github.com/martinhoang/urdf2mjcf/pkg/geometry"
	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// extensionTag is the child of the document root that carries injection
// rules. It is detached from the tree before compilation.
const extensionTag = "mujoco"

// Converter runs one source-to-target conversion.
type Converter struct {
	cfg       *config.Config
	compiler  compiler.Compiler
	decimator geometry.Decimator
}

// New wires a Converter from config. The external compiler is optional; with
// no command configured the intermediate document itself is the baseline
// target.
func New(cfg *config.Config) *Converter {
	c := &Converter{
		cfg:       cfg,
		decimator: &geometry.GridDecimator{},
	}
	if cfg.Compiler.Command != "" {
		c.compiler = &compiler.ExecCompiler{
			Command: cfg.Compiler.Command,
			Timeout: cfg.Compiler.Timeout,
		}
	}
	return c
}

// Run executes the pipeline. Cancellation is honored at stage boundaries.
func (c *Converter) Run(ctx context.Context) error {
	in := c.cfg.Input.Path
	if in == "" {
		return errors.New("no input document given")
	}
	out := c.cfg.Output.Path
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".mjcf.xml"
	}
	outDir := filepath.Dir(out)
	srcDir := filepath.Dir(in)

	source, err := xmltree.ParseFile(in)
	if err != nil {
		return err
	}

	// Capture and detach the extension block; the compiler never sees it.
	var rules []*inject.Rule
	if ext := source.Child(extensionTag); ext != nil {
		rules, err = inject.ParseRules(ext)
		if err != nil {
			return err
		}
		source.Remove(ext)
	}

	meshDir := c.cfg.Output.MeshDir
	if !filepath.IsAbs(meshDir) {
		meshDir = filepath.Join(outDir, meshDir)
	}
	pre := preprocess.New(preprocess.Options{
		BaseDir:          srcDir,
		MeshDir:          meshDir,
		RefDir:           c.cfg.Output.MeshDir,
		DefaultUnitScale: c.cfg.Mesh.DefaultUnitScale,
		ZeroRPY:          c.cfg.Inertial.ZeroRPY,
		Estimate:         c.cfg.Inertial.Estimate,
	})
	if err := pre.Run(source); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Stage every referenced asset into the mesh directory and gate it, so
	// the intermediate is self-contained and source files stay pristine.
	if err := c.stageAssets(ctx, source, meshDir, outDir, srcDir); err != nil {
		return err
	}

	intermediate := strings.TrimSuffix(out, filepath.Ext(out)) + ".intermediate.xml"
	if err := xmltree.WriteFile(intermediate, source); err != nil {
		return err
	}
	if m := pre.Manifest(); len(m.Extractions) > 0 {
		manifestPath := filepath.Join(outDir, "extraction_manifest.json")
		if err := m.Save(manifestPath); err != nil {
			return err
		}
		logger.Info("wrote extraction manifest", zap.String("path", manifestPath))
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := c.compile(ctx, intermediate)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	inject.Apply(target, rules)

	if err := xmltree.WriteFile(out, target); err != nil {
		return err
	}
	logger.Info("wrote target document", zap.String("path", out))

	if c.cfg.Output.SaveConfig {
		cfgPath := strings.TrimSuffix(out, filepath.Ext(out)) + ".config.yaml"
		if err := c.cfg.SaveTo(cfgPath); err != nil {
			return fmt.Errorf("saving effective config: %w", err)
		}
	}
	return nil
}

// stageAssets copies every referenced mesh into the mesh directory, rewrites
// the references to point there and runs the face-count guard over the staged
// copies. References are resolved against the output directory first
// (extracted assets), then the source directory.
func (c *Converter) stageAssets(ctx context.Context, source *xmltree.Element, meshDir, outDir, srcDir string) error {
	staged := make(map[string]string)
	destNames := make(map[string]bool)
	var paths []string
	for _, mesh := range source.FindAll("mesh") {
		ref, ok := mesh.Attr("filename")
		if !ok || ref == "" {
			continue
		}
		dest, seen := staged[ref]
		if !seen {
			path, err := assets.Resolve(ref, outDir)
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(path); statErr != nil {
				if path, err = assets.Resolve(ref, srcDir); err != nil {
					return err
				}
			}
			// Distinct refs may share a basename; suffix until unused so
			// they never collapse onto one staged file.
			name := filepath.Base(path)
			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 1; destNames[name]; n++ {
				name = fmt.Sprintf("%s_%d%s", stem, n, ext)
			}
			destNames[name] = true
			dest = filepath.Join(meshDir, name)
			if path != dest {
				if err := assets.CopyFile(path, dest); err != nil {
					return fmt.Errorf("staging mesh %s: %w", ref, err)
				}
			}
			staged[ref] = dest
			paths = append(paths, dest)
		}
		mesh.SetAttr("filename", filepath.Join(c.cfg.Output.MeshDir, filepath.Base(dest)))
	}
	if len(paths) == 0 {
		return nil
	}

	guard := &assets.Guard{
		Limit:        c.cfg.Mesh.FaceLimit,
		BackupSuffix: c.cfg.Mesh.BackupSuffix,
		Workers:      c.cfg.Mesh.Workers,
		Timeout:      c.cfg.Mesh.DecimateTimeout,
		Decimator:    c.decimator,
	}
	reports, err := guard.Check(ctx, paths)
	for _, r := range reports {
		logger.Debug("face count checked",
			zap.String("path", r.Path),
			zap.Int("faces", r.Faces),
			zap.String("verdict", string(r.Verdict)))
	}
	return err
}

func (c *Converter) compile(ctx context.Context, intermediate string) (*xmltree.Element, error) {
	if c.compiler == nil {
		logger.Debug("no external compiler configured, using intermediate as baseline")
		return xmltree.ParseFile(intermediate)
	}
	return c.compiler.Compile(ctx, intermediate)
}
