// Package compiler wraps the external document compiler behind a
// document-in/document-out contract.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/martinhoang/urdf2mjcf/internal/logger"
	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// Compiler turns a self-contained intermediate description on disk into a
// baseline target document.
type Compiler interface {
	Compile(ctx context.Context, intermediatePath string) (*xmltree.Element, error)
}

// Failure carries the compiler's verbatim output. It is never swallowed; the
// user sees exactly what the compiler said.
type Failure struct {
	Command string
	Output  string
	Err     error
}

func (f *Failure) Error() string {
	out := strings.TrimSpace(f.Output)
	if out == "" {
		return fmt.Sprintf("compiler %s failed: %v", f.Command, f.Err)
	}
	return fmt.Sprintf("compiler %s failed: %v\n%s", f.Command, f.Err, out)
}

func (f *Failure) Unwrap() error { return f.Err }

// ExecCompiler invokes a compiler executable as
//
//	<command> <intermediate> <output>
//
// and re-parses the produced document.
type ExecCompiler struct {
	Command string
	Timeout time.Duration
}

// Compile implements Compiler.
func (c *ExecCompiler) Compile(ctx context.Context, intermediatePath string) (*xmltree.Element, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	outPath := filepath.Join(os.TempDir(),
		fmt.Sprintf("urdf2mjcf-%d-compiled.xml", os.Getpid()))
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, c.Command, intermediatePath, outPath)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Info("running external compiler",
		zap.String("command", c.Command),
		zap.String("input", intermediatePath))

	if err := cmd.Run(); err != nil {
		return nil, &Failure{Command: c.Command, Output: output.String(), Err: err}
	}

	doc, err := xmltree.ParseFile(outPath)
	if err != nil {
		return nil, &Failure{
			Command: c.Command,
			Output:  output.String(),
			Err:     fmt.Errorf("parsing compiler output: %w", err),
		}
	}
	return doc, nil
}
