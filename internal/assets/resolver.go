// Package assets locates mesh files referenced by a robot description and
// enforces the downstream compiler's face-count limit on them.
package assets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// ErrPackageRef marks ROS package:// references, which need a workspace
// overlay to resolve and are out of scope here.
var ErrPackageRef = errors.New("cannot resolve package:// reference without a ROS workspace")

var envRefPattern = regexp.MustCompile(`\$\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)

// Resolve turns a mesh reference from a document into a filesystem path.
// Handles file:// URIs, ${env:VAR} expansion and paths relative to baseDir.
func Resolve(ref, baseDir string) (string, error) {
	ref = envRefPattern.ReplaceAllStringFunc(ref, func(m string) string {
		name := envRefPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})

	if strings.HasPrefix(ref, "package://") {
		return "", fmt.Errorf("%w: %s", ErrPackageRef, ref)
	}
	ref = strings.TrimPrefix(ref, "file://")

	if filepath.IsAbs(ref) || baseDir == "" {
		return ref, nil
	}
	joined := filepath.Join(baseDir, ref)
	if _, err := os.Stat(joined); err == nil {
		return joined, nil
	}
	return ref, nil
}

// MeshRefs collects the unique mesh file references of the tree in document
// order.
func MeshRefs(root *xmltree.Element) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, m := range root.FindAll("mesh") {
		f, ok := m.Attr("filename")
		if !ok || seen[f] {
			continue
		}
		seen[f] = true
		refs = append(refs, f)
	}
	return refs
}

// CopyFile copies src to dst, creating parent directories as needed.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
