// Package formats provides parsers for the mesh asset formats referenced by
// robot descriptions: binary and ASCII triangle-soup STL files and the
// COLLADA composite-scene dialect.
package formats

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Format identifies the on-disk encoding of a mesh asset.
type Format int

// Supported asset formats.
const (
	FormatUnknown   Format = iota
	FormatSTLBinary        // triangle-soup-binary
	FormatSTLASCII         // triangle-soup-text
	FormatCollada          // composite-scene
)

// String returns a human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatSTLBinary:
		return "stl-binary"
	case FormatSTLASCII:
		return "stl-ascii"
	case FormatCollada:
		return "collada"
	default:
		return "unknown"
	}
}

// Format errors.
var (
	ErrUnknownFormat = errors.New("unrecognized mesh format")
	ErrTruncated     = errors.New("truncated mesh data")
)

// Mesh is an indexed triangle mesh. Binary STL stores one vertex record per
// corner, so parsed meshes may contain duplicate vertices.
type Mesh struct {
	Name  string
	Verts []r3.Vec
	Faces [][3]int
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Verts) }

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int { return len(m.Faces) }

// Scale multiplies every vertex by s in place.
func (m *Mesh) Scale(s float64) {
	if s == 1 {
		return
	}
	for i := range m.Verts {
		m.Verts[i] = r3.Scale(s, m.Verts[i])
	}
}

// DetectFormat inspects path and returns the asset format. The extension is
// consulted first; .stl files are further sniffed to distinguish the binary
// and text encodings, since "solid" headers appear in both.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dae":
		return FormatCollada, nil
	case ".stl":
		data, err := os.ReadFile(path)
		if err != nil {
			return FormatUnknown, err
		}
		return sniffSTL(data), nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
	}
}

// sniffSTL distinguishes binary from ASCII STL content. A binary file is
// internally consistent: its declared triangle count matches the file size.
func sniffSTL(data []byte) Format {
	if len(data) >= binarySTLHeaderSize {
		count := binaryTriangleCount(data)
		if int64(len(data)) == int64(binarySTLHeaderSize)+int64(count)*binarySTLRecordSize {
			return FormatSTLBinary
		}
	}
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return FormatSTLASCII
	}
	return FormatSTLBinary
}
