package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Binary STL layout: 80-byte header, uint32 triangle count, then one 50-byte
// record per triangle (normal, three vertices, attribute byte count).
const (
	binarySTLHeaderSize = 84
	binarySTLRecordSize = 50
)

// STL format errors.
var (
	ErrInvalidSTL = fmt.Errorf("invalid STL data")
)

func binaryTriangleCount(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data[80:84])
}

// ParseSTL parses either STL encoding from raw bytes.
func ParseSTL(data []byte, name string) (*Mesh, error) {
	if sniffSTL(data) == FormatSTLASCII {
		return parseASCIISTL(data, name)
	}
	return parseBinarySTL(data, name)
}

// ParseSTLFile parses the STL file at path.
func ParseSTLFile(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseSTL(data, name)
}

func parseBinarySTL(data []byte, name string) (*Mesh, error) {
	if len(data) < binarySTLHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	count := int(binaryTriangleCount(data))
	need := binarySTLHeaderSize + count*binarySTLRecordSize
	if len(data) < need {
		return nil, fmt.Errorf("%w: declared %d triangles, have %d bytes", ErrTruncated, count, len(data))
	}
	mesh := &Mesh{
		Name:  name,
		Verts: make([]r3.Vec, 0, count*3),
		Faces: make([][3]int, 0, count),
	}
	off := binarySTLHeaderSize
	for i := 0; i < count; i++ {
		// Skip the 12-byte normal; it is re-derivable from the vertices.
		rec := data[off : off+binarySTLRecordSize]
		for v := 0; v < 3; v++ {
			base := 12 + v*12
			mesh.Verts = append(mesh.Verts, r3.Vec{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[base:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[base+4:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[base+8:]))),
			})
		}
		n := len(mesh.Verts)
		mesh.Faces = append(mesh.Faces, [3]int{n - 3, n - 2, n - 1})
		off += binarySTLRecordSize
	}
	return mesh, nil
}

func parseASCIISTL(data []byte, name string) (*Mesh, error) {
	mesh := &Mesh{Name: name}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var corner int
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) != 4 {
				return nil, fmt.Errorf("%w: bad vertex line %q", ErrInvalidSTL, sc.Text())
			}
			var v r3.Vec
			var err error
			if v.X, err = strconv.ParseFloat(fields[1], 64); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSTL, err)
			}
			if v.Y, err = strconv.ParseFloat(fields[2], 64); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSTL, err)
			}
			if v.Z, err = strconv.ParseFloat(fields[3], 64); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSTL, err)
			}
			mesh.Verts = append(mesh.Verts, v)
			corner++
			if corner == 3 {
				n := len(mesh.Verts)
				mesh.Faces = append(mesh.Faces, [3]int{n - 3, n - 2, n - 1})
				corner = 0
			}
		case "endsolid":
			if corner != 0 {
				return nil, fmt.Errorf("%w: dangling vertices at endsolid", ErrInvalidSTL)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// CountSTLFaces returns the triangle count of the STL at path without
// building a mesh. Binary files only need the 84-byte header; text files are
// scanned for facet lines.
func CountSTLFaces(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if sniffSTL(data) == FormatSTLBinary {
		if len(data) < binarySTLHeaderSize {
			return 0, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
		}
		return int(binaryTriangleCount(data)), nil
	}
	count := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "facet") {
			count++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// WriteBinarySTL writes mesh to path in the binary STL encoding. Face normals
// are computed from winding order.
func WriteBinarySTL(path string, mesh *Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	header := make([]byte, 80)
	copy(header, mesh.Name)
	if _, err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(mesh.Faces))); err != nil {
		f.Close()
		return err
	}

	rec := make([]byte, binarySTLRecordSize)
	for _, face := range mesh.Faces {
		a, b, c := mesh.Verts[face[0]], mesh.Verts[face[1]], mesh.Verts[face[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		putVec(rec[0:], n)
		putVec(rec[12:], a)
		putVec(rec[24:], b)
		putVec(rec[36:], c)
		rec[48], rec[49] = 0, 0
		if _, err := w.Write(rec); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func putVec(dst []byte, v r3.Vec) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(float32(v.Z)))
}
