package formats

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// buildBinarySTL assembles a binary STL byte blob from triangles given as
// three corner coordinates each.
func buildBinarySTL(tris [][3][3]float32) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(len(tris)))
	for _, tri := range tris {
		// normal, unused by the parser
		binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 1})
		for _, corner := range tri {
			binary.Write(&buf, binary.LittleEndian, corner)
		}
		binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

var testTriangles = [][3][3]float32{
	{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}},
}

func TestParseBinarySTL(t *testing.T) {
	data := buildBinarySTL(testTriangles)

	mesh, err := ParseSTL(data, "test")
	if err != nil {
		t.Fatalf("ParseSTL failed: %v", err)
	}
	if mesh.FaceCount() != 2 {
		t.Errorf("expected 2 faces, got %d", mesh.FaceCount())
	}
	if mesh.VertexCount() != 6 {
		t.Errorf("expected 6 vertices, got %d", mesh.VertexCount())
	}
	v := mesh.Verts[1]
	if v.X != 1 || v.Y != 0 || v.Z != 0 {
		t.Errorf("unexpected vertex 1: %+v", v)
	}
}

func TestParseBinarySTLTruncated(t *testing.T) {
	data := buildBinarySTL(testTriangles)

	if _, err := ParseSTL(data[:40], "test"); err == nil {
		t.Error("expected error for truncated header")
	}
	// Header claims 2 triangles but records are cut short.
	if _, err := parseBinarySTL(data[:100], "test"); err == nil {
		t.Error("expected error for truncated records")
	}
}

func TestParseASCIISTL(t *testing.T) {
	data := []byte(`solid cube
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 1 0 0
    vertex 0 1 0
  endloop
endfacet
endsolid cube
`)
	mesh, err := ParseSTL(data, "cube")
	if err != nil {
		t.Fatalf("ParseSTL failed: %v", err)
	}
	if mesh.FaceCount() != 1 {
		t.Errorf("expected 1 face, got %d", mesh.FaceCount())
	}
	if mesh.Verts[2].Y != 1 {
		t.Errorf("unexpected vertex 2: %+v", mesh.Verts[2])
	}
}

func TestParseASCIISTLBadVertex(t *testing.T) {
	data := []byte("solid x\nvertex 1 2\nendsolid x\n")
	if _, err := ParseSTL(data, "x"); err == nil {
		t.Error("expected error for short vertex line")
	}
}

func TestSniffSTL(t *testing.T) {
	binData := buildBinarySTL(testTriangles)
	if got := sniffSTL(binData); got != FormatSTLBinary {
		t.Errorf("expected binary, got %v", got)
	}

	// ASCII files also start with "solid" but fail the size check.
	asciiData := []byte("solid thing\nendsolid thing\n")
	if got := sniffSTL(asciiData); got != FormatSTLASCII {
		t.Errorf("expected ascii, got %v", got)
	}
}

func TestCountSTLFaces(t *testing.T) {
	dir := t.TempDir()

	binPath := filepath.Join(dir, "bin.stl")
	if err := os.WriteFile(binPath, buildBinarySTL(testTriangles), 0644); err != nil {
		t.Fatal(err)
	}
	n, err := CountSTLFaces(binPath)
	if err != nil {
		t.Fatalf("CountSTLFaces failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 faces, got %d", n)
	}

	asciiPath := filepath.Join(dir, "ascii.stl")
	ascii := "solid s\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex 1 0 0\nvertex 0 1 0\nendloop\nendfacet\nendsolid s\n"
	if err := os.WriteFile(asciiPath, []byte(ascii), 0644); err != nil {
		t.Fatal(err)
	}
	n, err = CountSTLFaces(asciiPath)
	if err != nil {
		t.Fatalf("CountSTLFaces failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 face, got %d", n)
	}
}

func TestWriteBinarySTLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.stl")

	orig, err := ParseSTL(buildBinarySTL(testTriangles), "out")
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteBinarySTL(path, orig); err != nil {
		t.Fatalf("WriteBinarySTL failed: %v", err)
	}

	got, err := ParseSTLFile(path)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if got.FaceCount() != orig.FaceCount() {
		t.Errorf("face count changed: %d != %d", got.FaceCount(), orig.FaceCount())
	}
	for i := range got.Verts {
		if d := math.Abs(got.Verts[i].X - orig.Verts[i].X); d > 1e-6 {
			t.Errorf("vertex %d drifted by %g", i, d)
		}
	}

	format, err := DetectFormat(path)
	if err != nil {
		t.Fatalf("DetectFormat failed: %v", err)
	}
	if format != FormatSTLBinary {
		t.Errorf("expected binary format, got %v", format)
	}
}
