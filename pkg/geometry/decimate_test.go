package geometry

import (
	"context"
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/martinhoang/urdf2mjcf/pkg/formats"
)

// gridMesh builds an n x n quad grid in the xy plane, two triangles per quad.
func gridMesh(n int) *formats.Mesh {
	m := &formats.Mesh{Name: "grid"}
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			m.Verts = append(m.Verts, r3.Vec{X: float64(x), Y: float64(y)})
		}
	}
	idx := func(x, y int) int { return y*(n+1) + x }
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			a, b, c, d := idx(x, y), idx(x+1, y), idx(x+1, y+1), idx(x, y+1)
			m.Faces = append(m.Faces, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	return m
}

func TestGridDecimatorReduces(t *testing.T) {
	mesh := gridMesh(10) // 200 faces
	d := &GridDecimator{}

	out, err := d.Decimate(context.Background(), mesh, 50)
	if err != nil {
		t.Fatalf("Decimate failed: %v", err)
	}
	if out.FaceCount() > 50 {
		t.Errorf("expected at most 50 faces, got %d", out.FaceCount())
	}
	if out.FaceCount() > mesh.FaceCount() {
		t.Errorf("decimation increased face count: %d > %d", out.FaceCount(), mesh.FaceCount())
	}
	if out.Name != "grid" {
		t.Errorf("mesh name lost: %q", out.Name)
	}
}

func TestGridDecimatorAlreadyUnderTarget(t *testing.T) {
	mesh := gridMesh(2) // 8 faces
	d := &GridDecimator{}

	out, err := d.Decimate(context.Background(), mesh, 100)
	if err != nil {
		t.Fatalf("Decimate failed: %v", err)
	}
	if out != mesh {
		t.Error("mesh under target should be returned unchanged")
	}
}

func TestGridDecimatorEmptyMesh(t *testing.T) {
	d := &GridDecimator{}
	if _, err := d.Decimate(context.Background(), &formats.Mesh{}, 10); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("expected ErrEmptyMesh, got %v", err)
	}
	if _, err := d.Decimate(context.Background(), nil, 10); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("expected ErrEmptyMesh for nil, got %v", err)
	}
}

func TestGridDecimatorBadTarget(t *testing.T) {
	d := &GridDecimator{}
	if _, err := d.Decimate(context.Background(), gridMesh(4), 0); !errors.Is(err, ErrTargetUnreachable) {
		t.Errorf("expected ErrTargetUnreachable, got %v", err)
	}
}

func TestGridDecimatorHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &GridDecimator{}
	if _, err := d.Decimate(ctx, gridMesh(10), 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
