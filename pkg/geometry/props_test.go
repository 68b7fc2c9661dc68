package geometry

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/martinhoang/urdf2mjcf/pkg/formats"
)

// unitCube returns a closed unit cube spanning [0,1]^3 with outward winding.
func unitCube() *formats.Mesh {
	verts := []r3.Vec{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{4, 5, 6}, {4, 6, 7}, // top
		{0, 1, 5}, {0, 5, 4}, // front
		{2, 3, 7}, {2, 7, 6}, // back
		{0, 4, 7}, {0, 7, 3}, // left
		{1, 2, 6}, {1, 6, 5}, // right
	}
	return &formats.Mesh{Name: "cube", Verts: verts, Faces: faces}
}

func TestPropertiesUnitCube(t *testing.T) {
	props, err := Properties(unitCube())
	if err != nil {
		t.Fatalf("Properties failed: %v", err)
	}

	if math.Abs(props.Volume-1) > 1e-12 {
		t.Errorf("expected volume 1, got %g", props.Volume)
	}
	for _, c := range []float64{props.Centroid.X, props.Centroid.Y, props.Centroid.Z} {
		if math.Abs(c-0.5) > 1e-12 {
			t.Errorf("expected centroid 0.5, got %g", c)
		}
	}

	// Unit-density unit cube: I = diag(1/6) about the centroid.
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0 / 6
			}
			if math.Abs(props.Inertia.At(i, j)-want) > 1e-12 {
				t.Errorf("inertia[%d,%d] = %g, want %g", i, j, props.Inertia.At(i, j), want)
			}
		}
	}
}

func TestPropertiesTranslationInvariant(t *testing.T) {
	// The inertia about the centroid must not depend on where the mesh sits.
	shifted := unitCube()
	for i := range shifted.Verts {
		shifted.Verts[i] = r3.Add(shifted.Verts[i], r3.Vec{X: 10, Y: -4, Z: 7})
	}

	base, err := Properties(unitCube())
	if err != nil {
		t.Fatal(err)
	}
	moved, err := Properties(shifted)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(base.Volume-moved.Volume) > 1e-9 {
		t.Errorf("volume changed under translation: %g != %g", base.Volume, moved.Volume)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(base.Inertia.At(i, j)-moved.Inertia.At(i, j)) > 1e-9 {
				t.Errorf("inertia[%d,%d] changed under translation", i, j)
			}
		}
	}
}

func TestPropertiesInwardWinding(t *testing.T) {
	inward := unitCube()
	for i, f := range inward.Faces {
		inward.Faces[i] = [3]int{f[0], f[2], f[1]}
	}

	props, err := Properties(inward)
	if err != nil {
		t.Fatalf("Properties failed: %v", err)
	}
	if math.Abs(props.Volume-1) > 1e-12 {
		t.Errorf("expected volume 1 for inward winding, got %g", props.Volume)
	}
}

func TestPropertiesDegenerate(t *testing.T) {
	flat := &formats.Mesh{
		Verts: []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
		Faces: [][3]int{{0, 1, 2}},
	}
	if _, err := Properties(flat); !errors.Is(err, ErrDegenerate) {
		t.Errorf("expected ErrDegenerate for flat mesh, got %v", err)
	}
	if _, err := Properties(nil); !errors.Is(err, ErrDegenerate) {
		t.Errorf("expected ErrDegenerate for nil mesh, got %v", err)
	}
}

func TestPropertiesScaledCube(t *testing.T) {
	big := unitCube()
	big.Scale(2)

	props, err := Properties(big)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(props.Volume-8) > 1e-9 {
		t.Errorf("expected volume 8, got %g", props.Volume)
	}
	// Unit density: mass 8, side 2 -> Ixx = 8*(4+4)/12 = 16/3.
	if math.Abs(props.Inertia.At(0, 0)-16.0/3) > 1e-9 {
		t.Errorf("expected Ixx 16/3, got %g", props.Inertia.At(0, 0))
	}
}
