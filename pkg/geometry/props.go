// Package geometry computes mass properties of triangle meshes and defines
// the decimation contract used by the face-count guard.
package geometry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/martinhoang/urdf2mjcf/pkg/formats"
)

// ErrDegenerate is returned for meshes that enclose no volume.
var ErrDegenerate = errors.New("mesh encloses no volume")

// minVolume guards against numerically-zero solids.
const minVolume = 1e-12

// MassProperties holds the integral properties of a closed mesh for unit
// density. Callers scale Inertia and Volume by the actual density.
type MassProperties struct {
	Volume   float64
	Centroid r3.Vec
	// Inertia is the 3x3 inertia tensor about the centroid, unit density.
	Inertia *mat.SymDense
}

// canonical tetrahedron covariance (Blow/Binstock), columns-of-vertices form.
var canonicalCov = mat.NewDense(3, 3, []float64{
	1.0 / 60, 1.0 / 120, 1.0 / 120,
	1.0 / 120, 1.0 / 60, 1.0 / 120,
	1.0 / 120, 1.0 / 120, 1.0 / 60,
})

// Properties integrates volume, centroid and inertia over the solid bounded
// by the mesh, using signed tetrahedra against the origin. The mesh must be
// closed; open or flat meshes yield ErrDegenerate.
func Properties(m *formats.Mesh) (*MassProperties, error) {
	if m == nil || len(m.Faces) == 0 {
		return nil, ErrDegenerate
	}

	var (
		volume   float64
		weighted r3.Vec
		cov      = mat.NewDense(3, 3, nil)
		tmp      = mat.NewDense(3, 3, nil)
		term     = mat.NewDense(3, 3, nil)
	)
	for _, f := range m.Faces {
		a, b, c := m.Verts[f[0]], m.Verts[f[1]], m.Verts[f[2]]
		det := r3.Dot(a, r3.Cross(b, c))
		volume += det / 6
		s := r3.Add(a, r3.Add(b, c))
		weighted = r3.Add(weighted, r3.Scale(det, s))

		// Covariance contribution: det * A * C * Aᵀ with A = [a b c].
		A := mat.NewDense(3, 3, []float64{
			a.X, b.X, c.X,
			a.Y, b.Y, c.Y,
			a.Z, b.Z, c.Z,
		})
		tmp.Mul(A, canonicalCov)
		term.Mul(tmp, A.T())
		term.Scale(det, term)
		cov.Add(cov, term)
	}

	// Inward-wound meshes integrate negative; flip the whole accumulation.
	if volume < 0 {
		volume = -volume
		weighted = r3.Scale(-1, weighted)
		cov.Scale(-1, cov)
	}
	if volume < minVolume {
		return nil, fmt.Errorf("%w (volume %g)", ErrDegenerate, volume)
	}
	centroid := r3.Scale(1/(24*volume), weighted)

	// Covariance about origin -> inertia about origin -> inertia about
	// centroid (inverse parallel axis, unit density so mass = volume).
	inertia := mat.NewDense(3, 3, nil)
	tr := mat.Trace(cov)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := -cov.At(i, j)
			if i == j {
				v += tr
			}
			inertia.Set(i, j, v)
		}
	}
	d := centroid
	dd := r3.Dot(d, d)
	dv := []float64{d.X, d.Y, d.Z}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			shift := -dv[i] * dv[j]
			if i == j {
				shift += dd
			}
			inertia.Set(i, j, inertia.At(i, j)-volume*shift)
		}
	}

	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			// Force exact symmetry against floating noise.
			sym.SetSym(i, j, (inertia.At(i, j)+inertia.At(j, i))/2)
		}
	}
	return &MassProperties{Volume: volume, Centroid: centroid, Inertia: sym}, nil
}
