package geometry

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/martinhoang/urdf2mjcf/pkg/formats"
)

// Decimation failure reasons.
var (
	ErrTargetUnreachable = errors.New("decimation target unreachable")
	ErrEmptyMesh         = errors.New("cannot decimate empty mesh")
)

// Decimator reduces a mesh to at most targetFaces triangles, or reports a
// typed failure. Implementations must honor ctx cancellation.
type Decimator interface {
	Decimate(ctx context.Context, mesh *formats.Mesh, targetFaces int) (*formats.Mesh, error)
}

// GridDecimator is the built-in decimator. It clusters vertices on a uniform
// grid and collapses triangles whose corners fall into the same cell,
// coarsening the grid until the face budget is met.
type GridDecimator struct {
	// InitialCells is the starting grid resolution along the longest
	// bounding-box axis. Zero selects a default.
	InitialCells int
}

const defaultInitialCells = 256

// Decimate implements Decimator.
func (d *GridDecimator) Decimate(ctx context.Context, mesh *formats.Mesh, targetFaces int) (*formats.Mesh, error) {
	if mesh == nil || len(mesh.Faces) == 0 {
		return nil, ErrEmptyMesh
	}
	if targetFaces < 1 {
		return nil, fmt.Errorf("%w: target %d", ErrTargetUnreachable, targetFaces)
	}
	if len(mesh.Faces) <= targetFaces {
		return mesh, nil
	}

	cells := d.InitialCells
	if cells <= 0 {
		cells = defaultInitialCells
	}

	lo, hi := bounds(mesh)
	extent := math.Max(hi.X-lo.X, math.Max(hi.Y-lo.Y, hi.Z-lo.Z))
	if extent <= 0 {
		return nil, fmt.Errorf("%w: flat mesh", ErrTargetUnreachable)
	}

	for ; cells >= 1; cells /= 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clustered := clusterVertices(mesh, lo, extent/float64(cells))
		if clustered.FaceCount() <= targetFaces {
			clustered.Name = mesh.Name
			return clustered, nil
		}
	}
	return nil, fmt.Errorf("%w: %d faces, target %d", ErrTargetUnreachable, len(mesh.Faces), targetFaces)
}

func bounds(m *formats.Mesh) (lo, hi r3.Vec) {
	lo = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, v := range m.Verts {
		lo.X, lo.Y, lo.Z = math.Min(lo.X, v.X), math.Min(lo.Y, v.Y), math.Min(lo.Z, v.Z)
		hi.X, hi.Y, hi.Z = math.Max(hi.X, v.X), math.Max(hi.Y, v.Y), math.Max(hi.Z, v.Z)
	}
	return lo, hi
}

type cellKey struct{ x, y, z int32 }

func clusterVertices(m *formats.Mesh, lo r3.Vec, cellSize float64) *formats.Mesh {
	type cluster struct {
		sum   r3.Vec
		count int
		index int
	}
	clusters := make(map[cellKey]*cluster)
	vertexCluster := make([]cellKey, len(m.Verts))

	for i, v := range m.Verts {
		key := cellKey{
			x: int32(math.Floor((v.X - lo.X) / cellSize)),
			y: int32(math.Floor((v.Y - lo.Y) / cellSize)),
			z: int32(math.Floor((v.Z - lo.Z) / cellSize)),
		}
		vertexCluster[i] = key
		c, ok := clusters[key]
		if !ok {
			c = &cluster{index: -1}
			clusters[key] = c
		}
		c.sum = r3.Add(c.sum, v)
		c.count++
	}

	out := &formats.Mesh{}
	seen := make(map[[3]cellKey]struct{})
	for _, f := range m.Faces {
		ka, kb, kc := vertexCluster[f[0]], vertexCluster[f[1]], vertexCluster[f[2]]
		if ka == kb || kb == kc || ka == kc {
			continue // collapsed triangle
		}
		id := [3]cellKey{ka, kb, kc}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		var idx [3]int
		for i, k := range id {
			c := clusters[k]
			if c.index < 0 {
				c.index = len(out.Verts)
				out.Verts = append(out.Verts, r3.Scale(1/float64(c.count), c.sum))
			}
			idx[i] = c.index
		}
		out.Faces = append(out.Faces, idx)
	}
	return out
}
