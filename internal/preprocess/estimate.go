package preprocess

import (
	"errors"
	"fmt"

	"github.com/martinhoang/urdf2mjcf/pkg/formats"
	"github.com/martinhoang/urdf2mjcf/pkg/geometry"
	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// InertiaPreconditionError reports why a link's inertial block could not be
// estimated. The block is left exactly as found.
type InertiaPreconditionError struct {
	Link   string
	Reason string
}

func (e *InertiaPreconditionError) Error() string {
	return fmt.Sprintf("cannot estimate inertia for link %q: %s", e.Link, e.Reason)
}

// estimateInertia fills in a link's missing tensor from its mesh geometry and
// declared mass, assuming uniform density. The visual mesh is preferred, then
// collision. Never fabricates values: any unmet precondition is returned as
// an InertiaPreconditionError and the block stays untouched.
func (p *Preprocessor) estimateInertia(link *xmltree.Element) error {
	name := link.AttrDefault("name", "?")

	inertial := link.Child("inertial")
	if inertial == nil || inertial.Child("mass") == nil {
		return &InertiaPreconditionError{Link: name, Reason: "no declared mass"}
	}
	if inertial.Child("inertia") != nil {
		return nil // already has a tensor
	}
	massAttr, _ := inertial.Child("mass").Attr("value")
	mass, err := evalExpr(massAttr)
	if err != nil || mass <= 0 {
		return &InertiaPreconditionError{Link: name, Reason: fmt.Sprintf("bad mass %q", massAttr)}
	}

	mesh, err := p.linkMesh(link)
	if err != nil {
		return &InertiaPreconditionError{Link: name, Reason: err.Error()}
	}

	props, err := geometry.Properties(mesh)
	if err != nil {
		if errors.Is(err, geometry.ErrDegenerate) {
			return &InertiaPreconditionError{Link: name, Reason: "degenerate mesh volume"}
		}
		return &InertiaPreconditionError{Link: name, Reason: err.Error()}
	}

	density := mass / props.Volume

	origin := inertial.Child("origin")
	if origin == nil {
		origin = xmltree.New("origin")
		inertial.Insert(0, origin)
	}
	origin.SetAttr("xyz", fmt.Sprintf("%.10g %.10g %.10g",
		props.Centroid.X, props.Centroid.Y, props.Centroid.Z))
	origin.SetAttr("rpy", "0 0 0")

	inertia := xmltree.New("inertia")
	scaled := func(i, j int) float64 { return density * props.Inertia.At(i, j) }
	inertia.SetAttr("ixx", fmt.Sprintf("%.10g", scaled(0, 0)))
	inertia.SetAttr("ixy", fmt.Sprintf("%.10g", scaled(0, 1)))
	inertia.SetAttr("ixz", fmt.Sprintf("%.10g", scaled(0, 2)))
	inertia.SetAttr("iyy", fmt.Sprintf("%.10g", scaled(1, 1)))
	inertia.SetAttr("iyz", fmt.Sprintf("%.10g", scaled(1, 2)))
	inertia.SetAttr("izz", fmt.Sprintf("%.10g", scaled(2, 2)))
	inertial.Append(inertia)
	return nil
}

// linkMesh loads the first mesh geometry of the link, visual first then
// collision, with any declared per-axis scale applied.
func (p *Preprocessor) linkMesh(link *xmltree.Element) (*formats.Mesh, error) {
	for _, kind := range []string{"visual", "collision"} {
		for _, g := range link.FindAll(kind) {
			meshEl := findMeshRef(g)
			if meshEl == nil {
				continue
			}
			filename, _ := meshEl.Attr("filename")
			path, err := p.resolve(filename)
			if err != nil {
				return nil, err
			}
			mesh, err := loadMesh(path, p.opts.DefaultUnitScale)
			if err != nil {
				return nil, err
			}
			if scaleAttr, ok := meshEl.Attr("scale"); ok {
				s, err := parseVec3Expr(scaleAttr)
				if err != nil {
					return nil, fmt.Errorf("mesh scale %q: %w", scaleAttr, err)
				}
				scaleAxes(mesh, s)
			}
			return mesh, nil
		}
	}
	return nil, errors.New("no mesh geometry")
}

// loadMesh reads any supported mesh format as a single triangle soup.
// Composite scenes are merged across sub-meshes and unit-scaled to meters.
func loadMesh(path string, defaultUnitScale float64) (*formats.Mesh, error) {
	format, err := formats.DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format != formats.FormatCollada {
		return formats.ParseSTLFile(path)
	}
	scene, err := formats.ParseCollada(path)
	if err != nil {
		return nil, err
	}
	scale := scene.UnitMeter
	if scale == 0 {
		scale = defaultUnitScale
	}
	merged := &formats.Mesh{}
	for _, sub := range scene.SubMeshes {
		base := len(merged.Verts)
		merged.Verts = append(merged.Verts, sub.Mesh.Verts...)
		for _, f := range sub.Mesh.Faces {
			merged.Faces = append(merged.Faces, [3]int{f[0] + base, f[1] + base, f[2] + base})
		}
	}
	merged.Scale(scale)
	return merged, nil
}

func scaleAxes(m *formats.Mesh, s [3]float64) {
	for i := range m.Verts {
		m.Verts[i].X *= s[0]
		m.Verts[i].Y *= s[1]
		m.Verts[i].Z *= s[2]
	}
}

// findMeshRef returns the mesh element under a visual or collision geometry,
// or nil for primitive geometry.
func findMeshRef(g *xmltree.Element) *xmltree.Element {
	geom := g.Child("geometry")
	if geom == nil {
		return nil
	}
	return geom.Child("mesh")
}
