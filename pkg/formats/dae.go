package formats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// COLLADA errors.
var (
	ErrNotCollada     = errors.New("not a COLLADA document")
	ErrNoSubMeshes    = errors.New("no extractable sub-meshes")
	ErrBadIndexStream = errors.New("malformed primitive index stream")
)

// ColorInfo holds the material color channels a composite scene can declare.
// Nil pointers mean the channel is absent from the effect.
type ColorInfo struct {
	RGBA      *[4]float64 // diffuse
	Ambient   *[4]float64
	Specular  *[4]float64
	Emission  *[4]float64
	Shininess *float64
}

// SubMesh is one extractable primitive of a composite scene, with its
// geometry and resolved material color.
type SubMesh struct {
	Name       string // sanitized, unique within the scene
	GeometryID string
	Material   string // material name, "" when the primitive binds none
	Color      ColorInfo
	Mesh       *Mesh
}

// Scene is a parsed composite-scene (COLLADA) file.
type Scene struct {
	UnitName  string
	UnitMeter float64 // scale factor to meters; 0 when the file declares no unit
	SubMeshes []*SubMesh
}

// ParseCollada parses the composite scene at path. Vertices are returned in
// the file's declared unit; callers apply unit scaling.
func ParseCollada(path string) (*Scene, error) {
	root, err := xmltree.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return parseColladaTree(root)
}

// ParseColladaString parses a composite scene held in a string.
func ParseColladaString(s string) (*Scene, error) {
	root, err := xmltree.ParseString(s)
	if err != nil {
		return nil, err
	}
	return parseColladaTree(root)
}

func parseColladaTree(root *xmltree.Element) (*Scene, error) {
	if root.Tag != "COLLADA" {
		return nil, fmt.Errorf("%w: root element <%s>", ErrNotCollada, root.Tag)
	}
	scene := &Scene{}

	if asset := root.Child("asset"); asset != nil {
		if unit := asset.Child("unit"); unit != nil {
			scene.UnitName = unit.AttrDefault("name", "")
			if meter, ok := unit.Attr("meter"); ok {
				if v, err := strconv.ParseFloat(meter, 64); err == nil && v > 0 {
					scene.UnitMeter = v
				}
			}
		}
	}

	effects := parseEffects(root.Child("library_effects"))
	materials := parseMaterials(root.Child("library_materials"), effects)

	libGeo := root.Child("library_geometries")
	if libGeo == nil {
		return scene, nil
	}
	for _, geo := range libGeo.Children {
		if geo.Tag != "geometry" {
			continue
		}
		if err := parseGeometry(scene, geo, materials); err != nil {
			return nil, err
		}
	}
	return scene, nil
}

// colladaMaterial resolves a primitive's material symbol to a name and color.
type colladaMaterial struct {
	name  string
	color ColorInfo
}

func parseEffects(lib *xmltree.Element) map[string]ColorInfo {
	effects := make(map[string]ColorInfo)
	if lib == nil {
		return effects
	}
	for _, eff := range lib.Children {
		if eff.Tag != "effect" {
			continue
		}
		id, ok := eff.Attr("id")
		if !ok {
			continue
		}
		var info ColorInfo
		eff.Walk(func(n *xmltree.Element) bool {
			switch n.Tag {
			case "diffuse":
				info.RGBA = channelColor(n)
			case "ambient":
				info.Ambient = channelColor(n)
			case "specular":
				info.Specular = channelColor(n)
			case "emission":
				info.Emission = channelColor(n)
			case "shininess":
				if f := n.Child("float"); f != nil {
					if v, err := strconv.ParseFloat(strings.TrimSpace(f.Text), 64); err == nil {
						info.Shininess = &v
					}
				}
			}
			return true
		})
		effects[id] = info
	}
	return effects
}

// channelColor parses the <color> child of a shading channel. Texture-bound
// channels have no literal color and yield nil.
func channelColor(channel *xmltree.Element) *[4]float64 {
	c := channel.Child("color")
	if c == nil {
		return nil
	}
	fields := strings.Fields(c.Text)
	if len(fields) < 3 {
		return nil
	}
	rgba := [4]float64{0, 0, 0, 1}
	for i := 0; i < len(fields) && i < 4; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil
		}
		rgba[i] = v
	}
	return &rgba
}

func parseMaterials(lib *xmltree.Element, effects map[string]ColorInfo) map[string]colladaMaterial {
	materials := make(map[string]colladaMaterial)
	if lib == nil {
		return materials
	}
	for _, m := range lib.Children {
		if m.Tag != "material" {
			continue
		}
		id, ok := m.Attr("id")
		if !ok {
			continue
		}
		cm := colladaMaterial{name: m.AttrDefault("name", id)}
		if inst := m.Child("instance_effect"); inst != nil {
			url := strings.TrimPrefix(inst.AttrDefault("url", ""), "#")
			cm.color = effects[url]
		}
		materials[id] = cm
	}
	return materials
}

func parseGeometry(scene *Scene, geo *xmltree.Element, materials map[string]colladaMaterial) error {
	geoID := geo.AttrDefault("id", fmt.Sprintf("geometry_%d", len(scene.SubMeshes)))
	meshEl := geo.Child("mesh")
	if meshEl == nil {
		return nil
	}

	// Position sources, indexed by id and by <vertices> indirection.
	sources := make(map[string][]float64)
	for _, src := range meshEl.Children {
		if src.Tag != "source" {
			continue
		}
		id, ok := src.Attr("id")
		if !ok {
			continue
		}
		if fa := src.Child("float_array"); fa != nil {
			vals, err := parseFloats(fa.Text)
			if err != nil {
				return fmt.Errorf("geometry %s: float_array: %w", geoID, err)
			}
			sources[id] = vals
		}
	}
	vertexSource := make(map[string]string)
	for _, v := range meshEl.Children {
		if v.Tag != "vertices" {
			continue
		}
		id, ok := v.Attr("id")
		if !ok {
			continue
		}
		for _, in := range v.Children {
			if in.Tag == "input" && in.AttrDefault("semantic", "") == "POSITION" {
				vertexSource[id] = strings.TrimPrefix(in.AttrDefault("source", ""), "#")
			}
		}
	}

	primIdx := 0
	for _, prim := range meshEl.Children {
		if prim.Tag != "triangles" && prim.Tag != "polylist" {
			continue
		}
		sub, err := parsePrimitive(prim, geoID, primIdx, sources, vertexSource, materials)
		if err != nil {
			return err
		}
		if sub != nil {
			scene.SubMeshes = append(scene.SubMeshes, sub)
		}
		primIdx++
	}
	return nil
}

func parsePrimitive(prim *xmltree.Element, geoID string, primIdx int,
	sources map[string][]float64, vertexSource map[string]string,
	materials map[string]colladaMaterial) (*SubMesh, error) {

	// Inputs determine the index stride and where vertex indices live.
	stride, vertexOffset, posSource := 0, -1, ""
	for _, in := range prim.Children {
		if in.Tag != "input" {
			continue
		}
		off, _ := strconv.Atoi(in.AttrDefault("offset", "0"))
		if off+1 > stride {
			stride = off + 1
		}
		if in.AttrDefault("semantic", "") == "VERTEX" {
			vertexOffset = off
			ref := strings.TrimPrefix(in.AttrDefault("source", ""), "#")
			if src, ok := vertexSource[ref]; ok {
				posSource = src
			} else {
				posSource = ref
			}
		}
	}
	if vertexOffset < 0 || stride == 0 {
		return nil, nil // no vertex input, not extractable
	}
	positions, ok := sources[posSource]
	if !ok || len(positions)%3 != 0 {
		return nil, fmt.Errorf("geometry %s: missing position source %q", geoID, posSource)
	}

	pEl := prim.Child("p")
	if pEl == nil {
		return nil, nil
	}
	indices, err := parseInts(pEl.Text)
	if err != nil {
		return nil, fmt.Errorf("geometry %s: %w: %v", geoID, ErrBadIndexStream, err)
	}

	mesh := &Mesh{}
	for i := 0; i+2 < len(positions); i += 3 {
		mesh.Verts = append(mesh.Verts, r3.Vec{X: positions[i], Y: positions[i+1], Z: positions[i+2]})
	}

	vertexAt := func(group int) (int, error) {
		pos := group*stride + vertexOffset
		if pos >= len(indices) {
			return 0, fmt.Errorf("geometry %s: %w", geoID, ErrBadIndexStream)
		}
		vi := indices[pos]
		if vi < 0 || vi >= len(mesh.Verts) {
			return 0, fmt.Errorf("geometry %s: %w: vertex index %d", geoID, ErrBadIndexStream, vi)
		}
		return vi, nil
	}

	if prim.Tag == "triangles" {
		groups := len(indices) / stride
		for g := 0; g+3 <= groups; g += 3 {
			a, err := vertexAt(g)
			if err != nil {
				return nil, err
			}
			b, err := vertexAt(g + 1)
			if err != nil {
				return nil, err
			}
			c, err := vertexAt(g + 2)
			if err != nil {
				return nil, err
			}
			mesh.Faces = append(mesh.Faces, [3]int{a, b, c})
		}
	} else { // polylist: fan-triangulate each polygon
		vcEl := prim.Child("vcount")
		if vcEl == nil {
			return nil, nil
		}
		vcounts, err := parseInts(vcEl.Text)
		if err != nil {
			return nil, fmt.Errorf("geometry %s: vcount: %w", geoID, err)
		}
		group := 0
		for _, vc := range vcounts {
			if vc < 3 {
				group += vc
				continue
			}
			first, err := vertexAt(group)
			if err != nil {
				return nil, err
			}
			for k := 1; k+1 < vc; k++ {
				b, err := vertexAt(group + k)
				if err != nil {
					return nil, err
				}
				c, err := vertexAt(group + k + 1)
				if err != nil {
					return nil, err
				}
				mesh.Faces = append(mesh.Faces, [3]int{first, b, c})
			}
			group += vc
		}
	}
	if len(mesh.Faces) == 0 {
		return nil, nil
	}

	sub := &SubMesh{GeometryID: geoID, Mesh: mesh}
	symbol := prim.AttrDefault("material", "")
	if symbol != "" {
		if cm, ok := resolveMaterial(symbol, materials); ok {
			sub.Material = cm.name
			sub.Color = cm.color
		} else {
			sub.Material = symbol
		}
	}
	if sub.Material != "" {
		sub.Name = sanitizeName(fmt.Sprintf("%s_%s_%d", geoID, sub.Material, primIdx))
	} else {
		sub.Name = sanitizeName(fmt.Sprintf("%s_%d", geoID, primIdx))
	}
	mesh.Name = sub.Name
	return sub, nil
}

// resolveMaterial maps a primitive material symbol to a library material.
// Symbols usually equal the material id; exporters also emit "<id>-material".
func resolveMaterial(symbol string, materials map[string]colladaMaterial) (colladaMaterial, bool) {
	if cm, ok := materials[symbol]; ok {
		return cm, true
	}
	if cm, ok := materials[strings.TrimSuffix(symbol, "-material")]; ok {
		return cm, true
	}
	for _, cm := range materials {
		if cm.name == symbol {
			return cm, true
		}
	}
	return colladaMaterial{}, false
}

func sanitizeName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(name)
}

func parseFloats(text string) ([]float64, error) {
	fields := strings.Fields(text)
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func parseInts(text string) ([]int, error) {
	fields := strings.Fields(text)
	vals := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// CountFaces returns the face count of the asset at path for any supported
// format. Composite scenes sum across contained sub-meshes.
func CountFaces(path string) (int, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return 0, err
	}
	switch format {
	case FormatCollada:
		scene, err := ParseCollada(path)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, sub := range scene.SubMeshes {
			total += sub.Mesh.FaceCount()
		}
		return total, nil
	default:
		return CountSTLFaces(path)
	}
}
