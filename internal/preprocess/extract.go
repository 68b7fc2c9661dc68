package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/martinhoang/urdf2mjcf/internal/logger"
	"github.com/martinhoang/urdf2mjcf/pkg/formats"
	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// extractComposites expands every composite mesh reference in the tree.
// Visual references become N sibling visuals, one per extractable sub-mesh,
// each with a generated material. Collision references are redirected to a
// single merged primitive file; collision geometry never carries materials.
// Failures degrade to the untouched opaque reference with a warning.
func (p *Preprocessor) extractComposites(root *xmltree.Element) {
	for _, link := range root.FindAll("link") {
		linkName := link.AttrDefault("name", "link")

		// Children are replaced during iteration; snapshot first.
		children := append([]*xmltree.Element(nil), link.Children...)
		for _, child := range children {
			meshEl := findMeshRef(child)
			if meshEl == nil {
				continue
			}
			filename, _ := meshEl.Attr("filename")
			if !isComposite(filename) {
				continue
			}
			var err error
			switch child.Tag {
			case "visual":
				err = p.extractVisual(link, child, linkName, filename)
			case "collision":
				err = p.convertCollision(meshEl, filename)
			default:
				continue
			}
			if err != nil {
				logger.Warn("composite extraction failed, keeping opaque reference",
					zap.String("link", linkName),
					zap.String("mesh", filename),
					zap.Error(err))
			}
		}
	}
}

func isComposite(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".dae")
}

// extractVisual replaces one composite visual with one visual per sub-mesh.
func (p *Preprocessor) extractVisual(link, visual *xmltree.Element, linkName, filename string) error {
	path, err := p.resolve(filename)
	if err != nil {
		return err
	}
	scene, err := formats.ParseCollada(path)
	if err != nil {
		return err
	}
	if len(scene.SubMeshes) == 0 {
		return formats.ErrNoSubMeshes
	}

	unitScale := scene.UnitMeter
	if unitScale == 0 {
		unitScale = p.opts.DefaultUnitScale
	}

	if err := os.MkdirAll(p.opts.MeshDir, 0755); err != nil {
		return err
	}

	record := &Extraction{
		Source:      path,
		TotalMeshes: len(scene.SubMeshes),
		Meshes:      make(map[string]*ManifestMesh),
	}

	// Write every sub-mesh file and build the replacement visuals before
	// touching the link, so a mid-extraction failure leaves the original
	// opaque reference in place.
	var replacements []*xmltree.Element
	for i, sub := range scene.SubMeshes {
		sub.Mesh.Scale(unitScale)

		file := p.uniqueFileName(fmt.Sprintf("%s_%s_%d", sub.GeometryID, materialOrName(sub), i))
		if err := formats.WriteBinarySTL(filepath.Join(p.opts.MeshDir, file), sub.Mesh); err != nil {
			return err
		}

		matName := p.uniqueMaterialName(linkName, sub.Name)
		rgba := [4]float64{1, 1, 1, 1}
		if sub.Color.RGBA != nil {
			rgba = *sub.Color.RGBA
		}

		nv := visual.Clone()
		nm := findMeshRef(nv)
		nm.SetAttr("filename", filepath.Join(p.opts.RefDir, file))
		if old := nv.Child("material"); old != nil {
			nv.Remove(old)
		}
		material := xmltree.New("material", "name", matName)
		material.Append(xmltree.New("color", "rgba",
			fmt.Sprintf("%g %g %g %g", rgba[0], rgba[1], rgba[2], rgba[3])))
		nv.Append(material)
		replacements = append(replacements, nv)

		record.ExtractedMeshes++
		record.Meshes[sub.Name] = &ManifestMesh{
			File:     file,
			Geometry: sub.GeometryID,
			Vertices: sub.Mesh.VertexCount(),
			Faces:    sub.Mesh.FaceCount(),
			Material: matName,
			RGBA:     rgba,
			Color:    manifestColor(sub.Color),
		}
	}

	idx := link.Index(visual)
	link.Remove(visual)
	for _, nv := range replacements {
		link.Insert(idx, nv)
		idx++
	}

	p.manifest.Add(record)
	logger.Info("extracted composite mesh",
		zap.String("source", path),
		zap.Int("sub_meshes", record.ExtractedMeshes))
	return nil
}

// convertCollision rewrites a composite collision reference to a single
// merged primitive file. Sub-mesh structure is irrelevant for contact.
func (p *Preprocessor) convertCollision(meshEl *xmltree.Element, filename string) error {
	path, err := p.resolve(filename)
	if err != nil {
		return err
	}
	merged, err := loadMesh(path, p.opts.DefaultUnitScale)
	if err != nil {
		return err
	}
	if merged.FaceCount() == 0 {
		return formats.ErrNoSubMeshes
	}
	if err := os.MkdirAll(p.opts.MeshDir, 0755); err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	file := p.uniqueFileName(base + "_collision")
	merged.Name = base
	if err := formats.WriteBinarySTL(filepath.Join(p.opts.MeshDir, file), merged); err != nil {
		return err
	}
	meshEl.SetAttr("filename", filepath.Join(p.opts.RefDir, file))
	return nil
}

func materialOrName(sub *formats.SubMesh) string {
	if sub.Material != "" {
		return sub.Material
	}
	return sub.Name
}

// uniqueFileName reserves an unused .stl file name for this run.
func (p *Preprocessor) uniqueFileName(base string) string {
	base = sanitizeFileName(base)
	name := base + ".stl"
	for n := 1; p.written[name]; n++ {
		name = fmt.Sprintf("%s_%d.stl", base, n)
	}
	p.written[name] = true
	return name
}

// uniqueMaterialName generates `{link}_{submesh}_mat`, appending a numeric
// suffix when the name is already used elsewhere in the document.
func (p *Preprocessor) uniqueMaterialName(linkName, subName string) string {
	base := sanitizeFileName(fmt.Sprintf("%s_%s_mat", linkName, subName))
	name := base
	for n := 1; p.materials[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	p.materials[name] = true
	return name
}

func sanitizeFileName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_").Replace(name)
}
