package preprocess

import (
	"encoding/json"
	"os"

	"github.com/martinhoang/urdf2mjcf/pkg/formats"
)

// ManifestColor mirrors the full color record of an extracted material.
// Absent channels are omitted from the persisted JSON.
type ManifestColor struct {
	RGBA      *[4]float64 `json:"rgba,omitempty"`
	Ambient   *[4]float64 `json:"ambient,omitempty"`
	Specular  *[4]float64 `json:"specular,omitempty"`
	Emission  *[4]float64 `json:"emission,omitempty"`
	Shininess *float64    `json:"shininess,omitempty"`
}

// ManifestMesh records one extracted sub-mesh.
type ManifestMesh struct {
	File     string        `json:"file"`
	Geometry string        `json:"geometry"`
	Vertices int           `json:"vertices"`
	Faces    int           `json:"faces"`
	Material string        `json:"material"`
	RGBA     [4]float64    `json:"rgba"`
	Color    ManifestColor `json:"color"`
}

// Extraction is the record of one extraction pass over one composite source.
type Extraction struct {
	Source          string                   `json:"source"`
	TotalMeshes     int                      `json:"total_meshes"`
	ExtractedMeshes int                      `json:"extracted_meshes"`
	Meshes          map[string]*ManifestMesh `json:"meshes"`
}

// Manifest aggregates the per-composite extraction records of one run under
// a single extractions array. Entries are append-only; the same composite
// referenced twice yields two entries.
type Manifest struct {
	Extractions []*Extraction `json:"extractions"`
}

// Add appends a record for one extraction pass.
func (m *Manifest) Add(e *Extraction) {
	m.Extractions = append(m.Extractions, e)
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func manifestColor(c formats.ColorInfo) ManifestColor {
	return ManifestColor{
		RGBA:      c.RGBA,
		Ambient:   c.Ambient,
		Specular:  c.Specular,
		Emission:  c.Emission,
		Shininess: c.Shininess,
	}
}
