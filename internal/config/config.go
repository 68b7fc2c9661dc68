// Package config handles converter configuration loading and management.
package config

import "time"

// Config holds all converter settings.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Mesh     MeshConfig     `yaml:"mesh"`
	Inertial InertialConfig `yaml:"inertial"`
	Compiler CompilerConfig `yaml:"compiler"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InputConfig holds source document settings.
type InputConfig struct {
	Path string `yaml:"path"` // Source robot description file
}

// OutputConfig holds destination settings.
type OutputConfig struct {
	Path       string `yaml:"path"`        // Final document path
	MeshDir    string `yaml:"mesh_dir"`    // Directory receiving converted mesh assets
	SaveConfig bool   `yaml:"save_config"` // Write the effective config next to the output
}

// MeshConfig holds mesh processing settings.
type MeshConfig struct {
	DefaultUnitScale float64       `yaml:"default_unit_scale"` // Fallback when a scene declares no unit
	FaceLimit        int           `yaml:"face_limit"`         // Maximum triangles per asset
	BackupSuffix     string        `yaml:"backup_suffix"`      // Appended to pre-decimation backups
	Workers          int           `yaml:"workers"`            // Parallel asset checks; 0 = NumCPU
	DecimateTimeout  time.Duration `yaml:"decimate_timeout"`   // Per-asset decimation budget
}

// InertialConfig holds inertial preprocessing settings.
type InertialConfig struct {
	ZeroRPY  bool `yaml:"zero_rpy"` // Rotate tensors into link frames
	Estimate bool `yaml:"estimate"` // Fill missing tensors from mesh geometry
}

// CompilerConfig holds external compiler settings.
type CompilerConfig struct {
	Command string        `yaml:"command"` // Compiler executable; empty skips compilation
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			MeshDir:    "meshes",
			SaveConfig: true,
		},
		Mesh: MeshConfig{
			DefaultUnitScale: 0.001,
			FaceLimit:        200000,
			BackupSuffix:     ".orig",
			Workers:          0,
			DecimateTimeout:  2 * time.Minute,
		},
		Inertial: InertialConfig{
			ZeroRPY:  true,
			Estimate: false,
		},
		Compiler: CompilerConfig{
			Command: "",
			Timeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
