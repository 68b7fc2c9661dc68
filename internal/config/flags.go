package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagOutput    = flag.String("o", "", "Output document path")
	flagMeshDir   = flag.String("mesh-dir", "", "Directory for converted mesh assets")
	flagFaceLimit = flag.Int("face-limit", 0, "Maximum triangles per mesh asset")
	flagUnitScale = flag.Float64("unit-scale", 0, "Fallback unit scale for scenes without unit metadata")
	flagWorkers   = flag.Int("workers", 0, "Parallel asset checks (0 = all CPUs)")
	flagCompiler  = flag.String("compiler", "", "External compiler command")
	flagEstimate  = flag.Bool("estimate-inertia", false, "Estimate missing inertial blocks from mesh geometry")
	flagKeepRPY   = flag.Bool("keep-inertial-rpy", false, "Leave rotated inertial frames untouched")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// InputArg returns the positional source document argument, if any.
func InputArg() string {
	return flag.Arg(0)
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if arg := InputArg(); arg != "" {
		cfg.Input.Path = arg
	}
	if *flagOutput != "" {
		cfg.Output.Path = *flagOutput
	}
	if *flagMeshDir != "" {
		cfg.Output.MeshDir = *flagMeshDir
	}
	if *flagFaceLimit > 0 {
		cfg.Mesh.FaceLimit = *flagFaceLimit
	}
	if *flagUnitScale > 0 {
		cfg.Mesh.DefaultUnitScale = *flagUnitScale
	}
	if *flagWorkers > 0 {
		cfg.Mesh.Workers = *flagWorkers
	}
	if *flagCompiler != "" {
		cfg.Compiler.Command = *flagCompiler
	}
	if *flagEstimate {
		cfg.Inertial.Estimate = true
	}
	if *flagKeepRPY {
		cfg.Inertial.ZeroRPY = false
	}
}
