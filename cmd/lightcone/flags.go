package main

import "flag"

// Command-line flags for the demo window and data locations.
var (
	// configFlag points at the lighting presets file; a missing file uses the built-in presets.
	configFlag = flag.String("config", "data/lighting.json", "lighting config (JSON)")

	// levelsFlag is the directory scanned for *.json level files.
	levelsFlag = flag.String("levels", "data/levels", "directory of level files")

	widthFlag  = flag.Int("width", 1280, "window width in pixels")
	heightFlag = flag.Int("height", 800, "window height in pixels")

	// presetFlag overrides the config's default preset.
	presetFlag = flag.String("preset", "", "preset to start with")

	// noCacheFlag disables the visibility cache, for comparing frame times.
	noCacheFlag = flag.Bool("no-cache", false, "disable the visibility cache")

	logLevelFlag = flag.String("log-level", "info", "log level (debug, info, warn, error)")
)
