package main

import "flag"

var (
	configFlag = flag.String("config", "data/lighting.json", "lighting config (JSON)")
	levelsFlag = flag.String("levels", "data/levels", "directory of level files")

	framesFlag = flag.Int("frames", 600, "frames to simulate per level")
	widthFlag  = flag.Int("width", 1280, "viewport width in pixels")
	heightFlag = flag.Int("height", 800, "viewport height in pixels")

	// presetFlag runs every level once per named preset; empty means the config default.
	presetFlag = flag.String("preset", "", "comma separated presets to compare")

	noCacheFlag = flag.Bool("no-cache", false, "disable the visibility cache")
	workersFlag = flag.Int("workers", -1, "tracer workers (-1 keeps the config value)")
	lightsFlag  = flag.Int("lights", 4, "extra static lights per level")
	flashFlag   = flag.Int("flash-every", 90, "frames between flashes, 0 disables")

	logLevelFlag = flag.String("log-level", "warn", "log level (debug, info, warn, error)")
)
