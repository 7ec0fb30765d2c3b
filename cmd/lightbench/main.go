// Command lightbench runs scripted frames through the lighting manager for
// every level and prints timing and cache numbers.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"chosenoffset.com/lightcone/internal/bench"
	"chosenoffset.com/lightcone/internal/render/lighting"
	"chosenoffset.com/lightcone/internal/world/maploader"
)

var (
	colorHeader = color.Style{color.FgCyan, color.OpBold}
	colorLevel  = color.Style{color.FgWhite, color.OpBold}
	colorGood   = color.Style{color.FgGreen}
	colorWarn   = color.Style{color.FgYellow}
	colorBad    = color.Style{color.FgRed, color.OpBold}
	colorSubtle = color.Style{color.FgGray}
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevelFlag)
	if err != nil {
		log.WithError(err).Fatal("Invalid log level")
	}
	log.SetLevel(level)

	cfg, err := lighting.LoadConfig(*configFlag)
	if err != nil {
		log.WithError(err).Fatal("Failed to load lighting config")
	}
	if *noCacheFlag {
		cfg.Cache.Enabled = false
	}
	if *workersFlag >= 0 {
		cfg.Workers = *workersFlag
	}

	levels, err := maploader.LoadDir(*levelsFlag)
	if err != nil {
		log.WithError(err).Fatal("Failed to load levels")
	}

	presets := []string{cfg.DefaultPreset}
	if *presetFlag != "" {
		presets = strings.Split(*presetFlag, ",")
	}

	opts := bench.Options{
		Frames:      *framesFlag,
		Width:       *widthFlag,
		Height:      *heightFlag,
		ExtraLights: *lightsFlag,
		FlashEvery:  *flashFlag,
	}

	rule := strings.Repeat("-", ruleWidth())
	fmt.Println(colorHeader.Sprintf("%-16s %-12s %10s %10s %8s %12s %8s", "level", "preset", "frame", "trace", "hit%", "rays", "lit%"))
	fmt.Println(colorSubtle.Sprint(rule))

	failed := false
	for _, lvl := range levels {
		for _, name := range presets {
			run := *cfg
			run.DefaultPreset = strings.TrimSpace(name)

			res, err := bench.Run(lvl, &run, opts, log.WithField("level", lvl.Data.Name))
			if err != nil {
				fmt.Println(colorBad.Sprintf("%-16s %-12s %v", lvl.Data.Name, run.DefaultPreset, err))
				failed = true
				continue
			}
			printResult(res, run.DefaultPreset)
		}
	}

	fmt.Println(colorSubtle.Sprint(rule))
	fmt.Println(colorSubtle.Sprintf("%d frames at %dx%d, cache %v, %d workers",
		opts.Frames, opts.Width, opts.Height, cfg.Cache.Enabled, cfg.Workers))
	if failed {
		os.Exit(1)
	}
}

func printResult(res bench.Result, preset string) {
	s := res.Stats
	frame := res.FrameTime()
	trace := s.TraceTime / time.Duration(max(1, res.Frames))

	// a 60 Hz frame is 16.6ms; flag anything using more than a quarter of it
	frameStyle := colorGood
	switch {
	case frame.Milliseconds() >= 8:
		frameStyle = colorBad
	case frame.Milliseconds() >= 4:
		frameStyle = colorWarn
	}

	fmt.Printf("%s %-12s %s %10s %8s %12d %8s\n",
		colorLevel.Sprintf("%-16s", res.Level),
		preset,
		frameStyle.Sprintf("%10s", frame.Round(time.Microsecond)),
		trace.Round(time.Microsecond),
		fmt.Sprintf("%.1f", s.Cache.HitRate()*100),
		s.RaysCast,
		fmt.Sprintf("%.1f", res.LitFraction*100),
	)
}

// ruleWidth sizes the separator to the terminal, or 80 columns when stdout
// is not a terminal.
func ruleWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return min(width, 96)
}
