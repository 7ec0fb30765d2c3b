// Command lightterm previews a level's lighting in the terminal, one overlay
// sample per character cell.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"chosenoffset.com/lightcone/internal/render/lighting"
	"chosenoffset.com/lightcone/internal/world/maploader"
)

var (
	configFlag  = flag.String("config", "data/lighting.json", "lighting config (JSON)")
	levelsFlag  = flag.String("levels", "data/levels", "directory of level files")
	presetFlag  = flag.String("preset", "", "preset to start with")
	logFileFlag = flag.String("log", "", "write logs to this file (the screen is taken by the preview)")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *logFileFlag != "" {
		f, err := os.OpenFile(*logFileFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).Fatal("Failed to open log file")
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetLevel(logrus.ErrorLevel)
	}

	cfg, err := lighting.LoadConfig(*configFlag)
	if err != nil {
		log.WithError(err).Fatal("Failed to load lighting config")
	}
	if *presetFlag != "" {
		cfg.DefaultPreset = *presetFlag
	}
	levels, err := maploader.LoadDir(*levelsFlag)
	if err != nil {
		log.WithError(err).Fatal("Failed to load levels")
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.WithError(err).Fatal("Failed to create screen")
	}
	if err := screen.Init(); err != nil {
		log.WithError(err).Fatal("Failed to initialize screen")
	}

	if err := run(screen, cfg, levels, log); err != nil {
		screen.Fini()
		log.WithError(err).Error("Preview failed")
		os.Exit(1)
	}
	screen.Fini()
}

func run(screen tcell.Screen, cfg *lighting.Config, levels []*maploader.Map, log logrus.FieldLogger) error {
	cols, rows := screen.Size()
	lights, err := lighting.NewManager(cfg, cols*cellW, rows*cellH,
		lighting.WithLogger(log.WithField("component", "lighting")))
	if err != nil {
		return err
	}
	v, err := newView(levels, lights, cols, rows, log.WithField("component", "preview"))
	if err != nil {
		return err
	}

	const tick = 16 * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !v.handleKey(ev) {
					return nil
				}
			case *tcell.EventResize:
				v.resize(screen.Size())
				screen.Sync()
			}

		case <-ticker.C:
			v.step(tick.Seconds())
			v.draw(screen)
		}
	}
}
