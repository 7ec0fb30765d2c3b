package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/lightcone/internal/game"
	ebitenrender "chosenoffset.com/lightcone/internal/render/ebiten"
	"chosenoffset.com/lightcone/internal/render/lighting"
	"chosenoffset.com/lightcone/internal/world/maploader"
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
	if *presetFlag != "" {
		cfg.DefaultPreset = *presetFlag
	}
	if *noCacheFlag {
		cfg.Cache.Enabled = false
	}

	levels, err := maploader.LoadDir(*levelsFlag)
	if err != nil {
		log.WithError(err).Fatal("Failed to load levels")
	}

	// Initialize the renderer backend (ebiten)
	renderer := ebitenrender.NewRenderer()
	inputMgr := ebitenrender.NewInputManager()
	engine := ebitenrender.NewEngine()

	lights, err := lighting.NewManager(cfg, *widthFlag, *heightFlag,
		lighting.WithLogger(log.WithField("component", "lighting")),
		lighting.WithRenderer(renderer),
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to create lighting manager")
	}

	g, err := game.New(levels, lights, renderer, inputMgr, *widthFlag, *heightFlag, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to start game")
	}

	// Set up the window
	engine.SetWindowSize(*widthFlag, *heightFlag)
	engine.SetWindowTitle("Lightcone")
	engine.SetWindowResizable(false)
	engine.SetTPS(60)

	log.WithField("levels", len(levels)).Info("Starting game")
	if err := engine.RunGame(g); err != nil {
		log.WithError(err).Error("Game exited with an error")
		os.Exit(1)
	}

	s := lights.Stats()
	log.WithFields(logrus.Fields{
		"frames":   s.Frames,
		"hit_rate": s.Cache.HitRate(),
		"rays":     s.RaysCast,
	}).Info("Bye")
}
