package main

import (
	"image"
	"os"

	"github.com/spf13/afero"

	"roadvision/internal/config"
	"roadvision/internal/logger"
	"roadvision/internal/models"
	ui "roadvision/internal/ui"
	"roadvision/processing/detector"
	"roadvision/processing/media"
	"roadvision/processing/pipeline"
)

func main() {
	if err := config.LoadEnvFile(config.DefaultEnvPath); err != nil {
		logger.Warn("%v", err)
	}

	cfg, err := config.LoadConfigFile(config.DefaultConfigPath)
	if err != nil {
		logger.Warn("using default config: %v", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	logger.SetLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config: %v", err)
		os.Exit(1)
	}

	log := logger.New()

	det, closeDet := newDetector(cfg, log)
	defer closeDet()

	w, h := cfg.GetInferenceSize()
	proc := pipeline.New(det, log, w, h)
	proc.NewExporter = func() media.Exporter {
		return media.NewDirExporter(afero.NewOsFs(), cfg.OutputDir)
	}

	app := ui.CreateApp(proc, cfg, log)

	app.Run()
}

// newDetector never fails: a detector that cannot be built is replaced by
// one that reports the problem on every frame, so the app still shows
// originals.
func newDetector(cfg *config.Config, log *logger.Logger) (detector.Detector, func()) {
	switch cfg.Detector {
	case config.DetectorOpenCV:
		var classes models.Classes
		if cfg.ClassesPath != "" {
			c, err := models.LoadClasses(afero.NewOsFs(), cfg.ClassesPath)
			if err != nil {
				log.Warnf("Error loading classes: %v", err)
			}
			classes = c
		}

		w, h := cfg.GetInferenceSize()
		log.Infof("Loading model from %s...", cfg.ModelPath)
		det, err := detector.NewOpenCVDetector(cfg.ModelPath, classes, image.Pt(w, h))
		if err != nil {
			log.Errorf("Error loading model: %v", err)
			return detector.Unavailable(err), func() {}
		}
		log.Infof("Model %s loaded successfully.", cfg.ModelPath)
		return det, func() { det.Close() }

	default:
		det := detector.NewRemoteDetector(cfg.DetectorUrl)
		log.Infof("Using detection server %s", det.URL())
		return det, func() { det.Close() }
	}
}
