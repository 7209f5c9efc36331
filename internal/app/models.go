package app

import (
	"log/slog"

	"github.com/ayusman/ishara/internal/classify"
)

// LoadModels loads the letter and word artifacts. A path that is empty or
// fails to load yields a nil model, which disables that mode only.
func LoadModels(staticPath, sequencePath string, logger *slog.Logger) (static, sequence classify.Model) {
	if logger == nil {
		logger = slog.Default()
	}
	return loadModel("letters", staticPath, logger), loadModel("words", sequencePath, logger)
}

func loadModel(mode, path string, logger *slog.Logger) classify.Model {
	if path == "" {
		logger.Warn("no model configured, mode disabled", "mode", mode)
		return nil
	}
	m, err := classify.LoadModel(path)
	if err != nil {
		logger.Warn("failed to load model, mode disabled", "mode", mode, "path", path, "error", err)
		return nil
	}
	logger.Info("model loaded", "mode", mode, "path", path, "classes", len(m.Classes()), "input_width", m.InputWidth())
	return m
}
