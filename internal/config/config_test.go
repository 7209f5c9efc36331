package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ishara.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Vote.HistorySize != 10 || cfg.Vote.MinSupport != 5 {
		t.Errorf("expected history 10 / support 5, got %d / %d", cfg.Vote.HistorySize, cfg.Vote.MinSupport)
	}
	if cfg.Vote.WordMinConfidence != 0.15 {
		t.Errorf("expected word confidence 0.15, got %v", cfg.Vote.WordMinConfidence)
	}
	if cfg.Vote.LetterMinConfidence != 0.4 {
		t.Errorf("expected letter confidence 0.4, got %v", cfg.Vote.LetterMinConfidence)
	}
	if cfg.Camera.FailureThreshold != 30 {
		t.Errorf("expected failure threshold 30, got %d", cfg.Camera.FailureThreshold)
	}
	if cfg.Camera.Settle != 300*time.Millisecond {
		t.Errorf("expected settle 300ms, got %v", cfg.Camera.Settle)
	}
	if cfg.Models.SequenceLength != 15 {
		t.Errorf("expected sequence length 15, got %d", cfg.Models.SequenceLength)
	}
	if cfg.Detector.MinConfidence != 0.3 {
		t.Errorf("expected detection confidence 0.3, got %v", cfg.Detector.MinConfidence)
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Phrase.Language != DefaultLanguage {
			t.Errorf("expected language %q, got %q", DefaultLanguage, cfg.Phrase.Language)
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
data_dir: /tmp/ishara-test
camera:
  max_index: 5
  settle: 100ms
vote:
  history_size: 8
  min_support: 4
  word_repeat_cooldown: 3s
phrase:
  language: en
  letter_corrections:
    H: B
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Camera.MaxIndex != 5 {
			t.Errorf("expected max index 5, got %d", cfg.Camera.MaxIndex)
		}
		if cfg.Camera.Settle != 100*time.Millisecond {
			t.Errorf("expected settle 100ms, got %v", cfg.Camera.Settle)
		}
		if cfg.Vote.WordRepeatCooldown != 3*time.Second {
			t.Errorf("expected cooldown 3s, got %v", cfg.Vote.WordRepeatCooldown)
		}
		if cfg.Phrase.LetterCorrections["H"] != "B" {
			t.Errorf("expected H->B correction, got %v", cfg.Phrase.LetterCorrections)
		}
		if cfg.DBPath() != filepath.Join("/tmp/ishara-test", "ishara.db") {
			t.Errorf("unexpected db path %q", cfg.DBPath())
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		path := writeConfig(t, "camera:\n  bogus: 1\n")
		if _, err := Load(path); err == nil {
			t.Error("expected error for unknown field")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "phrase:\n  language: en\n")
		t.Setenv("ISHARA_LANGUAGE", "ar")
		t.Setenv("ISHARA_CAMERA_MAX_INDEX", "7")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Phrase.Language != "ar" {
			t.Errorf("expected language ar, got %q", cfg.Phrase.Language)
		}
		if cfg.Camera.MaxIndex != 7 {
			t.Errorf("expected max index 7, got %d", cfg.Camera.MaxIndex)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"support exceeds history", func(c *Config) { c.Vote.HistorySize = 3; c.Vote.MinSupport = 4 }},
		{"confidence out of range", func(c *Config) { c.Detector.MinConfidence = 1.5 }},
		{"word confidence above one", func(c *Config) { c.Vote.WordMinConfidence = 15 }},
		{"letter confidence above one", func(c *Config) { c.Vote.LetterMinConfidence = 1.01 }},
		{"target fps too high", func(c *Config) { c.Camera.TargetFPS = 2_000_000_000 }},
		{"too many hands", func(c *Config) { c.Detector.MaxHands = 3 }},
		{"unsupported language", func(c *Config) { c.Phrase.Language = "de" }},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
