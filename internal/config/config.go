// Package config loads the Ishara runtime configuration from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete Ishara configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	HTTPAddr string         `yaml:"http_addr"`
	LogLevel string         `yaml:"log_level"` // debug, info, warn, error
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Models   ModelsConfig   `yaml:"models"`
	Vote     VoteConfig     `yaml:"vote"`
	Phrase   PhraseConfig   `yaml:"phrase"`
	Speech   SpeechConfig   `yaml:"speech"`
	Gallery  GalleryConfig  `yaml:"gallery"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Tray     TrayConfig     `yaml:"tray"`
}

// CameraConfig controls device probing and read-failure recovery.
type CameraConfig struct {
	MaxIndex         int           `yaml:"max_index"`         // indices 0..max_index-1 are tried
	Settle           time.Duration `yaml:"settle"`            // wait after open before the test read
	TestReads        int           `yaml:"test_reads"`
	FailureThreshold int           `yaml:"failure_threshold"` // consecutive failed reads before reconnect
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	TargetFPS        int           `yaml:"target_fps"`
	NetworkURL       string        `yaml:"network_url"` // optional, used instead of local probing
	MotionThreshold  float64       `yaml:"motion_threshold"`
}

// DetectorConfig controls hand landmark detection.
type DetectorConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	MaxHands      int     `yaml:"max_hands"`
}

// ModelsConfig locates the classifier artifacts.
type ModelsConfig struct {
	StaticPath     string `yaml:"static_path"`
	SequencePath   string `yaml:"sequence_path"`
	SequenceLength int    `yaml:"sequence_length"`
}

// VoteConfig holds the commit thresholds for both recognition modes.
type VoteConfig struct {
	HistorySize         int           `yaml:"history_size"`
	MinSupport          int           `yaml:"min_support"`
	WordMinConfidence   float64       `yaml:"word_min_confidence"`
	WordRepeatCooldown  time.Duration `yaml:"word_repeat_cooldown"`
	LetterMinConfidence float64       `yaml:"letter_min_confidence"`
	LetterCooldown      time.Duration `yaml:"letter_cooldown"`
}

// PhraseConfig controls phrase rendering.
type PhraseConfig struct {
	Language          string            `yaml:"language"` // fr, en, ar
	LetterCorrections map[string]string `yaml:"letter_corrections"`
	TranslationsFile  string            `yaml:"translations_file"` // imported into the store at startup when set
}

// SpeechConfig configures the text-to-speech and speech-to-text helpers.
type SpeechConfig struct {
	PluginDir     string        `yaml:"plugin_dir"`
	Synthesizer   string        `yaml:"synthesizer"` // plugin name
	Listener      string        `yaml:"listener"`    // plugin name
	SpeakTimeout  time.Duration `yaml:"speak_timeout"`
	ListenTimeout time.Duration `yaml:"listen_timeout"`
	DisplayHold   time.Duration `yaml:"display_hold"`
	MissHold      time.Duration `yaml:"miss_hold"`
	LetterHold    time.Duration `yaml:"letter_hold"`
	SpaceHold     time.Duration `yaml:"space_hold"`
}

// GalleryConfig locates gesture reference images.
type GalleryConfig struct {
	Dir          string        `yaml:"dir"`
	FetchURL     string        `yaml:"fetch_url"` // template containing {key}
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// MQTTConfig contains the optional commit notification broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// TrayConfig toggles the system tray front-end.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default values.
const (
	DefaultHTTPAddr            = "127.0.0.1:8080"
	DefaultMaxIndex            = 3
	DefaultSettle              = 300 * time.Millisecond
	DefaultTestReads           = 2
	DefaultFailureThreshold    = 30
	DefaultReconnectDelay      = time.Second
	DefaultTargetFPS           = 30
	MaxTargetFPS               = 120
	DefaultMotionThreshold     = 1.0
	DefaultMinConfidence       = 0.3
	DefaultMaxHands            = 2
	DefaultSequenceLength      = 15
	DefaultHistorySize         = 10
	DefaultMinSupport          = 5
	DefaultWordMinConfidence   = 0.15
	DefaultWordRepeatCooldown  = 2 * time.Second
	DefaultLetterMinConfidence = 0.4
	DefaultLetterCooldown      = 2 * time.Second
	DefaultLanguage            = "fr"
	DefaultSpeakTimeout        = 15 * time.Second
	DefaultListenTimeout       = 8 * time.Second
	DefaultDisplayHold         = 4 * time.Second
	DefaultMissHold            = 2 * time.Second
	DefaultLetterHold          = 2 * time.Second
	DefaultSpaceHold           = time.Second
	DefaultFetchTimeout        = 5 * time.Second
	DefaultMQTTTopic           = "ishara/phrase"
)

// Languages lists the supported render languages.
var Languages = []string{"fr", "en", "ar"}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Defaults returns a Config with every field set to its default.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a YAML configuration file, applies environment
// overrides and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from ISHARA_* environment variables.
func (c *Config) ApplyEnv() {
	c.DataDir = getenvDefault("ISHARA_DATA_DIR", c.DataDir)
	c.HTTPAddr = getenvDefault("ISHARA_HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getenvDefault("ISHARA_LOG_LEVEL", c.LogLevel)
	c.Camera.NetworkURL = getenvDefault("ISHARA_CAMERA_URL", c.Camera.NetworkURL)
	c.Camera.MaxIndex = getenvIntDefault("ISHARA_CAMERA_MAX_INDEX", c.Camera.MaxIndex)
	c.Models.StaticPath = getenvDefault("ISHARA_STATIC_MODEL", c.Models.StaticPath)
	c.Models.SequencePath = getenvDefault("ISHARA_SEQUENCE_MODEL", c.Models.SequencePath)
	c.Phrase.Language = getenvDefault("ISHARA_LANGUAGE", c.Phrase.Language)
	c.Speech.PluginDir = getenvDefault("ISHARA_PLUGIN_DIR", c.Speech.PluginDir)
	c.MQTT.Broker = getenvDefault("ISHARA_MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Username = getenvDefault("ISHARA_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getenvDefault("ISHARA_MQTT_PASSWORD", c.MQTT.Password)
	c.Tray.Enabled = getenvBoolDefault("ISHARA_TRAY", c.Tray.Enabled)
}

// Validate fills unset fields with defaults and rejects impossible values.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.Vote.MinSupport > c.Vote.HistorySize {
		return fmt.Errorf("%w: vote.min_support (%d) exceeds vote.history_size (%d)",
			ErrInvalid, c.Vote.MinSupport, c.Vote.HistorySize)
	}
	if c.Camera.TargetFPS > MaxTargetFPS {
		return fmt.Errorf("%w: camera.target_fps must be at most %d, got %d", ErrInvalid, MaxTargetFPS, c.Camera.TargetFPS)
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"detector.min_confidence", c.Detector.MinConfidence},
		{"vote.word_min_confidence", c.Vote.WordMinConfidence},
		{"vote.letter_min_confidence", c.Vote.LetterMinConfidence},
	} {
		if p.v < 0 || p.v > 1 {
			return fmt.Errorf("%w: %s must be in [0,1], got %v", ErrInvalid, p.name, p.v)
		}
	}
	if c.Detector.MaxHands > 2 {
		return fmt.Errorf("%w: detector.max_hands must be at most 2, got %d", ErrInvalid, c.Detector.MaxHands)
	}
	if !supportedLanguage(c.Phrase.Language) {
		return fmt.Errorf("%w: unsupported phrase.language %q", ErrInvalid, c.Phrase.Language)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2", ErrInvalid)
	}

	return nil
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "ishara.db")
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".ishara")
		} else {
			c.DataDir = ".ishara"
		}
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	cam := &c.Camera
	if cam.MaxIndex <= 0 {
		cam.MaxIndex = DefaultMaxIndex
	}
	if cam.Settle <= 0 {
		cam.Settle = DefaultSettle
	}
	if cam.TestReads <= 0 {
		cam.TestReads = DefaultTestReads
	}
	if cam.FailureThreshold <= 0 {
		cam.FailureThreshold = DefaultFailureThreshold
	}
	if cam.ReconnectDelay <= 0 {
		cam.ReconnectDelay = DefaultReconnectDelay
	}
	if cam.TargetFPS <= 0 {
		cam.TargetFPS = DefaultTargetFPS
	}
	if cam.MotionThreshold <= 0 {
		cam.MotionThreshold = DefaultMotionThreshold
	}

	if c.Detector.MinConfidence == 0 {
		c.Detector.MinConfidence = DefaultMinConfidence
	}
	if c.Detector.MaxHands <= 0 {
		c.Detector.MaxHands = DefaultMaxHands
	}

	if c.Models.StaticPath == "" {
		c.Models.StaticPath = filepath.Join(c.DataDir, "models", "letters.forest.json")
	}
	if c.Models.SequencePath == "" {
		c.Models.SequencePath = filepath.Join(c.DataDir, "models", "words.forest.json")
	}
	if c.Models.SequenceLength <= 0 {
		c.Models.SequenceLength = DefaultSequenceLength
	}

	v := &c.Vote
	if v.HistorySize <= 0 {
		v.HistorySize = DefaultHistorySize
	}
	if v.MinSupport <= 0 {
		v.MinSupport = DefaultMinSupport
	}
	if v.WordMinConfidence == 0 {
		v.WordMinConfidence = DefaultWordMinConfidence
	}
	if v.WordRepeatCooldown <= 0 {
		v.WordRepeatCooldown = DefaultWordRepeatCooldown
	}
	if v.LetterMinConfidence == 0 {
		v.LetterMinConfidence = DefaultLetterMinConfidence
	}
	if v.LetterCooldown <= 0 {
		v.LetterCooldown = DefaultLetterCooldown
	}

	if c.Phrase.Language == "" {
		c.Phrase.Language = DefaultLanguage
	}

	s := &c.Speech
	if s.PluginDir == "" {
		s.PluginDir = filepath.Join(c.DataDir, "plugins")
	}
	if s.Synthesizer == "" {
		s.Synthesizer = "espeak"
	}
	if s.Listener == "" {
		s.Listener = "stt-command"
	}
	if s.SpeakTimeout <= 0 {
		s.SpeakTimeout = DefaultSpeakTimeout
	}
	if s.ListenTimeout <= 0 {
		s.ListenTimeout = DefaultListenTimeout
	}
	if s.DisplayHold <= 0 {
		s.DisplayHold = DefaultDisplayHold
	}
	if s.MissHold <= 0 {
		s.MissHold = DefaultMissHold
	}
	if s.LetterHold <= 0 {
		s.LetterHold = DefaultLetterHold
	}
	if s.SpaceHold <= 0 {
		s.SpaceHold = DefaultSpaceHold
	}

	if c.Gallery.Dir == "" {
		c.Gallery.Dir = filepath.Join(c.DataDir, "data")
	}
	if c.Gallery.FetchTimeout <= 0 {
		c.Gallery.FetchTimeout = DefaultFetchTimeout
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "ishara"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = DefaultMQTTTopic
	}
}

func supportedLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvBoolDefault(key string, val bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return val
	}
	return b
}
