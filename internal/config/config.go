package config

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type DetectorKind string

const (
	DetectorRemote DetectorKind = "remote"
	DetectorOpenCV DetectorKind = "opencv"

	DefaultConfigPath  string = "config.json"
	DefaultEnvPath     string = ".env"
	DefaultDetectorUrl string = "localhost:8080"

	DefaultInferenceSize int  = 640
	DefaultPlaybackFPS   uint = 24
)

var fs = afero.NewOsFs()

type WebcamConfig struct {
	DeviceID string `json:"device_id"`
}

type Config struct {
	mu sync.RWMutex

	Detector    DetectorKind `json:"detector"`
	DetectorUrl string       `json:"detector_url"`
	ModelPath   string       `json:"model_path"`
	ClassesPath string       `json:"classes_path"`

	InferenceWidth  int  `json:"inference_width"`
	InferenceHeight int  `json:"inference_height"`
	PlaybackFPS     uint `json:"playback_fps"`

	OutputDir   string `json:"output_dir"`
	SaveResults bool   `json:"save_results"`
	RealTime    bool   `json:"real_time"`

	Webcam WebcamConfig `json:"webcam"`

	LogLevel string `json:"log_level"`
}

func (c *Config) GetPlaybackFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.PlaybackFPS
}

func (c *Config) SetPlaybackFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PlaybackFPS = fps
}

func (c *Config) GetInferenceSize() (width, height int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.InferenceWidth, c.InferenceHeight
}

func (c *Config) GetDeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Webcam.DeviceID
}

func (c *Config) SetDeviceID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Webcam.DeviceID = id
}

// SetModes stores the last toggle values so the next session starts with them.
func (c *Config) SetModes(saveResults, realTime bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SaveResults = saveResults
	c.RealTime = realTime
}

func (c *Config) Modes() (saveResults, realTime bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SaveResults, c.RealTime
}

func (c *Config) Save(path string) error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing config %s", path)
	}
	return nil
}

func (c *Config) SaveByDefault() error {
	return c.Save(DefaultConfigPath)
}

// LoadConfigFile never fails: a missing or broken file yields the defaults,
// with the problem returned alongside for logging.
func LoadConfigFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return NewDefaultConfig(), errors.Wrapf(err, "parsing config %s", path)
	}

	cfg.fillDefaults()
	return cfg, nil
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. A missing file is fine.
func LoadEnvFile(path string) error {
	if _, err := fs.Stat(path); err != nil {
		return nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}

	for k, v := range values {
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, v)
		}
	}
	return nil
}

// ApplyEnv overrides file values with ROADVISION_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := lookup("ROADVISION_DETECTOR"); ok && v != "" {
		c.Detector = DetectorKind(v)
	}
	if v, ok := lookup("ROADVISION_DETECTOR_URL"); ok && v != "" {
		c.DetectorUrl = v
	}
	if v, ok := lookup("ROADVISION_MODEL"); ok && v != "" {
		c.ModelPath = v
	}
	if v, ok := lookup("ROADVISION_CLASSES"); ok && v != "" {
		c.ClassesPath = v
	}
	if v, ok := lookup("ROADVISION_OUTPUT_DIR"); ok && v != "" {
		c.OutputDir = v
	}
	if v, ok := lookup("ROADVISION_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("ROADVISION_PLAYBACK_FPS"); ok {
		if fps, err := strconv.ParseUint(v, 10, 32); err == nil && fps > 0 {
			c.PlaybackFPS = uint(fps)
		}
	}
}

// Validate reports settings the app cannot run with.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.Detector {
	case DetectorRemote:
		if c.DetectorUrl == "" {
			return errors.New("detector_url is required for the remote detector")
		}
	case DetectorOpenCV:
		if c.ModelPath == "" {
			return errors.New("model_path is required for the opencv detector")
		}
	default:
		return errors.Errorf("unknown detector: %s", c.Detector)
	}

	if c.InferenceWidth <= 0 || c.InferenceHeight <= 0 {
		return errors.Errorf("invalid inference size %dx%d", c.InferenceWidth, c.InferenceHeight)
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := NewDefaultConfig()

	if c.Detector == "" {
		c.Detector = def.Detector
	}
	if c.DetectorUrl == "" {
		c.DetectorUrl = def.DetectorUrl
	}
	if c.InferenceWidth == 0 {
		c.InferenceWidth = def.InferenceWidth
	}
	if c.InferenceHeight == 0 {
		c.InferenceHeight = def.InferenceHeight
	}
	if c.PlaybackFPS == 0 {
		c.PlaybackFPS = def.PlaybackFPS
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

func NewDefaultConfig() *Config {
	return &Config{
		Detector:        DetectorRemote,
		DetectorUrl:     DefaultDetectorUrl,
		ModelPath:       "good_models/v1.onnx",
		ClassesPath:     "",
		InferenceWidth:  DefaultInferenceSize,
		InferenceHeight: DefaultInferenceSize,
		PlaybackFPS:     DefaultPlaybackFPS,
		OutputDir:       "results",
		Webcam:          WebcamConfig{DeviceID: "/dev/video0"},
		LogLevel:        "info",
	}
}
