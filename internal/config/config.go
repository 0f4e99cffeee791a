package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned (wrapped) by Validate.
var ErrInvalid = errors.New("invalid config")

// Source kinds
const (
	SourceDevice = "device"
	SourceTello  = "tello"
)

// Face locators
const (
	LocatorDlib  = "dlib"
	LocatorSCRFD = "scrfd"
)

// Detector backends
const (
	BackendDarknet = "darknet"
	BackendONNX    = "onnx"
)

type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Detector    DetectorConfig    `yaml:"detector"`
	Identity    IdentityConfig    `yaml:"identity"`
	Display     DisplayConfig     `yaml:"display"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
	ONNXRuntime ONNXRuntimeConfig `yaml:"onnxruntime"`
}

type SourceConfig struct {
	Kind      string `yaml:"kind"`      // device or tello
	Device    int    `yaml:"device"`    // camera index when URL is empty
	URL       string `yaml:"url"`       // file path or stream URL, overrides Device
	TelloAddr string `yaml:"telloAddr"` // drone command address
	Width     int    `yaml:"width"`     // frames are resized to Width x Height
	Height    int    `yaml:"height"`
}

type DetectorConfig struct {
	Backend       string  `yaml:"backend"` // darknet or onnx
	Config        string  `yaml:"config"`  // darknet .cfg
	Weights       string  `yaml:"weights"` // darknet .weights
	Model         string  `yaml:"model"`   // onnx model
	Labels        string  `yaml:"labels"`
	Class         string  `yaml:"class"`
	InputSize     int     `yaml:"inputSize"`
	ConfThreshold float32 `yaml:"confThreshold"`
	NMSThreshold  float32 `yaml:"nmsThreshold"`
}

type IdentityConfig struct {
	Locator        string  `yaml:"locator"`        // dlib or scrfd
	SCRFDModel     string  `yaml:"scrfdModel"`     // onnx face detector for the scrfd locator
	SCRFDThreshold float32 `yaml:"scrfdThreshold"` // face score threshold for the scrfd locator
	ModelsDir      string  `yaml:"modelsDir"`      // dlib models, always needed for embeddings
	ReferenceImage string  `yaml:"referenceImage"`
	Tolerance      float64 `yaml:"tolerance"`
	CNN            bool    `yaml:"cnn"`
	Jitter         int     `yaml:"jitter"`
}

type DisplayConfig struct {
	Preview bool    `yaml:"preview"`
	Record  string  `yaml:"record"` // headless output video, empty disables
	FPS     float64 `yaml:"fps"`
	Title   string  `yaml:"title"`
	Alpha   float64 `yaml:"alpha"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type ONNXRuntimeConfig struct {
	SharedLibrary string `yaml:"sharedLibrary"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:      SourceDevice,
			TelloAddr: "192.168.10.1:8889",
			Width:     960,
			Height:    720,
		},
		Detector: DetectorConfig{
			Backend:       BackendDarknet,
			Config:        "models/yolov4.cfg",
			Weights:       "models/yolov4.weights",
			Model:         "models/yolov4.onnx",
			Labels:        "models/coco.names",
			Class:         "person",
			InputSize:     416,
			ConfThreshold: 0.5,
			NMSThreshold:  0.4,
		},
		Identity: IdentityConfig{
			Locator:        LocatorDlib,
			SCRFDModel:     "models/scrfd_10g.onnx",
			SCRFDThreshold: 0.5,
			ModelsDir:      "models/dlib",
			Tolerance:      0.6,
		},
		Display: DisplayConfig{
			Preview: true,
			FPS:     30,
			Title:   "Human & Face Detection",
			Alpha:   0.5,
		},
		Log: LogConfig{
			Level: "info",
		},
		ONNXRuntime: ONNXRuntimeConfig{
			SharedLibrary: "lib/libonnxruntime.so",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies DRONEID_*
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Source.Kind = envString("DRONEID_SOURCE_KIND", c.Source.Kind)
	c.Source.Device = envInt("DRONEID_SOURCE_DEVICE", c.Source.Device)
	c.Source.URL = envString("DRONEID_SOURCE_URL", c.Source.URL)
	c.Source.TelloAddr = envString("DRONEID_TELLO_ADDR", c.Source.TelloAddr)

	c.Detector.Backend = envString("DRONEID_DETECTOR_BACKEND", c.Detector.Backend)
	c.Detector.ConfThreshold = envFloat32("DRONEID_CONF_THRESHOLD", c.Detector.ConfThreshold)
	c.Detector.NMSThreshold = envFloat32("DRONEID_NMS_THRESHOLD", c.Detector.NMSThreshold)

	c.Identity.Locator = envString("DRONEID_FACE_LOCATOR", c.Identity.Locator)
	c.Identity.ModelsDir = envString("DRONEID_FACE_MODELS", c.Identity.ModelsDir)
	c.Identity.ReferenceImage = envString("DRONEID_REFERENCE_IMAGE", c.Identity.ReferenceImage)
	c.Identity.Tolerance = envFloat("DRONEID_TOLERANCE", c.Identity.Tolerance)

	c.Metrics.Addr = envString("DRONEID_METRICS_ADDR", c.Metrics.Addr)
	c.Log.Level = envString("DRONEID_LOG_LEVEL", c.Log.Level)
	c.ONNXRuntime.SharedLibrary = envString("DRONEID_ORT_LIBRARY", c.ONNXRuntime.SharedLibrary)
}

// Validate checks the fields the run command depends on.
func (c *Config) Validate() error {
	var problems []string

	switch c.Source.Kind {
	case SourceDevice, SourceTello:
	default:
		problems = append(problems, fmt.Sprintf("source.kind %q (use %q or %q)", c.Source.Kind, SourceDevice, SourceTello))
	}
	if c.Source.Width <= 0 || c.Source.Height <= 0 {
		problems = append(problems, fmt.Sprintf("source size %dx%d", c.Source.Width, c.Source.Height))
	}

	switch c.Detector.Backend {
	case BackendDarknet:
		if c.Detector.Config == "" || c.Detector.Weights == "" {
			problems = append(problems, "detector.config and detector.weights are required for darknet")
		}
	case BackendONNX:
		if c.Detector.Model == "" {
			problems = append(problems, "detector.model is required for onnx")
		}
	default:
		problems = append(problems, fmt.Sprintf("detector.backend %q (use %q or %q)", c.Detector.Backend, BackendDarknet, BackendONNX))
	}
	if c.Detector.Labels == "" || c.Detector.Class == "" {
		problems = append(problems, "detector.labels and detector.class are required")
	}
	if c.Detector.InputSize <= 0 {
		problems = append(problems, fmt.Sprintf("detector.inputSize %d", c.Detector.InputSize))
	}
	if !inUnit(float64(c.Detector.ConfThreshold)) {
		problems = append(problems, fmt.Sprintf("detector.confThreshold %v outside (0,1)", c.Detector.ConfThreshold))
	}
	if !inUnit(float64(c.Detector.NMSThreshold)) {
		problems = append(problems, fmt.Sprintf("detector.nmsThreshold %v outside (0,1)", c.Detector.NMSThreshold))
	}

	switch c.Identity.Locator {
	case LocatorDlib:
	case LocatorSCRFD:
		if c.Identity.SCRFDModel == "" {
			problems = append(problems, "identity.scrfdModel is required for the scrfd locator")
		}
		if !inUnit(float64(c.Identity.SCRFDThreshold)) {
			problems = append(problems, fmt.Sprintf("identity.scrfdThreshold %v outside (0,1)", c.Identity.SCRFDThreshold))
		}
	default:
		problems = append(problems, fmt.Sprintf("identity.locator %q (use %q or %q)", c.Identity.Locator, LocatorDlib, LocatorSCRFD))
	}
	if c.Identity.ReferenceImage == "" {
		problems = append(problems, "identity.referenceImage is required")
	}
	if c.Identity.ModelsDir == "" {
		problems = append(problems, "identity.modelsDir is required")
	}
	if c.Identity.Tolerance <= 0 {
		problems = append(problems, fmt.Sprintf("identity.tolerance %v must be positive", c.Identity.Tolerance))
	}

	if c.Display.Alpha < 0 || c.Display.Alpha > 1 {
		problems = append(problems, fmt.Sprintf("display.alpha %v outside [0,1]", c.Display.Alpha))
	}
	if c.Display.Record != "" && c.Display.FPS <= 0 {
		problems = append(problems, "display.fps must be positive when recording")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func inUnit(v float64) bool {
	return v > 0 && v < 1
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads a non-negative integer, falling back on unset or invalid input.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back on unset or invalid input.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envFloat32(key string, defaultVal float32) float32 {
	return float32(envFloat(key, float64(defaultVal)))
}
