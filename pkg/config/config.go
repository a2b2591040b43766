package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Sampling  SamplingConfig  `yaml:"sampling"`
	Storage   StorageConfig   `yaml:"storage"`
	Motor     MotorConfig     `yaml:"motor"`
	Session   SessionConfig   `yaml:"session"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Log       LogConfig       `yaml:"log"`
	Mock      MockConfig      `yaml:"mock"`
}

// SerialConfig contains serial port configuration of the load-cell bridge.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// SensorConfig contains load-cell calibration parameters.
type SensorConfig struct {
	Offset      int32   `yaml:"offset"`       // Raw zero offset, replaced by tare at session start
	Scale       float32 `yaml:"scale"`        // Raw counts per engineering unit (e.g. counts per gram)
	TareSamples int     `yaml:"tare_samples"` // Readings averaged for the pre-session tare
}

// SamplingConfig contains producer and queue parameters.
type SamplingConfig struct {
	Interval      time.Duration `yaml:"interval"`       // Target sampling period
	ChunkCapacity int           `yaml:"chunk_capacity"` // Samples per chunk
	QueueCapacity int           `yaml:"queue_capacity"` // Chunks buffered between producer and writer
	MaxDuration   time.Duration `yaml:"max_duration"`   // Recording session length
}

// StorageConfig contains session file storage parameters.
type StorageConfig struct {
	Dir     string `yaml:"dir"`
	Catalog string `yaml:"catalog"` // SQLite session catalog path, empty disables it
}

// MotorConfig contains stepper parameters.
type MotorConfig struct {
	HalfPeriod time.Duration `yaml:"half_period"`
}

// SessionConfig contains control polling parameters.
type SessionConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`
	BlinkWindow  time.Duration `yaml:"blink_window"` // Final part of a session during which the indicator blinks
}

// TelemetryConfig contains the fire-and-forget telemetry side channel.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Addr        string `yaml:"addr"`
	Measurement string `yaml:"measurement"`
	Buffer      int    `yaml:"buffer"`
}

// MonitorConfig contains live display parameters.
type MonitorConfig struct {
	Window    time.Duration `yaml:"window"`    // Span of recent samples kept for display
	Smoothing int           `yaml:"smoothing"` // Moving average length in samples
	Buffer    int           `yaml:"buffer"`    // Samples queued between producer and monitor
}

// LogConfig contains logging parameters.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// MockConfig contains simulated load-cell configuration.
type MockConfig struct {
	Offset     int32         `yaml:"offset"`      // Raw reading at zero load
	Scale      float32       `yaml:"scale"`       // Raw counts per unit
	Load       float32       `yaml:"load"`        // Simulated load amplitude (units)
	Period     time.Duration `yaml:"period"`      // Load oscillation period
	NoiseLevel float32       `yaml:"noise_level"` // Raw counts of noise
	Dropout    float32       `yaml:"dropout"`     // Probability that a reading is unavailable
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Sensor: SensorConfig{
			Offset:      0,
			Scale:       420.0,
			TareSamples: 10,
		},
		Sampling: SamplingConfig{
			Interval:      3125 * time.Microsecond, // 320 Hz
			ChunkCapacity: 50,
			QueueCapacity: 16,
			MaxDuration:   30 * time.Second,
		},
		Storage: StorageConfig{
			Dir:     "sessions",
			Catalog: "sessions/catalog.db",
		},
		Motor: MotorConfig{
			HalfPeriod: 800 * time.Microsecond,
		},
		Session: SessionConfig{
			PollInterval: 10 * time.Millisecond,
			Debounce:     30 * time.Millisecond,
			BlinkWindow:  3 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Addr:        "127.0.0.1:8089",
			Measurement: "loadcell",
			Buffer:      1024,
		},
		Monitor: MonitorConfig{
			Window:    5 * time.Second,
			Smoothing: 16,
			Buffer:    1024,
		},
		Log: LogConfig{
			Level: "info",
		},
		Mock: MockConfig{
			Offset:     120_000,
			Scale:      420.0,
			Load:       250.0,
			Period:     4 * time.Second,
			NoiseLevel: 40,
			Dropout:    0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Sampling.Interval <= 0 {
		return fmt.Errorf("sampling interval must be positive, got %s", c.Sampling.Interval)
	}
	if c.Sampling.ChunkCapacity <= 0 {
		return fmt.Errorf("chunk capacity must be positive, got %d", c.Sampling.ChunkCapacity)
	}
	if c.Sampling.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.Sampling.QueueCapacity)
	}
	if c.Sampling.MaxDuration <= 0 {
		return fmt.Errorf("max duration must be positive, got %s", c.Sampling.MaxDuration)
	}
	if c.Sensor.Scale == 0 {
		return fmt.Errorf("sensor scale must be non-zero")
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Sensor.Scale == 0 {
		c.Sensor.Scale = def.Sensor.Scale
	}
	if c.Sensor.TareSamples == 0 {
		c.Sensor.TareSamples = def.Sensor.TareSamples
	}

	if c.Sampling.Interval == 0 {
		c.Sampling.Interval = def.Sampling.Interval
	}
	if c.Sampling.ChunkCapacity == 0 {
		c.Sampling.ChunkCapacity = def.Sampling.ChunkCapacity
	}
	if c.Sampling.QueueCapacity == 0 {
		c.Sampling.QueueCapacity = def.Sampling.QueueCapacity
	}
	if c.Sampling.MaxDuration == 0 {
		c.Sampling.MaxDuration = def.Sampling.MaxDuration
	}

	if c.Storage.Dir == "" {
		c.Storage.Dir = def.Storage.Dir
	}

	if c.Motor.HalfPeriod == 0 {
		c.Motor.HalfPeriod = def.Motor.HalfPeriod
	}

	if c.Session.PollInterval == 0 {
		c.Session.PollInterval = def.Session.PollInterval
	}
	if c.Session.Debounce == 0 {
		c.Session.Debounce = def.Session.Debounce
	}
	if c.Session.BlinkWindow == 0 {
		c.Session.BlinkWindow = def.Session.BlinkWindow
	}

	if c.Telemetry.Addr == "" {
		c.Telemetry.Addr = def.Telemetry.Addr
	}
	if c.Telemetry.Measurement == "" {
		c.Telemetry.Measurement = def.Telemetry.Measurement
	}
	if c.Telemetry.Buffer == 0 {
		c.Telemetry.Buffer = def.Telemetry.Buffer
	}

	if c.Monitor.Window == 0 {
		c.Monitor.Window = def.Monitor.Window
	}
	if c.Monitor.Smoothing == 0 {
		c.Monitor.Smoothing = def.Monitor.Smoothing
	}
	if c.Monitor.Buffer == 0 {
		c.Monitor.Buffer = def.Monitor.Buffer
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Mock.Scale == 0 {
		c.Mock.Scale = def.Mock.Scale
	}
	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
}
