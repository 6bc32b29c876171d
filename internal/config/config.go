package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/funtimes-pgp/internal/transport"
)

type Device struct {
	Backend      string `yaml:"backend"` // "serial" | "uart" | "file"
	Port         string `yaml:"port"`    // e.g. /dev/ttyUSB0, UART1, out.pgp
	Baud         int    `yaml:"baud"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkDelayMs int    `yaml:"chunk_delay_ms"`
	AutoConnect  bool   `yaml:"auto_connect"`
}

func (d Device) ChunkDelay() time.Duration {
	return time.Duration(d.ChunkDelayMs) * time.Millisecond
}

type Server struct {
	Addr string `yaml:"addr"` // e.g. :8080
}

type Log struct {
	Level string `yaml:"level"` // zerolog level name
	JSON  bool   `yaml:"json"`
}

type Compile struct {
	MaxLines int `yaml:"max_lines"`
}

type Indicator struct {
	Enabled bool   `yaml:"enabled"`
	Dev     string `yaml:"dev"` // SPI port name, "" for the first one
	Pixels  int    `yaml:"pixels"`
	SpeedHz int    `yaml:"speed_hz"`
}

type Config struct {
	Device    Device    `yaml:"device"`
	Server    Server    `yaml:"server"`
	Log       Log       `yaml:"log"`
	Compile   Compile   `yaml:"compile"`
	Indicator Indicator `yaml:"indicator,omitempty"`
}

func Default() *Config {
	return &Config{
		Device: Device{
			Backend:   "serial",
			Baud:      transport.DefaultBaud,
			ChunkSize: transport.DefaultChunkSize,
		},
		Server:    Server{Addr: ":8080"},
		Log:       Log{Level: "info"},
		Compile:   Compile{MaxLines: 1000},
		Indicator: Indicator{Pixels: 1, SpeedHz: 2400000},
	}
}

// Load reads path over the defaults, so a partial file is enough.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) Validate() error {
	ok := false
	for _, b := range transport.Backends {
		if c.Device.Backend == b {
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("device.backend %q: want one of %v", c.Device.Backend, transport.Backends)
	}
	if c.Device.Baud <= 0 {
		return fmt.Errorf("device.baud must be positive, got %d", c.Device.Baud)
	}
	if c.Device.ChunkSize <= 0 {
		return fmt.Errorf("device.chunk_size must be positive, got %d", c.Device.ChunkSize)
	}
	if c.Device.ChunkDelayMs < 0 {
		return fmt.Errorf("device.chunk_delay_ms must not be negative")
	}
	if c.Compile.MaxLines < 0 {
		return fmt.Errorf("compile.max_lines must not be negative")
	}
	if c.Indicator.Enabled && c.Indicator.Pixels <= 0 {
		return fmt.Errorf("indicator.pixels must be positive when enabled")
	}
	return nil
}

// Dialer opens the configured device.
func (c *Config) Dialer() (transport.Dialer, error) {
	return transport.Open(c.Device.Backend, c.Device.Port, c.Device.Baud)
}

// Transport builds a disconnected transport for the configured device.
func (c *Config) Transport() (*transport.Transport, error) {
	d, err := c.Dialer()
	if err != nil {
		return nil, err
	}
	t := transport.New(c.Device.Port, d)
	t.ChunkSize = c.Device.ChunkSize
	t.ChunkDelay = c.Device.ChunkDelay()
	return t, nil
}
