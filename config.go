package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the controller's serial port (e.g. "/dev/ttyACM0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the controller (e.g. 115200)
	BaudRate int
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// StatusInterval is how often a status report is requested. Zero disables polling.
	StatusInterval time.Duration
	// EnvFile is the dotenv file read before the environment
	EnvFile string
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyACM0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.StatusInterval = 250 * time.Millisecond
		c.EnvFile = ".env"
		return nil
	}
}

// WithDotEnv loads variables from a dotenv file into the process
// environment, without overriding variables that are already set. A
// missing file is ignored. An empty path means the configured EnvFile.
func WithDotEnv(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			path = c.EnvFile
		}
		if path == "" {
			return nil
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
		c.EnvFile = path
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if interval := os.Getenv("STATUS_INTERVAL"); interval != "" {
			if d, err := time.ParseDuration(interval); err == nil {
				c.StatusInterval = d
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "status-interval":
				if d, err := time.ParseDuration(f.Value.String()); err == nil {
					c.StatusInterval = d
				}
			case "env-file":
				c.EnvFile = f.Value.String()
			}
		})
		return nil
	}
}
