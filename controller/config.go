package controller

import (
	"log/slog"
	"time"
)

const (
	defaultMaxLineLength    = 4096
	defaultSubscriberBuffer = 64
)

// Config holds the settings of a Controller. Use NewConfigBuilder to
// create one.
type Config struct {
	dialer           Dialer
	statusInterval   time.Duration
	maxLineLength    int
	subscriberBuffer int
	logger           *slog.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.maxLineLength <= 0 {
		c.maxLineLength = defaultMaxLineLength
	}
	if c.subscriberBuffer <= 0 {
		c.subscriberBuffer = defaultSubscriberBuffer
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns an empty builder.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets how the connection to the controller is opened.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithStatusInterval makes Loop send a status query at the given
// interval. Zero disables polling.
func (b *ConfigBuilder) WithStatusInterval(d time.Duration) *ConfigBuilder {
	b.config.statusInterval = d
	return b
}

// WithMaxLineLength bounds the length of a single line read from the
// controller.
func (b *ConfigBuilder) WithMaxLineLength(n int) *ConfigBuilder {
	b.config.maxLineLength = n
	return b
}

// WithSubscriberBuffer sets the channel capacity of each subscription.
func (b *ConfigBuilder) WithSubscriberBuffer(n int) *ConfigBuilder {
	b.config.subscriberBuffer = n
	return b
}

// WithLogger sets the logger for the controller and its line parser.
func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
