package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitechniques/llclient/internal/client"
	"github.com/hitechniques/llclient/internal/logging"
	"github.com/hitechniques/llclient/internal/protocol"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Config represents the entire user configuration file
type Config struct {
	Version       int            `yaml:"version"`
	Server        ServerConfig   `yaml:"server"`
	Client        ClientConfig   `yaml:"client"`
	Subscriptions []Subscription `yaml:"subscriptions,omitempty"` // Requested when the channels become available
	Metrics       MetricsConfig  `yaml:"metrics"`
	LogLevel      string         `yaml:"log_level,omitempty"` // debug, info, warn, error; empty is silent
	LogFile       string         `yaml:"log_file,omitempty"`  // Used by the dashboard, which owns stdout
}

// ServerConfig is the acquisition server to connect to
type ServerConfig struct {
	Host        string        `yaml:"host,omitempty"`
	Port        string        `yaml:"port"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// ClientConfig tunes the stream reader
type ClientConfig struct {
	MaxFrameSize    int    `yaml:"max_frame_size"`    // Receive buffer size in bytes
	SampleByteOrder string `yaml:"sample_byte_order"` // "little" or "big"
}

// MetricsConfig controls the HTTP side server
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // Empty disables the side server
}

// Subscription is a channel requested at startup
type Subscription struct {
	Name       string `yaml:"name"`
	Decimation int    `yaml:"decimation,omitempty"` // Defaults to 1
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.Server.Port == "" {
		c.Server.Port = client.DefaultPort
	}
	if c.Server.DialTimeout <= 0 {
		c.Server.DialTimeout = client.DefaultDialTimeout
	}
	if c.Client.MaxFrameSize <= 0 {
		c.Client.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if c.Client.SampleByteOrder == "" {
		c.Client.SampleByteOrder = "little"
	}
	for i := range c.Subscriptions {
		c.Subscriptions[i].Decimation = protocol.NormalizeDecimation(c.Subscriptions[i].Decimation)
	}
}

// Validate checks the configuration for values the client cannot use
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}

	if c.Client.MaxFrameSize < protocol.HeaderSize {
		return fmt.Errorf("max_frame_size must be at least %d bytes", protocol.HeaderSize)
	}

	if _, err := protocol.ParseByteOrder(c.Client.SampleByteOrder); err != nil {
		return err
	}

	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(c.Subscriptions))
	for _, sub := range c.Subscriptions {
		if sub.Name == "" {
			return fmt.Errorf("subscription with empty channel name")
		}
		if seen[sub.Name] {
			return fmt.Errorf("channel %q subscribed twice", sub.Name)
		}
		seen[sub.Name] = true
	}

	return nil
}

// ClientConfig converts the server and client sections for client.Dial
func (c *Config) ClientConfig() (client.Config, error) {
	order, err := protocol.ParseByteOrder(c.Client.SampleByteOrder)
	if err != nil {
		return client.Config{}, err
	}

	return client.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		DialTimeout:     c.Server.DialTimeout,
		MaxFrameSize:    c.Client.MaxFrameSize,
		SampleByteOrder: order,
	}, nil
}

// SubscribeRequests returns the startup subscriptions
func (c *Config) SubscribeRequests() []protocol.SubscribeRequest {
	reqs := make([]protocol.SubscribeRequest, len(c.Subscriptions))
	for i, sub := range c.Subscriptions {
		reqs[i] = protocol.SubscribeRequest{Name: sub.Name, Decimation: sub.Decimation}
	}
	return reqs
}

// AddSubscription adds or replaces a startup subscription
func (c *Config) AddSubscription(sub Subscription) {
	sub.Decimation = protocol.NormalizeDecimation(sub.Decimation)
	for i := range c.Subscriptions {
		if c.Subscriptions[i].Name == sub.Name {
			c.Subscriptions[i] = sub
			return
		}
	}
	c.Subscriptions = append(c.Subscriptions, sub)
}

// ParseSubscription parses "name" or "name:decimation"
func ParseSubscription(s string) (Subscription, error) {
	name, dec, found := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return Subscription{}, fmt.Errorf("invalid subscription %q: empty channel name", s)
	}

	sub := Subscription{Name: name, Decimation: 1}
	if found {
		n, err := strconv.Atoi(strings.TrimSpace(dec))
		if err != nil || n < 1 {
			return Subscription{}, fmt.Errorf("invalid decimation in %q", s)
		}
		sub.Decimation = n
	}
	return sub, nil
}
