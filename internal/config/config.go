package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds every tunable of the engine. Values are layered: built-in
// defaults, then an optional TOML file, then THREADSYNC_-prefixed environment
// variables.
type Config struct {
	Service    ServiceConfig    `koanf:"service"`
	Socket     SocketConfig     `koanf:"socket"`
	Pagination PaginationConfig `koanf:"pagination"`
	Discussion DiscussionConfig `koanf:"discussion"`
	Snapshot   SnapshotConfig   `koanf:"snapshot"`
}

// ServiceConfig locates the REST collaborator.
type ServiceConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// SocketConfig locates the real-time endpoint and bounds reconnection. An
// empty URL is not an error: the transport degrades to a null adapter.
type SocketConfig struct {
	URL               string        `koanf:"url"`
	Namespace         string        `koanf:"namespace"`
	ReconnectAttempts int           `koanf:"reconnect_attempts"`
	ReconnectInterval time.Duration `koanf:"reconnect_interval"`
	PingInterval      time.Duration `koanf:"ping_interval"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
}

// PaginationConfig sets page sizes for top-level posts and nested replies.
type PaginationConfig struct {
	PostPageSize  int `koanf:"post_page_size"`
	ReplyPageSize int `koanf:"reply_page_size"`
}

// DiscussionConfig bounds the reply tree.
type DiscussionConfig struct {
	MaxReplyDepth int `koanf:"max_reply_depth"`
}

// SnapshotConfig locates the local session database. Empty path disables
// persistence.
type SnapshotConfig struct {
	Path string `koanf:"path"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"service.timeout":            "30s",
		"socket.namespace":           "/threads",
		"socket.reconnect_attempts":  5,
		"socket.reconnect_interval":  "2s",
		"socket.ping_interval":       "30s",
		"socket.read_timeout":        "60s",
		"socket.write_timeout":       "10s",
		"pagination.post_page_size":  10,
		"pagination.reply_page_size": 5,
		"discussion.max_reply_depth": 3,
		"snapshot.path":              "./threadsync.db",
	}
}

// Load builds a Config from defaults, an optional TOML file and the
// environment.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("THREADSYNC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "THREADSYNC_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without file or env layers.
func Default() *Config {
	cfg, _ := Load("")
	return cfg
}

// Validate guards every numeric and URL field before component wiring.
func (c *Config) Validate() error {
	if c.Service.Timeout <= 0 {
		return fmt.Errorf("service timeout must be positive")
	}
	if c.Socket.Namespace == "" || !strings.HasPrefix(c.Socket.Namespace, "/") {
		return fmt.Errorf("socket namespace must start with '/'")
	}
	if c.Socket.ReconnectAttempts < 0 {
		return fmt.Errorf("socket reconnect attempts cannot be negative")
	}
	if c.Socket.ReconnectInterval <= 0 {
		return fmt.Errorf("socket reconnect interval must be positive")
	}
	if c.Socket.PingInterval <= 0 {
		return fmt.Errorf("socket ping interval must be positive")
	}
	if c.Socket.ReadTimeout <= c.Socket.PingInterval {
		return fmt.Errorf("socket read timeout must exceed ping interval")
	}
	if c.Socket.WriteTimeout <= 0 {
		return fmt.Errorf("socket write timeout must be positive")
	}
	if c.Pagination.PostPageSize <= 0 {
		return fmt.Errorf("post page size must be positive")
	}
	if c.Pagination.ReplyPageSize <= 0 {
		return fmt.Errorf("reply page size must be positive")
	}
	if c.Discussion.MaxReplyDepth < 1 {
		return fmt.Errorf("max reply depth must be at least 1")
	}
	return nil
}

// SocketEndpoint joins the socket URL and namespace into the dial target.
func (c *Config) SocketEndpoint() string {
	if c.Socket.URL == "" {
		return ""
	}
	return strings.TrimSuffix(c.Socket.URL, "/") + c.Socket.Namespace
}
