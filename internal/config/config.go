package config

import "time"

// RelayConfig is the root configuration for a relay client.
type RelayConfig struct {
	Endpoint   EndpointConfig   `yaml:"endpoint"`
	Connection ConnectionConfig `yaml:"connection"`
	Journal    JournalConfig    `yaml:"journal"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// EndpointConfig identifies the remote channel.
type EndpointConfig struct {
	URL            string            `yaml:"url"`
	EventName      string            `yaml:"event_name"`       // Event name for messages read from stdin
	KeyID          string            `yaml:"key_id"`           // Sent as ACCESS-KEY when set
	PrivateKeyPath string            `yaml:"private_key_path"` // RSA private key PEM for handshake signing
	Headers        map[string]string `yaml:"headers"`          // Extra handshake headers
}

// ConnectionConfig holds reconnection and transport timing.
type ConnectionConfig struct {
	MaxRetries       uint          `yaml:"max_retries"`
	BaseDelay        time.Duration `yaml:"base_delay"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	ReadLimit        int64         `yaml:"read_limit"`
}

// JournalConfig controls the optional event journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the health and Prometheus endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
