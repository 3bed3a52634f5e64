package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Granularity values for the crawl-state tracker.
const (
	GranularityVoyage = "voyage"
	GranularityShip   = "ship"
)

// Config is the root configuration for cruisecrawl.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Source  SourceConfig  `mapstructure:"source"  yaml:"source"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
}

// EngineConfig controls the harvest driver.
type EngineConfig struct {
	PolitenessDelay  time.Duration `mapstructure:"politeness_delay"   yaml:"politeness_delay"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"    yaml:"request_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"        yaml:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"        yaml:"retry_delay"`
	StartPage        int           `mapstructure:"start_page"         yaml:"start_page"`
	MaxPages         int           `mapstructure:"max_pages"          yaml:"max_pages"`
	ShipsPerPage     int           `mapstructure:"ships_per_page"     yaml:"ships_per_page"`
	Granularity      string        `mapstructure:"granularity"        yaml:"granularity"`
	CheckpointPath   string        `mapstructure:"checkpoint_path"    yaml:"checkpoint_path"`
	CheckpointEvery  int           `mapstructure:"checkpoint_every"   yaml:"checkpoint_every"`
	RespectRobotsTxt bool          `mapstructure:"respect_robots_txt" yaml:"respect_robots_txt"`
	UserAgents       []string      `mapstructure:"user_agents"        yaml:"user_agents"`
}

// FetcherConfig controls the request fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	Stealth         bool          `mapstructure:"stealth"           yaml:"stealth"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// SourceConfig locates the remote site.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// StorageConfig controls output/storage.
type StorageConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"`
	OutputPath      string `mapstructure:"output_path"      yaml:"output_path"`
	Deduplicate     bool   `mapstructure:"deduplicate"      yaml:"deduplicate"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// APIConfig controls the harvest status and control API.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port"    yaml:"port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			PolitenessDelay: 650 * time.Millisecond,
			RequestTimeout:  30 * time.Second,
			MaxRetries:      2,
			RetryDelay:      2 * time.Second,
			StartPage:       1,
			ShipsPerPage:    15,
			Granularity:     GranularityVoyage,
			CheckpointEvery: 25,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
		},
		Source: SourceConfig{
			BaseURL: "https://www.cruisemapper.com",
		},
		Storage: StorageConfig{
			Type:            "csv",
			OutputPath:      "./itineraries.csv",
			MongoDatabase:   "cruisecrawl",
			MongoCollection: "itineraries",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		API: APIConfig{
			Enabled: false,
			Port:    8080,
		},
	}
}
