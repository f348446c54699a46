package trackd

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config configures the trackd service. Values come from a YAML file
// and/or TRACKD_* environment variables (env wins).
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path" env:"TRACKD_DB_PATH" env-default:"trackd.db"`

	// ListenAddr is the HTTP control surface bind address.
	ListenAddr string `yaml:"listen_addr" env:"TRACKD_LISTEN_ADDR" env-default:":8080"`

	// OwnerID is the principal seeded as owner at first run.
	OwnerID int64 `yaml:"owner_id" env:"TRACKD_OWNER_ID"`

	// TickInterval drives the scheduler cycle.
	TickInterval time.Duration `yaml:"tick_interval" env:"TRACKD_TICK_INTERVAL" env-default:"30s"`

	// DefaultCheckInterval applies when a tracker is created without one.
	DefaultCheckInterval time.Duration `yaml:"default_check_interval" env:"TRACKD_DEFAULT_CHECK_INTERVAL" env-default:"5m"`

	// MaxTrackersPerOwner caps how many trackers one owner may hold.
	MaxTrackersPerOwner int `yaml:"max_trackers_per_owner" env:"TRACKD_MAX_TRACKERS_PER_OWNER" env-default:"25"`

	// FetchTimeout bounds one static HTTP retrieval.
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"TRACKD_FETCH_TIMEOUT" env-default:"15s"`

	// RenderTimeout bounds one browser-rendered retrieval end to end.
	RenderTimeout time.Duration `yaml:"render_timeout" env:"TRACKD_RENDER_TIMEOUT" env-default:"60s"`

	// DiffMaxLength is the hard cutoff of diff text in notifications.
	DiffMaxLength int `yaml:"diff_max_length" env:"TRACKD_DIFF_MAX_LENGTH" env-default:"4000"`

	// MaxStoredContent bounds the retained last_content per tracker.
	MaxStoredContent int `yaml:"max_stored_content" env:"TRACKD_MAX_STORED_CONTENT" env-default:"262144"`

	// CycleConcurrency is how many due trackers one cycle processes in
	// parallel. Element-mode fetches additionally serialize through the
	// browser session pool.
	CycleConcurrency int `yaml:"cycle_concurrency" env:"TRACKD_CYCLE_CONCURRENCY" env-default:"4"`

	// BrowserPoolSize is the number of concurrent rendering sessions.
	BrowserPoolSize int `yaml:"browser_pool_size" env:"TRACKD_BROWSER_POOL_SIZE" env-default:"1"`

	// BrowserRecycleInterval is the maximum Chrome lifetime before a
	// quiesced relaunch. 0 disables recycling.
	BrowserRecycleInterval time.Duration `yaml:"browser_recycle_interval" env:"TRACKD_BROWSER_RECYCLE_INTERVAL" env-default:"4h"`

	// BrowserRemoteURL connects to an external Chrome instead of
	// launching one.
	BrowserRemoteURL string `yaml:"browser_remote_url" env:"TRACKD_BROWSER_REMOTE_URL"`

	// WebhookURL, when set, adds a webhook notification backend.
	WebhookURL string `yaml:"webhook_url" env:"TRACKD_WEBHOOK_URL"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "trackd.db"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.DefaultCheckInterval <= 0 {
		c.DefaultCheckInterval = 5 * time.Minute
	}
	if c.MaxTrackersPerOwner <= 0 {
		c.MaxTrackersPerOwner = 25
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 60 * time.Second
	}
	if c.DiffMaxLength <= 0 {
		c.DiffMaxLength = 4000
	}
	if c.MaxStoredContent <= 0 {
		c.MaxStoredContent = 256 * 1024
	}
	if c.CycleConcurrency <= 0 {
		c.CycleConcurrency = 4
	}
	if c.BrowserPoolSize <= 0 {
		c.BrowserPoolSize = 1
	}
}

// LoadConfig reads configuration from the YAML file at path (optional)
// and the environment.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("trackd: load config: %w", err)
	}
	cfg.defaults()
	return &cfg, nil
}
