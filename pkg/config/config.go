package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"FxBridge/internal/connectors"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"6020"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalTopic  string   `yaml:"signal_topic" default:"fx.signals"`
		AuditTopic   string   `yaml:"audit_topic" default:"fx.audit"`
		QuotesTopic  string   `yaml:"quotes_topic" default:"fx.quotes"`
		LogsTopic    string   `yaml:"logs_topic" default:"fx.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"fxbridge"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"fxbridge"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		Broker         string        `yaml:"broker" default:"mt5"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
		MaxRPS         int           `yaml:"max_rps" default:"20"`
		BufferSize     int           `yaml:"buffer_size" default:"1000"`
	} `yaml:"feed"`
	Intelligence struct {
		Enabled    bool          `yaml:"enabled"`
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout" default:"3s"`
		Retries    int           `yaml:"retries" default:"2"`
	} `yaml:"intelligence"`
	MarketData struct {
		MaxQuoteAge      time.Duration `yaml:"max_quote_age" default:"2m"`
		AllowSynthetic   bool          `yaml:"allow_synthetic" default:"true"`
		AnalysisCacheTTL time.Duration `yaml:"analysis_cache_ttl" default:"5s"`
	} `yaml:"market_data"`
	Engine struct {
		SignalTTL       time.Duration `yaml:"signal_ttl" default:"5m"`
		MinConfidence   float64       `yaml:"min_confidence" default:"0.55"`
		MinStrength     float64       `yaml:"min_strength" default:"0.5"`
		ReadinessMin    int           `yaml:"readiness_min" default:"13"`
		BaseRiskPercent float64       `yaml:"base_risk_percent" default:"1.0"`
		MinBars         int           `yaml:"min_bars" default:"20"`
	} `yaml:"engine"`
	Pipeline struct {
		Debounce           time.Duration `yaml:"debounce" default:"750ms"`
		MinInterval        time.Duration `yaml:"min_interval" default:"15s"`
		RevalidateInterval time.Duration `yaml:"revalidate_interval" default:"1m"`
		RequireSnapshot    bool          `yaml:"require_snapshot"`
		RequireBars        bool          `yaml:"require_bars" default:"true"`
		RequireConfluence  bool          `yaml:"require_confluence"`
		RequireReadiness   bool          `yaml:"require_readiness" default:"true"`
		AllowWaitMonitor   bool          `yaml:"allow_wait_monitor"`
		MinConfidence      float64       `yaml:"min_confidence" default:"0.6"`
		MinStrength        float64       `yaml:"min_strength" default:"0.55"`
	} `yaml:"pipeline"`
	Guards struct {
		NewsImpactMin      int           `yaml:"news_impact_min" default:"70"`
		NewsBlackoutBefore time.Duration `yaml:"news_blackout_before" default:"15m"`
		NewsBlackoutAfter  time.Duration `yaml:"news_blackout_after" default:"15m"`
		SessionStrict      bool          `yaml:"session_strict"`
		MaxSpreadPips      float64       `yaml:"max_spread_pips" default:"3.0"`
		MinFreshQuotes     int           `yaml:"min_fresh_quotes" default:"1"`
	} `yaml:"guards"`
	Router struct {
		RetryAttempts    int           `yaml:"retry_attempts" default:"2"`
		RetryBase        time.Duration `yaml:"retry_base" default:"250ms"`
		BreakerThreshold int           `yaml:"breaker_threshold" default:"5"`
		BreakerCooldown  time.Duration `yaml:"breaker_cooldown" default:"30s"`
		IdempotencyTTL   time.Duration `yaml:"idempotency_ttl" default:"10m"`
		AuditLogSize     int           `yaml:"audit_log_size" default:"200"`
		KillSwitch       bool          `yaml:"kill_switch"`
		ReconcileEvery   time.Duration `yaml:"reconcile_every" default:"1m"`
	} `yaml:"router"`
	Learning struct {
		MaxConsecutiveLosses int `yaml:"max_consecutive_losses" default:"3"`
	} `yaml:"learning"`
	Connectors connectors.Config `yaml:"connectors"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FXBRIDGE_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, found := strings.Cut(v, ":")
		c.Redis.Host = host
		if found {
			if p, err := strconv.Atoi(port); err == nil && p > 0 {
				c.Redis.Port = p
			}
		}
		c.Redis.Enabled = true
	}
	if v := os.Getenv("FEED_SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("INTELLIGENCE_URL"); v != "" {
		c.Intelligence.ServiceURL = v
		c.Intelligence.Enabled = true
	}
	if v := os.Getenv("OANDA_API_KEY"); v != "" {
		c.Connectors.Oanda.Token = v
	}
	if v := os.Getenv("ROUTER_KILL_SWITCH"); v == "1" || strings.EqualFold(v, "true") {
		c.Router.KillSwitch = true
	}
	return c, nil
}

// Validate checks cross-field requirements that tags cannot express.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Feed.Enabled {
		if c.Feed.WebSocketURL == "" {
			return fmt.Errorf("feed.websocket_url is required when the feed is enabled")
		}
		if len(c.Feed.Symbols) == 0 {
			return fmt.Errorf("feed.symbols cannot be empty when the feed is enabled")
		}
	}
	if c.Intelligence.Enabled && c.Intelligence.ServiceURL == "" {
		return fmt.Errorf("intelligence.service_url is required when intelligence is enabled")
	}
	if c.Engine.MinConfidence < 0 || c.Engine.MinConfidence > 1 {
		return fmt.Errorf("engine.min_confidence must be within [0, 1]")
	}
	return nil
}
