package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen        = ":8080"
	defaultMetricsListen = ":9090"
	defaultLogLevel      = "info"
	defaultLogEnv        = "prod"
	defaultBaseURL       = "https://api.cloudflare.com/client/v4"
	defaultBackend       = BackendREST
	defaultTimeout       = 30 * time.Second
	defaultDDNSTTL       = 120
	defaultDDNSInterval  = 2 * time.Minute
	defaultDDNSIPURL     = "https://ip.ustc.edu.cn/myip.php"
)

const (
	BackendREST = "rest"
	BackendSDK  = "sdk"
)

var backends = []string{BackendREST, BackendSDK}

type Config struct {
	Listen        string     `yaml:"listen"`
	MetricsListen string     `yaml:"metricsListen"`
	Log           Log        `yaml:"log"`
	Cloudflare    Cloudflare `yaml:"cloudflare"`
	Audit         Audit      `yaml:"audit"`
	DDNS          DDNS       `yaml:"ddns"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
	File  string `yaml:"file"`
}

type Cloudflare struct {
	Token   Secret        `yaml:"token"`
	BaseURL string        `yaml:"baseUrl"`
	Backend string        `yaml:"backend"`
	Timeout time.Duration `yaml:"timeout"`
}

type Audit struct {
	Path string `yaml:"path"`
}

type DDNS struct {
	Domain   string        `yaml:"domain"`
	TTL      int           `yaml:"ttl"`
	Proxied  bool          `yaml:"proxied"`
	Interval time.Duration `yaml:"interval"`
	IPURL    string        `yaml:"ipUrl"`
}

// Secret holds the provider API token. It never renders its value through
// fmt or slog; call Reveal where the raw token is needed.
type Secret string

const redacted = "[redacted]"

func (s Secret) Reveal() string { return string(s) }

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string { return s.String() }

func (s Secret) LogValue() slog.Value { return slog.StringValue(s.String()) }

func Load(path string) (*Config, error) {
	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			f.Close()
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	cfg.setDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.MetricsListen == "" {
		cfg.MetricsListen = defaultMetricsListen
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}
	if cfg.Cloudflare.BaseURL == "" {
		cfg.Cloudflare.BaseURL = defaultBaseURL
	}
	if cfg.Cloudflare.Backend == "" {
		cfg.Cloudflare.Backend = defaultBackend
	}
	if cfg.Cloudflare.Timeout == 0 {
		cfg.Cloudflare.Timeout = defaultTimeout
	}
	if cfg.DDNS.TTL == 0 {
		cfg.DDNS.TTL = defaultDDNSTTL
	}
	if cfg.DDNS.Interval == 0 {
		cfg.DDNS.Interval = defaultDDNSInterval
	}
	if cfg.DDNS.IPURL == "" {
		cfg.DDNS.IPURL = defaultDDNSIPURL
	}
}

// Override from environment if set
func (cfg *Config) applyEnv() {
	if listen := os.Getenv("DNS_RELAY_LISTEN"); listen != "" {
		cfg.Listen = listen
	}
	if listen := os.Getenv("DNS_RELAY_METRICS_LISTEN"); listen != "" {
		cfg.MetricsListen = listen
	}
	if loglevel := os.Getenv("DNS_RELAY_LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := os.Getenv("DNS_RELAY_LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}
	if logfile := os.Getenv("DNS_RELAY_LOG_FILE"); logfile != "" {
		cfg.Log.File = logfile
	}
	if token := os.Getenv("DNS_RELAY_API_TOKEN"); token != "" {
		cfg.Cloudflare.Token = Secret(token)
	}
	if baseURL := os.Getenv("DNS_RELAY_API_URL"); baseURL != "" {
		cfg.Cloudflare.BaseURL = baseURL
	}
	if backend := os.Getenv("DNS_RELAY_BACKEND"); backend != "" {
		cfg.Cloudflare.Backend = strings.ToLower(backend)
	}
	if timeout := os.Getenv("DNS_RELAY_API_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Cloudflare.Timeout = d
		} else {
			slog.Default().Warn("fail parse api timeout to duration from string", "timeout", timeout, "error", err)
		}
	}
	if auditPath := os.Getenv("DNS_RELAY_AUDIT_PATH"); auditPath != "" {
		cfg.Audit.Path = auditPath
	}
	if domain := os.Getenv("DNS_RELAY_DDNS_DOMAIN"); domain != "" {
		cfg.DDNS.Domain = domain
	}
	if ttl := os.Getenv("DNS_RELAY_DDNS_TTL"); ttl != "" {
		if v, err := strconv.Atoi(ttl); err == nil {
			cfg.DDNS.TTL = v
		} else {
			slog.Default().Warn("fail parse ddns ttl to int from string", "ttl", ttl, "error", err)
		}
	}
	if proxied := os.Getenv("DNS_RELAY_DDNS_PROXIED"); proxied != "" {
		if v, err := strconv.ParseBool(proxied); err == nil {
			cfg.DDNS.Proxied = v
		} else {
			slog.Default().Warn("fail parse ddns proxied to bool from string", "proxied", proxied, "error", err)
		}
	}
	if interval := os.Getenv("DNS_RELAY_DDNS_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.DDNS.Interval = d
		} else {
			slog.Default().Warn("fail parse ddns interval to duration from string", "interval", interval, "error", err)
		}
	}
	if ipURL := os.Getenv("DNS_RELAY_DDNS_IP_URL"); ipURL != "" {
		cfg.DDNS.IPURL = ipURL
	}
}

// Validate reports settings that make the relay unusable.
func (cfg *Config) Validate() error {
	if cfg.Cloudflare.Token == "" {
		return errors.New("cloudflare api token required")
	}
	if !lo.Contains(backends, cfg.Cloudflare.Backend) {
		return fmt.Errorf("unknown cloudflare backend %q, want one of %s", cfg.Cloudflare.Backend, strings.Join(backends, ", "))
	}
	if cfg.Cloudflare.Timeout < 0 {
		return fmt.Errorf("cloudflare timeout must not be negative, got %s", cfg.Cloudflare.Timeout)
	}
	return nil
}
