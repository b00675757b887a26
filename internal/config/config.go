package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matijazezelj/peerscope/internal/topology"
	"github.com/matijazezelj/peerscope/pkg/models"
	"github.com/spf13/viper"
)

// MinRefreshInterval is the shortest accepted refresh schedule.
const MinRefreshInterval = time.Minute

type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Topology TopologyConfig `mapstructure:"topology"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Server   ServerConfig   `mapstructure:"server"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
}

type StorageConfig struct {
	Path     string         `mapstructure:"path"`
	Memgraph MemgraphConfig `mapstructure:"memgraph"`
}

type MemgraphConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SourcesConfig struct {
	Files []FileSource `mapstructure:"files"`
}

// FileSource is a snapshot file or a directory of snapshot files.
type FileSource struct {
	Path string `mapstructure:"path"`
}

// TopologyConfig holds the presentation settings handed to the builder.
type TopologyConfig struct {
	SizeFactor         int                       `mapstructure:"size_factor"`
	DenseLinkThreshold int                       `mapstructure:"dense_link_threshold"`
	ConflictPolicy     string                    `mapstructure:"conflict_policy"`
	FallbackStyle      topology.Style            `mapstructure:"fallback_style"`
	States             map[string]topology.Style `mapstructure:"states"`
}

type AlertsConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	Stdout  StdoutConfig  `mapstructure:"stdout"`
}

type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type StdoutConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type ServerConfig struct {
	Listen     string `mapstructure:"listen"`
	ReadOnly   bool   `mapstructure:"read_only"`
	APIToken   string `mapstructure:"api_token"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type RefreshConfig struct {
	Schedule  string `mapstructure:"schedule"`
	OnStartup bool   `mapstructure:"on_startup"`
}

// Load reads the configuration from file and environment variables.
// Environment variables use the PEERSCOPE_ prefix with dots replaced by
// underscores, e.g. PEERSCOPE_SERVER_LISTEN.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".peerscope"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("peerscope")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PEERSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.expandEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "./data/peerscope.db")
	v.SetDefault("storage.memgraph.enabled", false)
	v.SetDefault("storage.memgraph.uri", "bolt://localhost:7687")
	v.SetDefault("topology.size_factor", topology.DefaultSizeFactor)
	v.SetDefault("topology.dense_link_threshold", topology.DefaultDenseLinkThreshold)
	v.SetDefault("topology.conflict_policy", string(topology.ConflictKeepFirst))
	v.SetDefault("topology.fallback_style.color", topology.FallbackStyle.Color)
	v.SetDefault("topology.fallback_style.line_style", topology.FallbackStyle.LineStyle)
	v.SetDefault("alerts.stdout.enabled", true)
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_only", false)
	v.SetDefault("refresh.on_startup", true)
}

func (c *Config) expandEnv() {
	c.Server.APIToken = os.ExpandEnv(c.Server.APIToken)
	for k, v := range c.Alerts.Webhook.Headers {
		c.Alerts.Webhook.Headers[k] = os.ExpandEnv(v)
	}
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := topology.ParseConflictPolicy(c.Topology.ConflictPolicy); err != nil {
		return fmt.Errorf("topology.conflict_policy: %w", err)
	}
	if c.Topology.SizeFactor < 0 {
		return fmt.Errorf("topology.size_factor must not be negative, got %d", c.Topology.SizeFactor)
	}
	if c.Topology.DenseLinkThreshold < 0 {
		return fmt.Errorf("topology.dense_link_threshold must not be negative, got %d", c.Topology.DenseLinkThreshold)
	}
	if _, err := c.RefreshInterval(); err != nil {
		return err
	}
	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		return errors.New("alerts.webhook.url is required when the webhook is enabled")
	}
	for i, f := range c.Sources.Files {
		if f.Path == "" {
			return fmt.Errorf("sources.files[%d].path is empty", i)
		}
	}
	if _, err := c.BuilderOptions(); err != nil {
		return err
	}
	return nil
}

// RefreshInterval parses refresh.schedule. Zero means no scheduled refresh.
func (c *Config) RefreshInterval() (time.Duration, error) {
	if c.Refresh.Schedule == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Refresh.Schedule)
	if err != nil {
		return 0, fmt.Errorf("refresh.schedule: %w", err)
	}
	if d < MinRefreshInterval {
		return 0, fmt.Errorf("refresh.schedule must be at least %s, got %s", MinRefreshInterval, d)
	}
	return d, nil
}

// BuilderOptions converts the topology section into builder options. State
// overrides replace entries of the default palette and may set only a color
// or only a line style; config keys match state names case-insensitively
// since viper lowercases them. Overrides for unknown states are rejected.
func (c *Config) BuilderOptions() (topology.Options, error) {
	policy, err := topology.ParseConflictPolicy(c.Topology.ConflictPolicy)
	if err != nil {
		return topology.Options{}, err
	}

	defaults := topology.DefaultStyleTable()
	styles := topology.DefaultStyles()
	for name, style := range c.Topology.States {
		state := canonicalState(name)
		base, ok := defaults.Lookup(state)
		if !ok {
			return topology.Options{}, fmt.Errorf("topology.states: unknown peering state %q", name)
		}
		if style.Color == "" {
			style.Color = base.Color
		}
		if style.LineStyle == "" {
			style.LineStyle = base.LineStyle
		}
		styles[state] = style
	}
	table := topology.NewStyleTable(styles, c.Topology.FallbackStyle)

	return topology.Options{
		Styles:             &table,
		SizeFactor:         c.Topology.SizeFactor,
		DenseLinkThreshold: c.Topology.DenseLinkThreshold,
		ConflictPolicy:     policy,
	}, nil
}

var knownStates = []models.PeeringState{
	models.StateConnected,
	models.StateDisconnected,
	models.StateUpdating,
	models.StateInitiated,
}

func canonicalState(name string) models.PeeringState {
	for _, s := range knownStates {
		if strings.EqualFold(string(s), name) {
			return s
		}
	}
	return models.PeeringState(name)
}
