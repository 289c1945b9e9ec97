package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vietanh2810/mc-economy/internal/governance"
	"github.com/vietanh2810/mc-economy/internal/recognition"
)

const envPrefix = "MCE"

var (
	errMissingPort       = errors.New("api.port is required")
	errMissingSigningKey = errors.New("api.jwt_signing_key is required")
)

type AppConfig struct {
	API         *APIConfig         `mapstructure:"api"`
	Gin         *GinConfig         `mapstructure:"gin"`
	Postgres    *PostgresConfig    `mapstructure:"postgres"`
	Economy     *EconomyConfig     `mapstructure:"economy"`
	Integration *IntegrationConfig `mapstructure:"integration"`

	v           *viper.Viper
	maintenance *Toggle
}

type APIConfig struct {
	Environment        string   `mapstructure:"environment"`
	Port               string   `mapstructure:"port"`
	BaseURL            string   `mapstructure:"base_url"`
	AllowedCORSDomains []string `mapstructure:"allowed_cors_domains"`
	JWTSigningKey      string   `mapstructure:"jwt_signing_key"`
	NodeID             int64    `mapstructure:"node_id"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type EconomyConfig struct {
	MaintenanceMode        bool               `mapstructure:"maintenance_mode"`
	ForbiddenActorPatterns []string           `mapstructure:"forbidden_actor_patterns"`
	AllowedActorIDs        []string           `mapstructure:"allowed_actor_ids"`
	Recognition            recognition.Policy `mapstructure:"recognition"`
	Governance             governance.Policy  `mapstructure:"governance"`
}

type IntegrationConfig struct {
	StreamPollInterval time.Duration    `mapstructure:"stream_poll_interval"`
	StreamGapGrace     time.Duration    `mapstructure:"stream_gap_grace"`
	Consumers          []ConsumerConfig `mapstructure:"consumers"`
}

// ConsumerConfig is one row of the consumer to read-scope matrix. KeyHash is
// a bcrypt hash of the consumer's API key.
type ConsumerConfig struct {
	Name    string   `mapstructure:"name"`
	KeyHash string   `mapstructure:"key_hash"`
	Scopes  []string `mapstructure:"scopes"`
}

// Toggle is an operator switch that can flip while the server runs.
type Toggle struct {
	on atomic.Bool
}

func (t *Toggle) Enabled() bool {
	return t.on.Load()
}

func (t *Toggle) Set(on bool) {
	t.on.Store(on)
}

// Load reads the YAML file at path. Every key can be overridden by an
// environment variable such as MCE_POSTGRES_HOST.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	conf := &AppConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("v.Unmarshal -> %w", err)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}

	conf.v = v
	conf.maintenance = &Toggle{}
	conf.maintenance.Set(conf.Economy.MaintenanceMode)

	return conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.environment", "development")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.base_url", "localhost:8080")
	v.SetDefault("api.jwt_signing_key", "")
	v.SetDefault("api.node_id", 1)
	v.SetDefault("gin.mode", "debug")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "mc_economy")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("economy.maintenance_mode", false)
	v.SetDefault("economy.recognition.min_stake", recognition.DefaultMinStake)
	v.SetDefault("economy.recognition.rate", recognition.DefaultRate)
	v.SetDefault("economy.governance.transfer_review_ratio", governance.DefaultPolicy().TransferReviewRatio)
	v.SetDefault("economy.governance.elevated_amount", governance.DefaultPolicy().ElevatedAmount)
	v.SetDefault("integration.stream_poll_interval", "2s")
	v.SetDefault("integration.stream_gap_grace", "30s")
}

func (c *AppConfig) validate() error {
	if c.API.Port == "" {
		return errMissingPort
	}
	if c.API.JWTSigningKey == "" {
		return errMissingSigningKey
	}
	return nil
}

// Maintenance is the live store maintenance switch.
func (c *AppConfig) Maintenance() *Toggle {
	return c.maintenance
}

// Watch reloads economy.maintenance_mode whenever the config file changes.
// Other keys need a restart.
func (c *AppConfig) Watch() {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		on := c.v.GetBool("economy.maintenance_mode")
		if on != c.maintenance.Enabled() {
			zap.L().Info("store maintenance toggled",
				zap.Bool("maintenance_mode", on),
				zap.String("file", e.Name))
		}
		c.maintenance.Set(on)
	})
	c.v.WatchConfig()
}
