package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/xraph/goalpace"
)

// envPrefix is prepended to every environment override, e.g.
// GOALPACE_STORE_DRIVER.
const envPrefix = "GOALPACE"

// settings is the fully resolved process configuration.
type settings struct {
	LogLevel string
	LogFile  string

	StoreDriver   string
	StoreDSN      string
	StoreDatabase string

	LocksDriver string
	LocksURL    string
	LocksBucket string

	CRMDSN      string
	MetricsAddr string

	RecalcRate  float64
	RecalcBurst int

	Core goalpace.Config
}

// newViper returns a viper instance with defaults and env binding applied.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	def := goalpace.DefaultConfig()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.database", "goalpace")
	v.SetDefault("locks.driver", "")
	v.SetDefault("locks.url", "")
	v.SetDefault("locks.bucket", "goalpace_locks")
	v.SetDefault("crm.dsn", "")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("recalc.rate", 0.0)
	v.SetDefault("recalc.burst", 1)
	v.SetDefault("lease_ttl", def.LeaseTTL)
	v.SetDefault("snapshot_interval", def.SnapshotInterval)
	v.SetDefault("recalc_interval", def.RecalcInterval)
	v.SetDefault("recalc_initial_delay", def.RecalcInitialDelay)
	v.SetDefault("significant_change", def.SignificantChange)
	v.SetDefault("stale_after", def.StaleAfter)
	v.SetDefault("timezone", "Local")
	return v
}

// bindFlags exposes the most common keys as persistent flags.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("config", "", "path to a YAML config file")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-file", "", "also write JSON logs to this file")
	fs.String("store", "memory", "store backend (memory, postgres, bun, mongo, redis)")
	fs.String("dsn", "", "store connection string")
	fs.String("locks", "", "separate lock backend (nats, redis)")
	fs.String("locks-url", "", "lock backend URL")
	fs.String("timezone", "Local", "IANA zone that decides calendar days")

	for key, flag := range map[string]string{
		"log.level":    "log-level",
		"log.file":     "log-file",
		"store.driver": "store",
		"store.dsn":    "dsn",
		"locks.driver": "locks",
		"locks.url":    "locks-url",
		"timezone":     "timezone",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

// loadSettings reads the optional config file and resolves every key.
func loadSettings(v *viper.Viper, configFile string) (settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return settings{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return settings{}, fmt.Errorf("%w: timezone: %v", goalpace.ErrInvalidConfig, err)
	}

	s := settings{
		LogLevel:      v.GetString("log.level"),
		LogFile:       v.GetString("log.file"),
		StoreDriver:   strings.ToLower(v.GetString("store.driver")),
		StoreDSN:      v.GetString("store.dsn"),
		StoreDatabase: v.GetString("store.database"),
		LocksDriver:   strings.ToLower(v.GetString("locks.driver")),
		LocksURL:      v.GetString("locks.url"),
		LocksBucket:   v.GetString("locks.bucket"),
		CRMDSN:        v.GetString("crm.dsn"),
		MetricsAddr:   v.GetString("metrics.addr"),
		RecalcRate:    v.GetFloat64("recalc.rate"),
		RecalcBurst:   v.GetInt("recalc.burst"),
		Core: goalpace.Config{
			LeaseTTL:           v.GetDuration("lease_ttl"),
			SnapshotInterval:   v.GetDuration("snapshot_interval"),
			RecalcInterval:     v.GetDuration("recalc_interval"),
			RecalcInitialDelay: v.GetDuration("recalc_initial_delay"),
			SignificantChange:  v.GetFloat64("significant_change"),
			StaleAfter:         v.GetDuration("stale_after"),
			Location:           loc,
		},
	}
	if err := s.validate(); err != nil {
		return settings{}, err
	}
	return s, nil
}

func (s settings) validate() error {
	if err := s.Core.Validate(); err != nil {
		return err
	}
	switch s.StoreDriver {
	case "memory":
	case "postgres", "bun", "mongo", "redis":
		if s.StoreDSN == "" {
			return fmt.Errorf("%w: store %s needs a dsn", goalpace.ErrInvalidConfig, s.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", goalpace.ErrInvalidConfig, s.StoreDriver)
	}
	switch s.LocksDriver {
	case "":
	case "nats", "redis":
		if s.LocksURL == "" {
			return fmt.Errorf("%w: locks %s needs a url", goalpace.ErrInvalidConfig, s.LocksDriver)
		}
	default:
		return fmt.Errorf("%w: unknown locks driver %q", goalpace.ErrInvalidConfig, s.LocksDriver)
	}
	if s.RecalcRate < 0 {
		return fmt.Errorf("%w: recalc rate must not be negative", goalpace.ErrInvalidConfig)
	}
	if _, err := parseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", goalpace.ErrInvalidConfig, s)
	}
	return lvl, nil
}
