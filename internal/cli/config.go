package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/depadvise/depadvise"
	"github.com/depadvise/depadvise/catalog"
)

// Config captures runtime settings for the depadvise CLI.
type Config struct {
	Strategy        string        `mapstructure:"strategy"`
	MaxCombinations int           `mapstructure:"max-combinations"`
	Concurrency     int           `mapstructure:"concurrency"`
	TestTimeout     time.Duration `mapstructure:"test-timeout"`
	SkipTests       bool          `mapstructure:"skip-tests"`
	PriorityMode    string        `mapstructure:"priority-mode"`
	ImpactThreshold float64       `mapstructure:"impact-threshold"`
	CatalogURL      string        `mapstructure:"catalog-url"`
	CatalogFile     string        `mapstructure:"catalog-file"`
	HistoryDir      string        `mapstructure:"history-dir"`
	Seed            int64         `mapstructure:"seed"`
	Verbose         bool          `mapstructure:"verbose"`
}

// LoadConfig merges defaults, an optional config file, environment
// variables, and command flags, in ascending precedence. An explicit
// config path must exist; the default search paths may not.
func LoadConfig(configPath string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("depadvise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/depadvise")
	}
	v.SetEnvPrefix("DEPADVISE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("strategy", string(depadvise.StrategyBalanced))
	v.SetDefault("max-combinations", 10)
	v.SetDefault("concurrency", 4)
	v.SetDefault("test-timeout", 30*time.Second)
	v.SetDefault("priority-mode", string(depadvise.PriorityHybrid))
	v.SetDefault("impact-threshold", 0.5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Options converts the CLI configuration into advisor options.
func (c Config) Options(logger *slog.Logger) ([]depadvise.Option, error) {
	kind, err := depadvise.ParseStrategyKind(c.Strategy)
	if err != nil {
		return nil, err
	}
	mode, err := depadvise.ParsePriorityMode(c.PriorityMode)
	if err != nil {
		return nil, err
	}

	opts := []depadvise.Option{
		depadvise.WithStrategy(kind),
		depadvise.WithMaxCombinations(c.MaxCombinations),
		depadvise.WithConcurrency(c.Concurrency),
		depadvise.WithTestTimeout(c.TestTimeout),
		depadvise.WithPriorityMode(mode),
		depadvise.WithImpactThreshold(c.ImpactThreshold),
	}
	if c.SkipTests {
		opts = append(opts, depadvise.WithSkipTests())
	}
	if c.Seed != 0 {
		opts = append(opts, depadvise.WithSeed(c.Seed))
	}
	cat, err := c.buildCatalog(logger)
	if err != nil {
		return nil, err
	}
	if cat != nil {
		opts = append(opts, depadvise.WithCatalog(cat))
	}
	if c.HistoryDir != "" {
		store, err := depadvise.NewHistoryStore(c.HistoryDir)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		opts = append(opts, depadvise.WithHistory(store))
	}
	if logger != nil {
		opts = append(opts, depadvise.WithLogger(logger))
	}
	return opts, nil
}

// buildCatalog assembles the version source. A registry URL and a
// snapshot file chain together, registry first, so offline snapshots
// cover registry outages. Nil means no catalog was configured.
func (c Config) buildCatalog(logger *slog.Logger) (depadvise.Catalog, error) {
	var catalogs []depadvise.Catalog
	if c.CatalogURL != "" {
		client := catalog.NewClient(c.CatalogURL)
		catalogs = append(catalogs, depadvise.NewRegistryCatalog(client, logger))
	}
	if c.CatalogFile != "" {
		fc, err := depadvise.NewFileCatalog(c.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("load catalog snapshot: %w", err)
		}
		catalogs = append(catalogs, fc)
	}
	switch len(catalogs) {
	case 0:
		return nil, nil
	case 1:
		return catalogs[0], nil
	default:
		return depadvise.NewChainCatalog(catalogs, logger), nil
	}
}
