package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
	Terrain   TerrainConfig   `yaml:"terrain" mapstructure:"terrain"`
	Correlate CorrelateConfig `yaml:"correlate" mapstructure:"correlate"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
}

// DatabaseConfig configures the Postgres/PostGIS backend.
type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ImportConfig configures batch ingest behavior.
type ImportConfig struct {
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	RunLog    string `yaml:"runlog" mapstructure:"runlog"`
	Encoding  string `yaml:"encoding" mapstructure:"encoding"`
}

// TerrainConfig configures DEM analysis.
type TerrainConfig struct {
	CellSize            int     `yaml:"cell_size" mapstructure:"cell_size"`
	SlopeThreshold      float64 `yaml:"slope_threshold" mapstructure:"slope_threshold"`
	SampleStride        int     `yaml:"sample_stride" mapstructure:"sample_stride"`
	SubsidenceThreshold float64 `yaml:"subsidence_threshold" mapstructure:"subsidence_threshold"`
	SubsidenceStride    int     `yaml:"subsidence_stride" mapstructure:"subsidence_stride"`
	PixelSizeM          float64 `yaml:"pixel_size_m" mapstructure:"pixel_size_m"`
}

// CorrelateConfig configures spatial correlation runs.
type CorrelateConfig struct {
	MaxDistanceM float64 `yaml:"max_distance_m" mapstructure:"max_distance_m"`
	K            int     `yaml:"k" mapstructure:"k"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// FetchConfig configures remote input acquisition.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Retries     int     `yaml:"retries" mapstructure:"retries"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("gms-cli")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.gms-cli")
	v.AddConfigPath("/etc/gms-cli")

	// Environment
	v.SetEnvPrefix("GMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("import.batch_size", 10)
	v.SetDefault("import.runlog", "import.runlog.db")
	v.SetDefault("import.encoding", "")
	v.SetDefault("terrain.cell_size", 10)
	v.SetDefault("terrain.slope_threshold", 30.0)
	v.SetDefault("terrain.sample_stride", 100)
	v.SetDefault("terrain.subsidence_threshold", 0.1)
	v.SetDefault("terrain.subsidence_stride", 50)
	v.SetDefault("terrain.pixel_size_m", 30.0)
	v.SetDefault("correlate.max_distance_m", 50.0)
	v.SetDefault("correlate.k", 5)
	v.SetDefault("correlate.concurrency", 4)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.rate_per_sec", 4.0)
	v.SetDefault("fetch.retries", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode.
// Mode "db" is any command that talks to Postgres; mode "local" covers
// commands that only touch the filesystem.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkCommon := func() {
		if c.Import.BatchSize < 1 || c.Import.BatchSize > 10000 {
			problems = append(problems, "import.batch_size must be between 1 and 10000")
		}
		if c.Terrain.CellSize < 1 {
			problems = append(problems, "terrain.cell_size must be >= 1")
		}
		if c.Terrain.SampleStride < 1 || c.Terrain.SubsidenceStride < 1 {
			problems = append(problems, "terrain strides must be >= 1")
		}
		if c.Terrain.SubsidenceThreshold <= 0 {
			problems = append(problems, "terrain.subsidence_threshold must be > 0")
		}
		if c.Terrain.PixelSizeM <= 0 {
			problems = append(problems, "terrain.pixel_size_m must be > 0")
		}
		if c.Correlate.K < 1 {
			problems = append(problems, "correlate.k must be >= 1")
		}
		if c.Correlate.MaxDistanceM <= 0 {
			problems = append(problems, "correlate.max_distance_m must be > 0")
		}
		if c.Correlate.Concurrency < 1 || c.Correlate.Concurrency > 64 {
			problems = append(problems, "correlate.concurrency must be between 1 and 64")
		}
	}

	switch mode {
	case "db":
		if c.Database.URL == "" {
			problems = append(problems, "database.url is required (or set GMS_DATABASE_URL)")
		}
		checkCommon()
	case "local":
		checkCommon()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
