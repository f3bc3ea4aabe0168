package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/rlch/neoimport"
)

type Neo4jConfig struct {
	URI                   string        `yaml:"uri" validate:"required,uri"`
	User                  string        `yaml:"user" validate:"required"`
	Password              string        `yaml:"password"`
	Database              string        `yaml:"database"`
	MaxConnectionPoolSize int           `yaml:"max_connection_pool_size" validate:"gte=0"`
	ConnectionTimeout     time.Duration `yaml:"connection_timeout" validate:"gte=0"`
}

type FilesConfig struct {
	BasePath  string `yaml:"base_path" validate:"required"`
	Customers string `yaml:"customers" validate:"required"`
	Transfers string `yaml:"transfers" validate:"required"`
	Purchases string `yaml:"purchases" validate:"required"`
}

type ImportConfig struct {
	BatchSize    int           `yaml:"batch_size" validate:"gte=1"`
	Parallelism  int           `yaml:"parallelism" validate:"gte=1,lte=12"`
	FailFast     bool          `yaml:"fail_fast"`
	CountSkipped bool          `yaml:"count_skipped"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

type OutputConfig struct {
	ReportPath      string `yaml:"report_path"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Settings is the process configuration of the importer.
type Settings struct {
	Neo4j  Neo4jConfig  `yaml:"neo4j"`
	Files  FilesConfig  `yaml:"files"`
	Import ImportConfig `yaml:"import"`
	Log    LogConfig    `yaml:"log"`
	Output OutputConfig `yaml:"output"`
}

var validate = validator.New()

// Default returns the settings used when nothing overrides them.
func Default() Settings {
	return Settings{
		Neo4j: Neo4jConfig{
			URI:  "neo4j://localhost:7687",
			User: "neo4j",
		},
		Files: FilesConfig{
			BasePath:  neoimport.DefaultFiles.Root,
			Customers: neoimport.DefaultFiles.Customers,
			Transfers: neoimport.DefaultFiles.Transfers,
			Purchases: neoimport.DefaultFiles.Purchases,
		},
		Import: ImportConfig{
			BatchSize:    neoimport.DefaultBatchSize,
			Parallelism:  1,
			CountSkipped: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the settings from the defaults, the YAML file at path (skipped
// when path is empty), a .env file in the working directory if present, and
// finally the environment. The result is validated.
func Load(path string) (*Settings, error) {
	s := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings against their constraints.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides settings from NEO4J_* and NEOIMPORT_* variables.
func (s *Settings) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := cast.ToBoolE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := cast.ToDurationE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("NEO4J_URI", &s.Neo4j.URI)
	str("NEO4J_USER", &s.Neo4j.User)
	str("NEO4J_PASSWORD", &s.Neo4j.Password)
	str("NEO4J_DATABASE", &s.Neo4j.Database)
	num("NEO4J_MAX_CONNECTION_POOL_SIZE", &s.Neo4j.MaxConnectionPoolSize)
	dur("NEO4J_CONNECTION_TIMEOUT", &s.Neo4j.ConnectionTimeout)

	str("NEOIMPORT_BASE_PATH", &s.Files.BasePath)
	str("NEOIMPORT_CUSTOMERS_FILE", &s.Files.Customers)
	str("NEOIMPORT_TRANSFERS_FILE", &s.Files.Transfers)
	str("NEOIMPORT_PURCHASES_FILE", &s.Files.Purchases)

	num("NEOIMPORT_BATCH_SIZE", &s.Import.BatchSize)
	num("NEOIMPORT_PARALLELISM", &s.Import.Parallelism)
	flag("NEOIMPORT_FAIL_FAST", &s.Import.FailFast)
	flag("NEOIMPORT_COUNT_SKIPPED", &s.Import.CountSkipped)
	dur("NEOIMPORT_TIMEOUT", &s.Import.Timeout)

	str("LOG_LEVEL", &s.Log.Level)
	str("LOG_FORMAT", &s.Log.Format)

	str("NEOIMPORT_REPORT_PATH", &s.Output.ReportPath)
	str("NEOIMPORT_METRICS_TEXTFILE", &s.Output.MetricsTextfile)

	return errors.Join(errs...)
}

// ImportFiles returns the importer view of the CSV locations.
func (s *Settings) ImportFiles() neoimport.Files {
	return neoimport.Files{
		Root:      s.Files.BasePath,
		Customers: s.Files.Customers,
		Transfers: s.Files.Transfers,
		Purchases: s.Files.Purchases,
	}
}

// DriverOptions returns the connection pool settings.
func (s *Settings) DriverOptions() neoimport.DriverOptions {
	return neoimport.DriverOptions{
		MaxConnectionPoolSize:        s.Neo4j.MaxConnectionPoolSize,
		ConnectionAcquisitionTimeout: s.Neo4j.ConnectionTimeout,
		SocketConnectTimeout:         s.Neo4j.ConnectionTimeout,
	}
}

// Policy returns the failure policy for the load phases.
func (s *Settings) Policy() neoimport.Policy {
	if s.Import.FailFast {
		return neoimport.FailFast
	}
	return neoimport.ContinueOnError
}

// Configurers returns the importer options derived from the settings.
func (s *Settings) Configurers() []neoimport.Configurer {
	return []neoimport.Configurer{
		neoimport.WithFiles(s.ImportFiles()),
		neoimport.WithDatabase(s.Neo4j.Database),
		neoimport.WithBatchSize(s.Import.BatchSize),
		neoimport.WithParallelism(s.Import.Parallelism),
		neoimport.WithPolicy(s.Policy()),
		neoimport.WithSkipCounting(s.Import.CountSkipped),
	}
}
