package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"ima/broker"
	"ima/deadletter"
	"ima/sink"
)

const SupportedSchema = "v1"

// EnvPrefix namespaces variables such as IMA__BROKER__HOST.
const EnvPrefix = "IMA__"

type Config struct {
	SchemaVersion  string        `koanf:"schema_version"`
	ServiceName    string        `koanf:"service_name"`
	HTTPPort       int           `koanf:"http_port"`
	GRPCPort       int           `koanf:"grpc_port"`
	MetricsPort    int           `koanf:"metrics_port"`
	HealthInterval time.Duration `koanf:"health_interval"`

	Broker     broker.Config     `koanf:"broker"`
	Store      sink.Config       `koanf:"store"`
	DeadLetter deadletter.Config `koanf:"deadletter"`
}

// legacyEnv maps the variable names the service has always read.
var legacyEnv = map[string]string{
	"RABBITMQ_HOST":         "broker.host",
	"RABBITMQ_PORT":         "broker.port",
	"RABBITMQ_VIRTUAL_HOST": "broker.vhost",
	"RABBITMQ_USER":         "broker.user",
	"RABBITMQ_PASSWORD":     "broker.password",
	"RABBITMQ_QUEUE":        "broker.queue",
	"DB_HOST":               "store.host",
	"DB_PORT":               "store.port",
	"DB_USER":               "store.user",
	"DB_PASSWORD":           "store.password",
	"DB_NAME":               "store.database",
}

// Load merges, lowest precedence first: the YAML file at path (optional, a
// missing file is fine), the legacy variables, then IMA__SECTION__KEY
// variables.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		target, ok := legacyEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		return target, value
	}), nil); err != nil {
		return Config{}, err
	}

	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, err
	}

	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Config{}, fmt.Errorf("config schema_version %q not supported (want %s)", sv, SupportedSchema)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.SchemaVersion == "" {
		c.SchemaVersion = SupportedSchema
	}
	if c.ServiceName == "" {
		c.ServiceName = "ima"
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 5000
	}
	if c.GRPCPort == 0 {
		c.GRPCPort = 7070
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9100
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 30 * time.Second
	}
	broker.ApplyDefaults(&c.Broker)
	sink.ApplyDefaults(&c.Store)
}
