package sink

import "time"

type Config struct {
	Driver   string `koanf:"driver"` // mysql|postgres|stdout
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	Table    string `koanf:"table"`

	// Deduplicate turns a repeated uuid into a no-op insert.
	Deduplicate bool `koanf:"deduplicate"`
	AutoMigrate bool `koanf:"auto_migrate"`

	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MaxConns       int           `koanf:"max_conns"`
}

func ApplyDefaults(c *Config) {
	if c.Driver == "" {
		c.Driver = "mysql"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		default:
			c.Port = 3306
		}
	}
	if c.Table == "" {
		c.Table = "tabela_mensagens"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.MaxConns == 0 {
		c.MaxConns = 4
	}
}
