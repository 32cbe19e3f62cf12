package broker

import "time"

type Config struct {
	Driver   string `koanf:"driver"` // rabbitmq|memory
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	VHost    string `koanf:"vhost"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Queue    string `koanf:"queue"`

	Heartbeat   time.Duration `koanf:"heartbeat"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	// PublisherConfirms makes Publish wait for the broker's confirm.
	PublisherConfirms bool `koanf:"publisher_confirms"`
}

func ApplyDefaults(c *Config) {
	if c.Driver == "" {
		c.Driver = "rabbitmq"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5672
	}
	if c.VHost == "" {
		c.VHost = "/"
	}
	if c.User == "" {
		c.User = "guest"
	}
	if c.Password == "" && c.User == "guest" {
		c.Password = "guest"
	}
	if c.Queue == "" {
		c.Queue = "mensagens"
	}
	if c.Heartbeat == 0 {
		c.Heartbeat = 10 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
}
