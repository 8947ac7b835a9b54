package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Liveboard/internal/domain"
)

// Транспорты push-событий.
const (
	TransportAMQP = "amqp"
	TransportNATS = "nats"
	TransportNone = "none"
)

// Config — полная конфигурация сервиса.
type Config struct {
	// Board — имя доски; ключ снимка для тёплого старта.
	Board string `yaml:"board"`

	POS      POSConfig      `yaml:"pos"`
	Orders   OrdersConfig   `yaml:"orders"`
	Events   EventsConfig   `yaml:"events"`
	Kitchen  KitchenConfig  `yaml:"kitchen"`
	Reports  ReportsConfig  `yaml:"reports"`
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

// POSConfig — клиент POS API.
type POSConfig struct {
	BaseURL    string        `yaml:"baseUrl"`
	Timeout    time.Duration `yaml:"timeout"`
	OrderTypes []string      `yaml:"orderTypes"`
}

// OrdersConfig — цикл заказов.
type OrdersConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	HydrateLimit int           `yaml:"hydrateLimit"`
	SettleDelay  time.Duration `yaml:"settleDelay"`
	SettleWindow time.Duration `yaml:"settleWindow"`
	RefreshCron  string        `yaml:"refreshCron"`
}

// EventsConfig — push-события.
type EventsConfig struct {
	// Transport — amqp, nats или none.
	Transport     string        `yaml:"transport"`
	Debounce      time.Duration `yaml:"debounce"`
	ConnectDelay  time.Duration `yaml:"connectDelay"`
	AMQPURL       string        `yaml:"amqpUrl"`
	Prefetch      int           `yaml:"prefetch"`
	NATSURL       string        `yaml:"natsUrl"`
	SubjectPrefix string        `yaml:"subjectPrefix"`
}

// KitchenConfig — правила исключений кухни.
type KitchenConfig struct {
	RulesTTL time.Duration `yaml:"rulesTtl"`

	// Drinks — названия напитков; пусто — встроенный список.
	Drinks []string `yaml:"drinks"`
}

// ReportsConfig — отчёт по водителям.
type ReportsConfig struct {
	Limit     int     `yaml:"limit"`
	MaxDays   int     `yaml:"maxDays"`
	Cron      string  `yaml:"cron"`
	Timezone  string  `yaml:"timezone"`
	DriverIDs []int64 `yaml:"driverIds"`
}

// DatabaseConfig — Postgres. Пустой URL отключает снимки и архив отчётов.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// HTTPConfig — HTTP API доски.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LogConfig — логирование.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *Config {
	return &Config{
		Board: "default",
		POS: POSConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 15 * time.Second,
		},
		Orders: OrdersConfig{
			PollInterval: 15 * time.Second,
			HydrateLimit: 6,
			SettleDelay:  60 * time.Millisecond,
			SettleWindow: 20 * time.Second,
		},
		Events: EventsConfig{
			Transport:     TransportNone,
			Debounce:      400 * time.Millisecond,
			ConnectDelay:  time.Second,
			Prefetch:      10,
			SubjectPrefix: "liveboard.events",
		},
		Kitchen: KitchenConfig{
			RulesTTL: 5 * time.Minute,
		},
		Reports: ReportsConfig{
			Limit:    6,
			MaxDays:  93,
			Timezone: "UTC",
		},
		HTTP: HTTPConfig{
			Port:            8090,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// Load читает конфигурацию из файла (пустой path — только значения по умолчанию),
// применяет переменные окружения и проверяет результат.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Events.Transport = strings.ToLower(strings.TrimSpace(cfg.Events.Transport))
	if cfg.Events.Transport == "" {
		cfg.Events.Transport = TransportNone
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv переопределяет значения переменными окружения.
//
// Переменные:
//   - POS_API_URL     — адрес POS API
//   - DB_URL          — строка подключения к Postgres
//   - RABBITMQ_URL    — адрес RabbitMQ (включает транспорт amqp, если транспорт не задан)
//   - NATS_URL        — адрес NATS (включает транспорт nats, если транспорт не задан)
//   - LIVEBOARD_PORT  — порт HTTP API
//   - LOG_LEVEL       — уровень логирования
//   - LOG_FORMAT      — формат логов (json, text)
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("POS_API_URL"); v != "" {
		c.POS.BaseURL = v
	}
	if v := getenv("DB_URL"); v != "" {
		c.Database.URL = v
	}
	if v := getenv("RABBITMQ_URL"); v != "" {
		c.Events.AMQPURL = v
		if c.Events.Transport == TransportNone {
			c.Events.Transport = TransportAMQP
		}
	}
	if v := getenv("NATS_URL"); v != "" {
		c.Events.NATSURL = v
		if c.Events.Transport == TransportNone {
			c.Events.Transport = TransportNATS
		}
	}
	if v := getenv("LIVEBOARD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LIVEBOARD_PORT %q: %w", v, err)
		}
		c.HTTP.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	var errs []error

	if c.POS.BaseURL == "" {
		errs = append(errs, errors.New("pos baseUrl is required"))
	}
	if c.POS.Timeout <= 0 {
		errs = append(errs, errors.New("pos timeout must be positive"))
	}
	for _, t := range c.POS.OrderTypes {
		if _, ok := domain.ParseOrderType(t); !ok {
			errs = append(errs, fmt.Errorf("unknown pos order type %q", t))
		}
	}
	if c.Orders.PollInterval <= 0 {
		errs = append(errs, errors.New("orders pollInterval must be positive"))
	}
	if c.Orders.HydrateLimit <= 0 {
		errs = append(errs, errors.New("orders hydrateLimit must be positive"))
	}
	if c.Orders.SettleDelay < 0 || c.Orders.SettleWindow < 0 {
		errs = append(errs, errors.New("orders settle delay and window cannot be negative"))
	}

	switch strings.ToLower(c.Events.Transport) {
	case TransportNone, "":
	case TransportAMQP:
		if c.Events.AMQPURL == "" {
			errs = append(errs, errors.New("events amqpUrl is required for amqp transport"))
		}
	case TransportNATS:
		if c.Events.NATSURL == "" {
			errs = append(errs, errors.New("events natsUrl is required for nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events transport %q", c.Events.Transport))
	}
	if c.Events.Debounce <= 0 {
		errs = append(errs, errors.New("events debounce must be positive"))
	}

	if c.Reports.Limit <= 0 {
		errs = append(errs, errors.New("reports limit must be positive"))
	}
	if c.Reports.MaxDays <= 0 {
		errs = append(errs, errors.New("reports maxDays must be positive"))
	}
	if c.Reports.Cron != "" && c.Database.URL == "" {
		errs = append(errs, errors.New("reports cron requires database url for the archive"))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http port %d out of range", c.HTTP.Port))
	}

	return errors.Join(errs...)
}

// Addr возвращает адрес HTTP-сервера.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTP.Port)
}
