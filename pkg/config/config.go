package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"HistPull/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Date is a calendar date written as YYYY-MM-DD in YAML.
type Date struct {
	time.Time
}

// UnmarshalYAML parses a YYYY-MM-DD scalar.
func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := util.ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MarshalYAML renders the date back to YYYY-MM-DD.
func (d Date) MarshalYAML() (interface{}, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.Format(util.DateLayout), nil
}

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		File   string `yaml:"file" default:"market_downloader.log"`
	} `yaml:"log"`
	Source struct {
		BaseURL        string        `yaml:"base_url" validate:"required,url"`
		Email          string        `yaml:"email" validate:"required"`
		Password       string        `yaml:"password" validate:"required"`
		Timeout        time.Duration `yaml:"timeout" default:"30s"`
		MaxRPS         float64       `yaml:"max_rps" validate:"gte=0"`
		SerializeFetch bool          `yaml:"serialize_fetch"`
	} `yaml:"source"`
	Download struct {
		StartDate   Date     `yaml:"start_date"`
		EndDate     Date     `yaml:"end_date"`
		Instruments []string `yaml:"instruments" default:"[\"NIFTY\",\"BANKNIFTY\"]" validate:"min=1,dive,required"`
		MaxWorkers  int      `yaml:"max_workers" default:"4" validate:"gte=1"`
		RootDir     string   `yaml:"root_dir" default:"market_data" validate:"required"`
		Format      string   `yaml:"format" default:"csv" validate:"oneof=csv xlsx"`
	} `yaml:"download"`
	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		PushURL string `yaml:"push_url" validate:"omitempty,url"`
		Job     string `yaml:"job" default:"histpull"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
		Topic        string   `yaml:"topic" default:"histpull.downloads"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" validate:"required_if=Enabled true"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"histpull"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Host      string        `yaml:"host" default:"localhost"`
		Port      int           `yaml:"port" default:"6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix" default:"histpull"`
		ReportTTL time.Duration `yaml:"report_ttl" default:"168h"`
	} `yaml:"redis"`
}

var validate = validator.New()

// LogFileNone in log.file turns the file sink off.
const LogFileNone = "none"

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MA_EMAIL"); v != "" {
		c.Source.Email = v
	}
	if v := os.Getenv("MA_PASSWORD"); v != "" {
		c.Source.Password = v
	}
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Download.Instruments = splitList(v)
	}
	if v := os.Getenv("START_DATE"); v != "" {
		t, err := util.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("START_DATE: %w", err)
		}
		c.Download.StartDate = Date{t}
	}
	if v := os.Getenv("END_DATE"); v != "" {
		t, err := util.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("END_DATE: %w", err)
		}
		c.Download.EndDate = Date{t}
	}
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		c.Download.MaxWorkers = util.ParseIntDefault(v, c.Download.MaxWorkers)
	}
	if v := os.Getenv("ROOT_DIR"); v != "" {
		c.Download.RootDir = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	if err := c.finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) finalize() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	if strings.EqualFold(c.Log.File, LogFileNone) {
		c.Log.File = ""
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Download.StartDate.IsZero() {
		return fmt.Errorf("download.start_date is required")
	}
	if c.Download.EndDate.IsZero() {
		return fmt.Errorf("download.end_date is required")
	}
	if c.Download.EndDate.Before(c.Download.StartDate.Time) {
		return fmt.Errorf("download.end_date %s is before start_date %s",
			c.Download.EndDate.Format(util.DateLayout), c.Download.StartDate.Format(util.DateLayout))
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
