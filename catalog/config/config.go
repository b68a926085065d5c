package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/Astemirdum/bookshelf-service/pkg/database"
	"github.com/Astemirdum/bookshelf-service/pkg/kafka"
	"github.com/Astemirdum/bookshelf-service/pkg/logger"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"HTTP_PORT" default:"8000"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE" default:"30s"`
}

type Import struct {
	// BootstrapCSV is loaded on start when the catalog is empty.
	BootstrapCSV string `yaml:"bootstrapCsv" envconfig:"BOOTSTRAP_CSV" default:"lib_updated.csv"`
	// Headers optionally points at a YAML header vocabulary overriding the built-in one.
	Headers string `yaml:"headers" envconfig:"IMPORT_HEADERS"`
}

type Config struct {
	Server   HTTPServer   `yaml:"server"`
	Database database.DB  `yaml:"db"`
	Kafka    kafka.Config `yaml:"kafka"`
	Import   Import       `yaml:"import"`
	Log      logger.Log   `yaml:"log"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment once per process.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		config, err := Load(ops...)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})
	return cfg
}

// Load reads the environment and then applies ops, so explicit options win over env values.
func Load(ops ...Option) (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, errors.Wrap(err, "envconfig")
	}
	for _, op := range ops {
		op(&config)
	}
	return &config, nil
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
