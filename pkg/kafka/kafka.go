package kafka

import (
	"github.com/IBM/sarama"
)

const CatalogTopic = "bookshelf.catalog"

type Config struct {
	Addrs []string `envconfig:"KAFKA_ADDRS"`
	Topic string   `envconfig:"KAFKA_TOPIC" default:"bookshelf.catalog"`
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.Addrs) > 0
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	return sarama.NewSyncProducer(cfg.Addrs, ProducerConfig())
}

func ProducerConfig() *sarama.Config {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Retry.Max = 3
	defaultCfg.Producer.Partitioner = sarama.NewHashPartitioner

	return defaultCfg
}

// TopicOrDefault is the configured topic, CatalogTopic when unset.
func (c Config) TopicOrDefault() string {
	if c.Topic == "" {
		return CatalogTopic
	}
	return c.Topic
}
