// Package events publishes catalog change notifications.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/bookshelf-service/catalog/internal/model"
	"github.com/Astemirdum/bookshelf-service/pkg/circuit_breaker"
)

type Type string

const (
	BookCreated     Type = "book.created"
	BookUpdated     Type = "book.updated"
	BookDeleted     Type = "book.deleted"
	CatalogImported Type = "catalog.imported"
)

type Event struct {
	Type   Type                `json:"type"`
	BookID int64               `json:"book_id,omitempty"`
	Book   *model.Book         `json:"book,omitempty"`
	Import *model.ImportResult `json:"import,omitempty"`
	At     time.Time           `json:"at"`
}

// Key partitions book events by id so that one book's events stay ordered.
func (e Event) Key() string {
	if e.BookID != 0 {
		return strconv.FormatInt(e.BookID, 10)
	}
	return string(e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		cb:       circuit_breaker.New(20, 30*time.Second, 0.5, 2),
		log:      log.Named("events"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Key()),
		Value: sarama.ByteEncoder(data),
	}
	return p.cb.Call(func() error {
		partition, offset, err := p.producer.SendMessage(msg)
		if err != nil {
			return errors.Wrapf(err, "send %s", e.Type)
		}
		p.log.Debug("published", zap.String("type", string(e.Type)),
			zap.Int32("partition", partition), zap.Int64("offset", offset))
		return nil
	})
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// Nop drops every event; it is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
