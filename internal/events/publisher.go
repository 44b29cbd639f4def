package events

import (
	"fmt"

	"commerce-core/internal/config"

	"github.com/rs/zerolog"
)

// NewPublisher selects the broker named by cfg.Driver.
func NewPublisher(cfg config.EventsConfig, logger zerolog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case config.EventsDriverKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.TopicPrefix, logger), nil
	case config.EventsDriverRabbitMQ:
		return NewAMQPPublisher(cfg.RabbitMQURL, cfg.Exchange, logger)
	case config.EventsDriverNone, "":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
