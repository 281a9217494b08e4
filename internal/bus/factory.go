package bus

import (
	"fmt"
	"strings"

	"github.com/raggrid/rag-grid/internal/config"
	"github.com/raggrid/rag-grid/internal/pkg/errors"
	"github.com/raggrid/rag-grid/internal/pkg/logger"
)

// New creates a Bus instance based on the configuration.
func New(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		return NewMemoryBus(log), nil

	case "kafka":
		brokers := ParseBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.ValidationError("kafka brokers not configured")
		}

		group := cfg.KafkaGroup
		if group == "" {
			group = "rag-grid"
		}

		return NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: group,
			ClientID:      "rag-grid-bus",
		}, log)

	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}
}
