// Package events publishes the engine's domain events to Kafka-compatible
// brokers. Consumers downstream (analytics, audit, companion apps) are out of
// scope here; the engine only guarantees best-effort emission.
package events

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Topic names for the care scheduling engine.
const (
	TopicReminderEvents = "care.reminder.events"
	TopicStockEvents    = "care.stock.events"
	TopicPainEvents     = "care.pain.events"
	TopicAuditTrail     = "care.audit.trail"
)

// TopicConfig holds creation parameters for one topic.
type TopicConfig struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Configs           map[string]*string
}

// DefaultTopicConfigs returns the topics the engine publishes to.
func DefaultTopicConfigs() []TopicConfig {
	ptr := func(s string) *string { return &s }

	retained := map[string]*string{
		"retention.ms":     ptr("2592000000"), // 30 days
		"cleanup.policy":   ptr("delete"),
		"compression.type": ptr("lz4"),
	}
	weekly := map[string]*string{
		"retention.ms":     ptr("604800000"), // 7 days
		"cleanup.policy":   ptr("delete"),
		"compression.type": ptr("lz4"),
	}

	return []TopicConfig{
		{Name: TopicReminderEvents, Partitions: 6, ReplicationFactor: 1, Configs: weekly},
		{Name: TopicStockEvents, Partitions: 3, ReplicationFactor: 1, Configs: weekly},
		{Name: TopicPainEvents, Partitions: 3, ReplicationFactor: 1, Configs: retained},
		{Name: TopicAuditTrail, Partitions: 3, ReplicationFactor: 1, Configs: retained},
	}
}

// Admin provides topic bootstrap against the broker.
type Admin struct {
	client *kadm.Client
	logger *zap.Logger
}

// NewAdmin creates an admin client for the given brokers.
func NewAdmin(brokers []string, logger *zap.Logger) (*Admin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	kgoClient, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Admin{client: kadm.NewClient(kgoClient), logger: logger}, nil
}

// EnsureTopics creates every engine topic that does not exist yet.
func (a *Admin) EnsureTopics(ctx context.Context) error {
	for _, cfg := range DefaultTopicConfigs() {
		resp, err := a.client.CreateTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, cfg.Configs, cfg.Name)
		if err != nil {
			return fmt.Errorf("create topic %s: %w", cfg.Name, err)
		}
		for _, r := range resp {
			if r.Err != nil {
				if r.Err.Error() == "TOPIC_ALREADY_EXISTS" {
					a.logger.Info("topic already exists", zap.String("topic", r.Topic))
					continue
				}
				return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
			}
			a.logger.Info("topic created",
				zap.String("topic", r.Topic),
				zap.Int32("partitions", cfg.Partitions))
		}
	}
	return nil
}

// Close releases the underlying client.
func (a *Admin) Close() {
	a.client.Close()
}
