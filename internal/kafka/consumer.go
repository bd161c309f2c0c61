package kafka

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"vn.io.arda/rolesync/internal/application"
	"vn.io.arda/rolesync/internal/kafka/registry"
	"vn.io.arda/rolesync/internal/metrics"

	// Blank imports trigger init() in each handler file,
	// registering all event handlers into the registry.
	_ "vn.io.arda/rolesync/internal/kafka/handlers"
)

// CommandHandler executes commands decoded from Kafka records.
// Implemented by application.Service.
type CommandHandler interface {
	Handle(ctx context.Context, cmd application.Command) error
}

// Consumer wraps the franz-go Kafka client.
type Consumer struct {
	client  *kgo.Client
	handler CommandHandler
	realm   string
}

// New creates a Consumer with the given brokers, group ID, and topics.
// Events from realms other than realm are skipped.
func New(brokers []string, groupID string, topics []string, realm string, handler CommandHandler) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: client, handler: handler, realm: realm}, nil
}

// Start begins polling Kafka and processing records. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	log.Info().Msg("kafka consumer started")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		fetches.EachRecord(func(r *kgo.Record) {
			Process(ctx, c.handler, c.realm, r.Topic, r.Key, r.Value)
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			log.Error().Err(err).Msg("kafka commit error")
		}
	}

	c.client.Close()
	log.Info().Msg("kafka consumer stopped")
}

// Process dispatches one record to the registered handler via the registry and
// executes the resulting command. Failures are logged and not retried; the
// next event for the same user or role gets another chance.
func Process(ctx context.Context, h CommandHandler, realm, topic string, key, value []byte) {
	log.Debug().
		Str("topic", topic).
		Str("key", string(key)).
		Msg("processing kafka record")

	cmd := registry.DispatchDirect(topic, value)
	if cmd == nil {
		cmd = registry.Dispatch(topic, value)
	}

	if cmd == nil {
		log.Debug().Str("topic", topic).Msg("no handler matched, skipping")
		return
	}

	if realm != "" && cmd.Realm != "" && cmd.Realm != realm {
		metrics.Events.WithLabelValues(string(cmd.Kind), "skipped").Inc()
		log.Debug().Str("realm", cmd.Realm).Str("kind", string(cmd.Kind)).Msg("event from foreign realm, skipping")
		return
	}

	if err := h.Handle(ctx, *cmd); err != nil {
		metrics.Events.WithLabelValues(string(cmd.Kind), "failed").Inc()
		log.Error().Err(err).
			Str("topic", topic).
			Str("kind", string(cmd.Kind)).
			Str("user_id", cmd.User.ID).
			Str("role", cmd.RoleID).
			Str("source_event_id", cmd.SourceEventID).
			Msg("failed to handle kafka event")
		return
	}
	metrics.Events.WithLabelValues(string(cmd.Kind), "ok").Inc()
}
