package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

// Forwarder mirrors security records onto a message bus so SIEM consumers
// can subscribe to verdicts independently of the log sink.
type Forwarder interface {
	Forward(ctx context.Context, record SecurityRecord) error
	Close() error
}

// DriverFactory builds a watermill publisher for a named forwarder driver.
type DriverFactory func(cfg ForwarderConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error)

var driverFactories = map[string]DriverFactory{
	"gochannel": buildGoChannelDriver,
}

// RegisterForwarderDriver makes a custom driver available by name.
func RegisterForwarderDriver(name string, factory DriverFactory) {
	if name == "" || factory == nil {
		return
	}
	driverFactories[strings.ToLower(name)] = factory
}

// NewForwarder builds one forwarder per configured driver. Drivers that fail
// to initialize are skipped; construction only fails when none are usable.
func NewForwarder(cfg ForwarderConfig) (Forwarder, error) {
	logger := watermill.NewStdLogger(false, false)

	drivers := cfg.Drivers
	if len(drivers) == 0 && cfg.Driver != "" {
		drivers = []string{cfg.Driver}
	}
	if len(drivers) == 0 {
		drivers = []string{"gochannel"}
	}

	forwarders := make(map[string]Forwarder, len(drivers))
	for _, driver := range drivers {
		fwd, err := newDriverForwarder(cfg, driver, logger)
		if err != nil {
			logger.Error("forwarder init failed, skipping driver", err, watermill.LogFields{
				"driver": driver,
			})
			continue
		}
		forwarders[strings.ToLower(driver)] = fwd
	}
	if len(forwarders) == 0 {
		return nil, errors.New("no forwarder drivers available")
	}
	return &forwarderMux{forwarders: forwarders}, nil
}

func newDriverForwarder(cfg ForwarderConfig, driver string, logger watermill.LoggerAdapter) (Forwarder, error) {
	switch strings.ToLower(driver) {
	case "riverqueue":
		return newRiverForwarder(cfg.RiverQueue)
	case "http":
		mode := strings.ToLower(cfg.HTTP.Mode)
		if mode != "topic_url" && mode != "base_url" {
			return nil, fmt.Errorf("unsupported http mode: %s", cfg.HTTP.Mode)
		}
		if mode == "base_url" && cfg.HTTP.BaseURL == "" {
			return nil, fmt.Errorf("http base_url is required for base_url mode")
		}
		pub, err := wmhttp.NewPublisher(wmhttp.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*http.Request, error) {
				target, err := httpTargetURL(cfg.HTTP, topic)
				if err != nil {
					return nil, err
				}
				return wmhttp.DefaultMarshalMessageFunc(target, msg)
			},
		}, logger)
		if err != nil {
			return nil, err
		}
		return &driverForwarder{topic: cfg.Topic, publisher: pub}, nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka brokers are required")
		}
		pub, err := retryBuild(func() (message.Publisher, error) {
			return wmkafka.NewPublisher(cfg.Kafka.Brokers, wmkafka.DefaultMarshaler{}, nil, logger)
		})
		if err != nil {
			return nil, err
		}
		return &driverForwarder{topic: cfg.Topic, publisher: pub}, nil
	case "nats":
		if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
			return nil, fmt.Errorf("nats cluster_id and client_id are required")
		}
		natsCfg := wmnats.StreamingPublisherConfig{
			ClusterID: cfg.NATS.ClusterID,
			ClientID:  cfg.NATS.ClientID,
			Marshaler: wmnats.GobMarshaler{},
		}
		if cfg.NATS.URL != "" {
			natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
		}
		pub, err := wmnats.NewStreamingPublisher(natsCfg, logger)
		if err != nil {
			return nil, err
		}
		return &driverForwarder{topic: cfg.Topic, publisher: pub}, nil
	case "amqp":
		if cfg.AMQP.URL == "" {
			return nil, fmt.Errorf("amqp url is required")
		}
		amqpCfg, err := amqpConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
		if err != nil {
			return nil, err
		}
		pub, err := wmamqp.NewPublisher(amqpCfg, logger)
		if err != nil {
			return nil, err
		}
		return &driverForwarder{topic: cfg.Topic, publisher: pub}, nil
	case "sql":
		if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
			return nil, fmt.Errorf("sql driver and dsn are required")
		}
		schemaAdapter, err := sqlSchemaAdapter(cfg.SQL.Dialect)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		pub, err := wmsql.NewPublisher(db, wmsql.PublisherConfig{
			SchemaAdapter:        schemaAdapter,
			AutoInitializeSchema: cfg.SQL.InitializeSchema,
		}, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &driverForwarder{topic: cfg.Topic, publisher: pub, closeFn: db.Close}, nil
	default:
		if factory, ok := driverFactories[strings.ToLower(driver)]; ok {
			pub, closeFn, err := factory(cfg, logger)
			if err != nil {
				return nil, err
			}
			return &driverForwarder{topic: cfg.Topic, publisher: pub, closeFn: closeFn}, nil
		}
		return nil, fmt.Errorf("unsupported forwarder driver: %s", driver)
	}
}

func retryBuild(build func() (message.Publisher, error)) (message.Publisher, error) {
	const attempts = 10
	const delay = 2 * time.Second

	var lastErr error
	for i := 0; i < attempts; i++ {
		pub, err := build()
		if err == nil {
			return pub, nil
		}
		lastErr = err
		time.Sleep(delay)
	}
	return nil, lastErr
}

// driverForwarder publishes records through one watermill publisher.
type driverForwarder struct {
	topic     string
	publisher message.Publisher
	closeFn   func() error
}

func (f *driverForwarder) Forward(ctx context.Context, record SecurityRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", record.EventType)
	msg.Metadata.Set("severity", record.Severity.String())
	msg.Metadata.Set("source", record.Source)
	msg.SetContext(ctx)
	return f.publisher.Publish(f.topic, msg)
}

func (f *driverForwarder) Close() error {
	if f.publisher == nil {
		return nil
	}
	err := f.publisher.Close()
	if f.closeFn != nil {
		return errors.Join(err, f.closeFn())
	}
	return err
}

// forwarderMux fans each record out to every built driver.
type forwarderMux struct {
	forwarders map[string]Forwarder
}

func (m *forwarderMux) Forward(ctx context.Context, record SecurityRecord) error {
	var err error
	for driver, fwd := range m.forwarders {
		if forwardErr := fwd.Forward(ctx, record); forwardErr != nil {
			err = errors.Join(err, fmt.Errorf("driver %s: %w", driver, forwardErr))
		}
	}
	return err
}

func (m *forwarderMux) Close() error {
	var err error
	for _, fwd := range m.forwarders {
		err = errors.Join(err, fwd.Close())
	}
	return err
}

func buildGoChannelDriver(cfg ForwarderConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	pub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: cfg.GoChannel.OutputChannelBuffer,
			Persistent:          cfg.GoChannel.Persistent,
		},
		logger,
	)
	return pub, nil, nil
}

func amqpConfigFromMode(url, mode string) (wmamqp.Config, error) {
	switch strings.ToLower(mode) {
	case "", "durable_queue":
		return wmamqp.NewDurableQueueConfig(url), nil
	case "nondurable_queue":
		return wmamqp.NewNonDurableQueueConfig(url), nil
	case "durable_pubsub":
		return wmamqp.NewDurablePubSubConfig(url, nil), nil
	case "nondurable_pubsub":
		return wmamqp.NewNonDurablePubSubConfig(url, nil), nil
	default:
		return wmamqp.Config{}, fmt.Errorf("unsupported amqp mode: %s", mode)
	}
}

func sqlSchemaAdapter(dialect string) (wmsql.SchemaAdapter, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return wmsql.DefaultPostgreSQLSchema{}, nil
	case "mysql":
		return wmsql.DefaultMySQLSchema{}, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
}

func httpTargetURL(cfg HTTPConfig, topic string) (string, error) {
	switch strings.ToLower(cfg.Mode) {
	case "topic_url":
		if topic == "" {
			return "", fmt.Errorf("http topic url is empty")
		}
		return topic, nil
	case "base_url":
		if cfg.BaseURL == "" {
			return "", fmt.Errorf("http base_url is empty")
		}
		if topic == "" {
			return strings.TrimRight(cfg.BaseURL, "/"), nil
		}
		return strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(topic, "/"), nil
	default:
		return "", fmt.Errorf("unsupported http mode: %s", cfg.Mode)
	}
}
