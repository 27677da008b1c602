// Package publish contains the navigation.Publisher implementations: an MQTT client, a websocket
// broadcaster and a rotating newline-delimited JSON file.
package publish

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/macro-rover/navigator/logging"
	"github.com/macro-rover/navigator/services/navigation"
)

const (
	defaultMQTTTopic          = "navigation/pose"
	defaultMQTTClientID       = "navigator"
	defaultMQTTConnectTimeout = 10 * time.Second
	// milliseconds given to in-flight messages on disconnect
	mqttQuiesce = 250
)

// MQTTConfig describes the broker and topic poses are published to. Messages are retained so a
// late subscriber immediately sees the latest pose.
type MQTTConfig struct {
	Broker         string        `json:"broker" yaml:"broker"`
	ClientID       string        `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	Topic          string        `json:"topic,omitempty" yaml:"topic,omitempty"`
	QoS            byte          `json:"qos,omitempty" yaml:"qos,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *MQTTConfig) Validate(path string) error {
	if cfg.Broker == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "broker")
	}
	if cfg.QoS > 2 {
		return goutils.NewConfigValidationError(path, errors.Errorf("qos must be 0, 1 or 2, got %d", cfg.QoS))
	}
	if cfg.ConnectTimeout < 0 {
		return goutils.NewConfigValidationError(path, errors.New("connect_timeout cannot be negative"))
	}
	return nil
}

func (cfg MQTTConfig) withDefaults() MQTTConfig {
	if cfg.Topic == "" {
		cfg.Topic = defaultMQTTTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = defaultMQTTClientID
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultMQTTConnectTimeout
	}
	return cfg
}

// MQTT publishes every payload as JSON to a single topic.
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger logging.Logger
}

// NewMQTT connects to the broker.
func NewMQTT(cfg MQTTConfig, logger logging.Logger) (*MQTT, error) {
	if err := cfg.Validate("publish.mqtt"); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warnw("lost connection to MQTT broker", "broker", cfg.Broker, "error", err)
		})
	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, errors.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "cannot connect to MQTT broker %s", cfg.Broker)
	}
	logger.Infow("connected to MQTT broker", "broker", cfg.Broker, "topic", cfg.Topic)
	return newMQTTWithClient(client, cfg, logger), nil
}

func newMQTTWithClient(client mqtt.Client, cfg MQTTConfig, logger logging.Logger) *MQTT {
	cfg = cfg.withDefaults()
	return &MQTT{client: client, topic: cfg.Topic, qos: cfg.QoS, logger: logger}
}

// Publish sends payload and waits for the broker to accept it or ctx to end.
func (m *MQTT) Publish(ctx context.Context, payload navigation.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, m.qos, true, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "publishing to %s", m.topic)
	}
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(mqttQuiesce)
	return nil
}
