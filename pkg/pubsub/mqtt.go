package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ritzau/msedit/pkg/logging"
)

// BrokerPublisher is the part of an MQTT client the bridge needs
type BrokerPublisher interface {
	Publish(topic string, payload []byte) error
}

// MQTTClient wraps the Paho MQTT client
type MQTTClient struct {
	client paho.Client
	broker string
	mu     sync.Mutex
}

// NewMQTTClient creates a client for brokerURL but does not connect
func NewMQTTClient(brokerURL, clientID string) *MQTTClient {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return &MQTTClient{client: paho.NewClient(opts), broker: brokerURL}
}

// Connect attempts to connect to the broker without blocking indefinitely
func (c *MQTTClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect to %s timed out", c.broker)
	}
	return token.Error()
}

// Publish sends payload with QoS 1
func (c *MQTTClient) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker
func (c *MQTTClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.Disconnect(1000)
}

// BrokerTopic maps a local topic to its MQTT topic under prefix
func BrokerTopic(prefix, topic string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return topic
	}
	return prefix + "/" + topic
}

// Bridge republishes every event of the given local topics to broker as
// JSON until ctx is done. Broker failures are logged and skipped.
func Bridge(ctx context.Context, pub Publisher, broker BrokerPublisher, prefix string, topics ...string) error {
	subs := make([]Subscription, 0, len(topics))
	for _, topic := range topics {
		sub, err := pub.Subscribe(ctx, topic)
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return fmt.Errorf("bridge %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}

	for _, sub := range subs {
		go func(sub Subscription) {
			defer sub.Close()
			target := BrokerTopic(prefix, sub.Topic())
			for event := range sub.Events() {
				payload, err := json.Marshal(event)
				if err != nil {
					logging.Warn("failed to encode bridged event", "topic", sub.Topic(), "error", err)
					continue
				}
				if err := broker.Publish(target, payload); err != nil {
					logging.Warn("failed to publish to broker", "topic", target, "error", err)
				}
			}
		}(sub)
	}
	logging.Info("bridging events to mqtt", "topics", topics, "prefix", prefix)
	return nil
}
