package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Publisher sends prediction payloads back to the sensor nodes
type Publisher struct {
	client *Client

	qos     byte
	retain  bool
	timeout time.Duration
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	QoS     byte
	Retain  bool
	Timeout time.Duration
}

// NewPublisher creates a new MQTT publisher
func NewPublisher(client *Client, config PublisherConfig) *Publisher {
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	return &Publisher{
		client:  client,
		qos:     config.QoS,
		retain:  config.Retain,
		timeout: config.Timeout,
	}
}

// PublishJSON marshals v and publishes it, waiting at most the publish timeout
func (p *Publisher) PublishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return p.Publish(topic, payload)
}

// Publish sends a raw payload
func (p *Publisher) Publish(topic string, payload []byte) error {
	if !p.client.IsConnected() {
		return &TransportError{Op: "publish", Topic: topic, Err: ErrDisconnected}
	}

	token := p.client.GetNativeClient().Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return &TransportError{Op: "publish", Topic: topic, Err: fmt.Errorf("timed out after %s", p.timeout)}
	}
	if err := token.Error(); err != nil {
		return &TransportError{Op: "publish", Topic: topic, Err: err}
	}

	log.Printf("MQTT Publisher: Published %d bytes to topic: %s", len(payload), topic)
	return nil
}
