package mqtt

import (
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"smartcage-backend/internal/models"
)

// Subscriber forwards messages from the inbound topics onto a bounded channel
type Subscriber struct {
	client *Client

	// Output channel (written by subscriber, read by the processing loop)
	Messages chan models.Message

	topics      []string
	qos         byte
	dropTimeout time.Duration
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	Topics      []string
	QoS         byte
	DropTimeout time.Duration // how long to wait on a full channel before dropping
}

// NewSubscriber creates a new MQTT subscriber writing to messages
func NewSubscriber(client *Client, config SubscriberConfig, messages chan models.Message) *Subscriber {
	if config.DropTimeout <= 0 {
		config.DropTimeout = 1 * time.Second
	}
	return &Subscriber{
		client:      client,
		Messages:    messages,
		topics:      config.Topics,
		qos:         config.QoS,
		dropTimeout: config.DropTimeout,
	}
}

// SubscribeAll subscribes to every configured topic now (if connected) and after every reconnect
func (s *Subscriber) SubscribeAll() error {
	s.client.OnConnect(func(client mqtt.Client) {
		if err := s.subscribe(client); err != nil {
			log.Printf("MQTT Subscriber: Resubscribe failed: %v", err)
		}
	})

	if !s.client.IsConnected() {
		log.Println("MQTT Subscriber: Not connected, subscriptions deferred until connect")
		return nil
	}
	return s.subscribe(s.client.GetNativeClient())
}

func (s *Subscriber) subscribe(client mqtt.Client) error {
	for _, topic := range s.topics {
		if err := s.subscribeToTopic(client, topic); err != nil {
			return &TransportError{Op: "subscribe", Topic: topic, Err: err}
		}
		log.Printf("MQTT Subscriber: Subscribed to topic: %s", topic)
	}
	return nil
}

// subscribeToTopic is a helper function to subscribe to a topic with the forwarding handler
func (s *Subscriber) subscribeToTopic(client mqtt.Client, topic string) error {
	token := client.Subscribe(topic, s.qos, s.handleMessage)
	if !token.WaitTimeout(s.client.config.ConnectTimeout) {
		return ErrDisconnected
	}
	return token.Error()
}

// handleMessage copies the delivery and writes it to the channel
func (s *Subscriber) handleMessage(client mqtt.Client, msg mqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	message := models.Message{
		Topic:      msg.Topic(),
		Payload:    payload,
		ReceivedAt: time.Now(),
	}

	// Write to channel (non-blocking with timeout)
	select {
	case s.Messages <- message:
		// Successfully sent
	case <-time.After(s.dropTimeout):
		log.Printf("Warning: Inbound channel full, dropping message from %s", msg.Topic())
	}
}
