package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrDisconnected is returned when an operation needs a live broker connection
var ErrDisconnected = errors.New("mqtt client disconnected")

// TransportError wraps a failed broker operation
type TransportError struct {
	Op    string
	Topic string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("mqtt %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("mqtt %s %s: %v", e.Op, e.Topic, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Connection states
const (
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// Client manages the MQTT connection (low-level connection management only)
// For subscribing and publishing, use Subscriber and Publisher respectively
type Client struct {
	client mqtt.Client
	config ClientConfig

	mu        sync.Mutex
	onConnect []func(mqtt.Client)
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// NewClient creates a client; call Connect to reach the broker
func NewClient(config ClientConfig) *Client {
	if config.ClientID == "" {
		config.ClientID = fmt.Sprintf("smartcage-backend-%d", time.Now().UnixNano())
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5 * time.Second
	}

	c := &Client{config: config}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(messagePubHandler)
	opts.SetOnConnectHandler(c.handleConnect)
	opts.SetConnectionLostHandler(connectLostHandler)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetConnectTimeout(config.ConnectTimeout)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect waits up to the connect timeout for the broker.
// On timeout the client stays disconnected and keeps retrying in the background.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		log.Printf("MQTT Client: Broker %s unreachable after %s, retrying in background", c.config.Broker, c.config.ConnectTimeout)
		return &TransportError{Op: "connect", Err: ErrDisconnected}
	}
	if err := token.Error(); err != nil {
		return &TransportError{Op: "connect", Err: err}
	}

	log.Println("MQTT Client: Connected to broker:", c.config.Broker)
	return nil
}

// OnConnect registers fn to run on every (re)connection
func (c *Client) OnConnect(fn func(mqtt.Client)) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

func (c *Client) handleConnect(client mqtt.Client) {
	log.Println("MQTT: Connection established")

	c.mu.Lock()
	handlers := append([]func(mqtt.Client){}, c.onConnect...)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(client)
	}
}

// GetNativeClient returns the underlying paho MQTT client
// This is used by Subscriber and Publisher
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// State returns "connected" or "disconnected"
func (c *Client) State() string {
	if c.IsConnected() {
		return StateConnected
	}
	return StateDisconnected
}

// Close closes the MQTT client connection
func (c *Client) Close() {
	c.client.Disconnect(250)
	log.Println("MQTT Client: Disconnected")
}

// Connection event handlers
var messagePubHandler mqtt.MessageHandler = func(client mqtt.Client, msg mqtt.Message) {
	log.Printf("MQTT: Received message from unexpected topic: %s", msg.Topic())
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Printf("MQTT: Connection lost: %v", err)
}
