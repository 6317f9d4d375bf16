package mqtt

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

type Options struct {
	Broker         *url.URL
	Username       string
	Password       string
	DeviceName     string
	SampleRate     int
	ConnectTimeout time.Duration
}

type Client struct {
	client            paho.Client
	clientID          string
	topicPrefix       string
	availabilityTopic string
	deviceName        string
	qos               byte
	retained          bool
	connectTimeout    time.Duration
	hassEntities      map[string]HassEntity
	handlers          map[string]paho.MessageHandler
	onConnect         []func()
	values            valueSensors
	valuesSample      *Sample
	mu                sync.Mutex
}

func NewClient(opts Options) *Client {
	hostname, _ := os.Hostname()
	hostname = strings.Split(hostname, ".")[0]
	clientID := hostname
	if clientID == "" {
		now := time.Now().UnixNano()
		sum := md5.Sum([]byte(strconv.FormatInt(now, 10)))
		clientID = fmt.Sprintf("%x", sum[:6])
	}

	c := newClient(clientID, opts)

	po := paho.NewClientOptions().
		AddBroker(opts.Broker.String()).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.ConnectTimeout).
		SetWill(c.availabilityTopic, payloadOffline, c.qos, true).
		SetOnConnectHandler(c.handleConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			slog.Warn("mqtt connection lost", "error", err)
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	slog.Info("mqtt client configured", "url", opts.Broker.Redacted(), "clientid", clientID)
	c.client = paho.NewClient(po)
	return c
}

func newClient(clientID string, opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 1
	}
	if opts.DeviceName == "" {
		opts.DeviceName = clientID
	}
	topicPrefix := "pump-cap/" + clientID
	c := &Client{
		clientID:          clientID,
		topicPrefix:       topicPrefix,
		availabilityTopic: topicPrefix + "/availability",
		deviceName:        opts.DeviceName,
		qos:               1,
		connectTimeout:    opts.ConnectTimeout,
		hassEntities:      make(map[string]HassEntity),
		handlers:          make(map[string]paho.MessageHandler),
		valuesSample:      NewSample(opts.SampleRate),
	}
	c.values = c.registerValueSensors()
	return c
}

// Begin connects to the broker unless a connection is open or paho is
// already reconnecting.
func (c *Client) Begin(ctx context.Context) error {
	if c.client.IsConnectionOpen() {
		return nil
	}
	if c.client.IsConnected() {
		slog.Debug("mqtt reconnect in progress")
		return nil
	}

	token := c.client.Connect()
	t := time.NewTimer(c.connectTimeout)
	defer t.Stop()
	select {
	case <-token.Done():
	case <-t.C:
		return errors.New("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		slog.Error("mqtt connection failed", "error", err)
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	c.publish(c.availabilityTopic, payloadOffline, true)
	c.client.Disconnect(1000)
}

// Subscribe registers handler for topic. Subscriptions are made again on every
// connect.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()
	if !c.client.IsConnectionOpen() {
		return nil
	}
	return c.subscribe(topic, handler)
}

func (c *Client) subscribe(topic string, handler paho.MessageHandler) error {
	if token := c.client.Subscribe(topic, c.qos, handler); token.Wait() && token.Error() != nil {
		slog.Error("mqtt subscription failed", "topic", topic, "error", token.Error())
		return token.Error()
	}
	return nil
}

// OnConnect adds fn to the functions run after every connect.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

func (c *Client) handleConnect(_ paho.Client) {
	slog.Info("mqtt connected", "clientid", c.clientID)
	c.publish(c.availabilityTopic, payloadOnline, true)

	c.mu.Lock()
	handlers := make(map[string]paho.MessageHandler, len(c.handlers))
	for topic, h := range c.handlers {
		handlers[topic] = h
	}
	onConnect := append([]func(){}, c.onConnect...)
	c.mu.Unlock()

	for topic, h := range handlers {
		c.subscribe(topic, h)
	}
	c.HassAnnounceAll()
	for _, fn := range onConnect {
		fn()
	}
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *Client) Publish(topic string, msg string) {
	c.publish(topic, msg, c.retained)
}

func (c *Client) publish(topic string, msg string, retained bool) {
	t := c.client.Publish(topic, c.qos, retained, msg)
	go func() {
		_ = t.WaitTimeout(5 * time.Second)
		if t.Error() != nil {
			slog.Error("mqtt message publish failed", "topic", topic, "error", t.Error())
		}
	}()
}
