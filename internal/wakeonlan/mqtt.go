package wakeonlan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	mqttQoS            = 1
	mqttPublishTimeout = 2 * time.Second
	mqttWakeTimeout    = 5 * time.Second
	mqttQuiesceMillis  = 250
)

// MQTTClient is the subset of mqtt.Client the bridge uses.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// WakeFunc triggers a wake for a device on behalf of the bridge.
type WakeFunc func(ctx context.Context, deviceID string) error

// MQTTBridge mirrors reachability to retained MQTT topics and accepts wake
// commands:
//
//	<prefix>/<device-id>/on    retained "true" / "false"
//	<prefix>/<device-id>/wake  any payload wakes the device
type MQTTBridge struct {
	cfg    MQTTConfig
	client MQTTClient
	wake   WakeFunc
	logger *zap.Logger
}

// NewMQTTClient builds a paho client for cfg.
func NewMQTTClient(cfg MQTTConfig) MQTTClient {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetCleanSession(true)
	return mqtt.NewClient(opts)
}

// NewMQTTBridge creates a bridge over client.
func NewMQTTBridge(cfg MQTTConfig, client MQTTClient, wake WakeFunc, logger *zap.Logger) *MQTTBridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "wolgate"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &MQTTBridge{cfg: cfg, client: client, wake: wake, logger: logger}
}

// Start connects to the broker and subscribes to wake commands.
func (b *MQTTBridge) Start() error {
	if err := b.wait(b.client.Connect(), b.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", b.cfg.Broker, err)
	}
	if err := b.wait(b.client.Subscribe(b.wakeFilter(), mqttQoS, b.handleWake), b.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", b.wakeFilter(), err)
	}
	b.logger.Info("mqtt bridge connected",
		zap.String("broker", b.cfg.Broker),
		zap.String("prefix", b.cfg.TopicPrefix),
	)
	return nil
}

// Stop unsubscribes and disconnects.
func (b *MQTTBridge) Stop() {
	if err := b.wait(b.client.Unsubscribe(b.wakeFilter()), mqttPublishTimeout); err != nil {
		b.logger.Debug("mqtt unsubscribe failed", zap.Error(err))
	}
	b.client.Disconnect(mqttQuiesceMillis)
}

// PublishState publishes a device's reachability as a retained message.
func (b *MQTTBridge) PublishState(deviceID string, on bool) {
	topic := b.cfg.TopicPrefix + "/" + deviceID + "/on"
	if err := b.wait(b.client.Publish(topic, mqttQoS, true, strconv.FormatBool(on)), mqttPublishTimeout); err != nil {
		b.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// ClearState removes the retained state of a removed device.
func (b *MQTTBridge) ClearState(deviceID string) {
	topic := b.cfg.TopicPrefix + "/" + deviceID + "/on"
	if err := b.wait(b.client.Publish(topic, mqttQoS, true, ""), mqttPublishTimeout); err != nil {
		b.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (b *MQTTBridge) wakeFilter() string {
	return b.cfg.TopicPrefix + "/+/wake"
}

// deviceFromTopic extracts the device ID from <prefix>/<id>/wake.
func (b *MQTTBridge) deviceFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, b.cfg.TopicPrefix+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/wake")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (b *MQTTBridge) handleWake(_ mqtt.Client, msg mqtt.Message) {
	id, ok := b.deviceFromTopic(msg.Topic())
	if !ok {
		b.logger.Debug("ignoring mqtt message", zap.String("topic", msg.Topic()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mqttWakeTimeout)
	defer cancel()
	if err := b.wake(ctx, id); err != nil {
		b.logger.Warn("mqtt wake failed", zap.String("device_id", id), zap.Error(err))
	}
}

func (b *MQTTBridge) wait(t mqtt.Token, timeout time.Duration) error {
	if !t.WaitTimeout(timeout) {
		return errors.New("timed out")
	}
	return t.Error()
}
