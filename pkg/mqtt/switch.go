package mqtt

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

func (c *Client) SwitchFn(ctx context.Context, name string, interval time.Duration, onFn func(), offFn func(), stateFn func() bool) func() error {
	e := c.newHassCommandEntity("switch", name)
	e.Icon = "mdi:electric-switch"
	id := c.RegisterHassEntity(e)

	publishState := func() {
		state := "OFF"
		if stateFn() {
			state = "ON"
		}
		c.HassPublishState(id, state)
	}

	slog.Debug("subscribing to mqtt switch", "switch", name, "topic", e.CommandTopic)
	if err := c.Subscribe(e.CommandTopic, func(client paho.Client, msg paho.Message) {
		slog.Debug("mqtt switch command received", "switch", name, "command", msg.Payload(), "topic", e.CommandTopic)
		if bytes.Equal(msg.Payload(), []byte("ON")) {
			onFn()
		} else {
			offFn()
		}
		publishState()
	}); err != nil {
		slog.Error("mqtt subscription failed", "switch", name, "error", err)
	}
	c.OnConnect(publishState)

	return periodic(ctx, interval, func() {
		if !c.IsConnected() {
			slog.Error("mqtt client not connected", "switch", name)
			return
		}
		publishState()
	})
}
