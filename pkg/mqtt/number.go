package mqtt

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type NumberConfig struct {
	Name string
	Icon string
	Unit string
	Min  float64
	Max  float64
	Step float64
}

// NumberFn exposes a Home Assistant number entity. Commands are passed to
// setFn and the value from getFn is echoed back to the state topic whether or
// not the command was accepted. The returned function republishes the state
// every interval until ctx is done.
func (c *Client) NumberFn(ctx context.Context, cfg NumberConfig, interval time.Duration, setFn func(int) (int, error), getFn func() int) func() error {
	e := c.newHassCommandEntity("number", cfg.Name)
	e.Icon = cfg.Icon
	e.UnitOfMeasurement = cfg.Unit
	e.Min = cfg.Min
	e.Max = cfg.Max
	e.Step = cfg.Step
	e.Mode = "slider"
	id := c.RegisterHassEntity(e)

	publishState := func() {
		c.HassPublishState(id, strconv.Itoa(getFn()))
	}

	handler := func(_ paho.Client, msg paho.Message) {
		payload := strings.TrimSpace(string(msg.Payload()))
		slog.Debug("mqtt number command received", "number", cfg.Name, "command", payload, "topic", e.CommandTopic)
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			slog.Error("invalid number command", "number", cfg.Name, "command", payload, "error", err)
			publishState()
			return
		}
		accepted, err := setFn(int(math.Round(v)))
		if err != nil {
			slog.Error("number command rejected", "number", cfg.Name, "command", payload, "error", err)
		} else {
			slog.Info("number updated from mqtt", "number", cfg.Name, "value", accepted)
		}
		publishState()
	}
	if err := c.Subscribe(e.CommandTopic, handler); err != nil {
		slog.Error("mqtt subscription failed", "number", cfg.Name, "error", err)
	}
	c.OnConnect(publishState)

	return periodic(ctx, interval, func() {
		if !c.IsConnected() {
			slog.Debug("mqtt client not connected", "number", cfg.Name)
			return
		}
		publishState()
	})
}

func periodic(ctx context.Context, interval time.Duration, fn func()) func() error {
	return func() error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				fn()
			}
		}
	}
}
