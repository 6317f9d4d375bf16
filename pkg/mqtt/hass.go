package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	HassSensorGeneric HassSensorType = iota
	HassSensorPWM
	HassSensorPercent
)

type HassSensorType int

type HassEntity struct {
	component         string
	configTopic       string
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	Device            HassDevice `json:"device,omitempty"`
	DeviceClass       string     `json:"device_class,omitempty"`
	StateTopic        string     `json:"state_topic"`
	CommandTopic      string     `json:"command_topic,omitempty"`
	AvailabilityTopic string     `json:"availability_topic,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	Icon              string     `json:"icon,omitempty"`
	Min               float64    `json:"min,omitempty"`
	Max               float64    `json:"max,omitempty"`
	Step              float64    `json:"step,omitempty"`
	Mode              string     `json:"mode,omitempty"`
	Retain            bool       `json:"retain,omitempty"`
}

type HassDevice struct {
	Name         string   `json:"name,omitempty"`
	Identifiers  []string `json:"identifiers,omitempty"`
	Model        string   `json:"model,omitempty"`
	SwVersion    string   `json:"sw_version,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
}

var Version = "dev"

// HomeAssistant announces all entities and announces them again whenever Home
// Assistant comes back online.
func (c *Client) HomeAssistant() error {
	topic := "homeassistant/status"
	return c.Subscribe(topic, func(client paho.Client, msg paho.Message) {
		payload := string(msg.Payload())
		slog.Info("homeassistant status watcher", "status", payload)
		if payload == payloadOnline {
			c.HassAnnounceAll()
		}
	})
}

func (c *Client) HassAnnounceAll() {
	c.mu.Lock()
	entities := make([]HassEntity, 0, len(c.hassEntities))
	for _, e := range c.hassEntities {
		entities = append(entities, e)
	}
	c.mu.Unlock()
	slog.Info("announcing homeassistant entities", "count", len(entities))
	for _, e := range entities {
		c.HassAnnounce(e)
	}
}

func (c *Client) hassDevice() HassDevice {
	return HassDevice{
		Name:         cases.Title(language.English).String(c.deviceName),
		Model:        "PWM pump cap",
		SwVersion:    Version,
		Manufacturer: "pump-cap",
	}
}

func (c *Client) NewHassSensor(name string, sensorType HassSensorType) HassEntity {
	var deviceClass string
	var unit string
	switch sensorType {
	case HassSensorPWM:
		unit = "PWM"
	case HassSensorPercent:
		deviceClass = "power_factor"
		unit = "%"
	}
	return HassEntity{
		component:         "sensor",
		Name:              name,
		Device:            c.hassDevice(),
		StateTopic:        c.topicPrefix + "/sensor/" + slugify(name),
		AvailabilityTopic: c.availabilityTopic,
		DeviceClass:       deviceClass,
		UnitOfMeasurement: unit,
		Icon:              "mdi:gauge",
	}
}

func (c *Client) newHassCommandEntity(component, name string) HassEntity {
	prefix := fmt.Sprintf("%s/%s/%s/", c.topicPrefix, component, slugify(name))
	return HassEntity{
		component:         component,
		Name:              name,
		Device:            c.hassDevice(),
		StateTopic:        prefix + "state",
		CommandTopic:      prefix + "command",
		AvailabilityTopic: c.availabilityTopic,
	}
}

func (c *Client) RegisterHassEntity(e HassEntity) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.component == "" {
		e.component = "sensor"
	}
	if e.UniqueID == "" {
		e.UniqueID = slugify(c.clientID + "_" + e.Name)
	}
	if len(e.Device.Identifiers) == 0 {
		e.Device.Identifiers = []string{slugify(c.clientID)}
	}
	e.configTopic = "homeassistant/" + e.component + "/" + e.UniqueID + "/config"
	c.hassEntities[e.UniqueID] = e
	return e.UniqueID
}

func (c *Client) HassAnnounce(e HassEntity) {
	payload, err := json.Marshal(e)
	if err != nil {
		slog.Error("json marshal error", "error", err, "module", "mqtt", "entity", e.UniqueID)
		return
	}
	c.publish(e.configTopic, string(payload), true)
}

func (c *Client) HassPublishState(uniqueID, state string) error {
	c.mu.Lock()
	e, ok := c.hassEntities[uniqueID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("entity not found: %s", uniqueID)
	}
	c.Publish(e.StateTopic, state)
	return nil
}

func slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}
