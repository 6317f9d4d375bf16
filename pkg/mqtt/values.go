package mqtt

import (
	"log/slog"
	"strconv"

	"github.com/mikesmitty/pump-cap/pkg/control"
)

type valueSensors struct {
	inputPWM  string
	inputPct  string
	outputPWM string
	outputPct string
}

func (c *Client) registerValueSensors() valueSensors {
	return valueSensors{
		inputPWM:  c.RegisterHassEntity(c.NewHassSensor("Pump incoming pwm", HassSensorPWM)),
		inputPct:  c.RegisterHassEntity(c.NewHassSensor("Pump incoming", HassSensorPercent)),
		outputPWM: c.RegisterHassEntity(c.NewHassSensor("Pump outgoing pwm", HassSensorPWM)),
		outputPct: c.RegisterHassEntity(c.NewHassSensor("Pump outgoing", HassSensorPercent)),
	}
}

// PublishValues publishes the input and output duty sensors, skipping all but
// every sample-rate'th call.
func (c *Client) PublishValues(v control.Values) {
	if !c.valuesSample.Ready() {
		return
	}
	slog.Debug("mqtt publishing", "field", "values", "input", v.InputDuty, "output", v.OutputDuty)
	c.HassPublishState(c.values.inputPWM, strconv.Itoa(v.InputDuty))
	c.HassPublishState(c.values.inputPct, strconv.Itoa(v.InputPct))
	c.HassPublishState(c.values.outputPWM, strconv.Itoa(v.OutputDuty))
	c.HassPublishState(c.values.outputPct, strconv.Itoa(v.OutputPct))
}
