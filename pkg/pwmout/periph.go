package pwmout

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

const DefaultFrequency = 1 * physic.KiloHertz

// PeriphPin writes PWM through periph.io.
type PeriphPin struct {
	freq physic.Frequency
	pin  gpio.PinOut
}

// NewPeriphPin looks up the named pin and drives it low.
func NewPeriphPin(name string, freq physic.Frequency) (*PeriphPin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to find pwm output pin %s", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to set pwm output pin %s low: %w", name, err)
	}
	if freq == 0 {
		freq = DefaultFrequency
	}
	return &PeriphPin{
		freq: freq,
		pin:  p,
	}, nil
}

func (p *PeriphPin) WriteAnalog(value int) error {
	dutyCycle := gpio.Duty(int64(gpio.DutyMax) * int64(value) / Max)
	if err := p.pin.PWM(dutyCycle, p.freq); err != nil {
		return err
	}
	return nil
}

// Halt drives the pin low, which the pump reads as full speed.
func (p *PeriphPin) Halt() error {
	return p.pin.Out(gpio.Low)
}
