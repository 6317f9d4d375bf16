package pwmout

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/physic"
)

var rpioOnce sync.Once
var rpioErr error

// RPIOPin writes PWM through the BCM283x hardware PWM block using go-rpio.
// Only the PWM capable pins (12, 13, 18, 19) can be used.
type RPIOPin struct {
	pin rpio.Pin
}

func NewRPIOPin(bcm int, freq physic.Frequency) (*RPIOPin, error) {
	rpioOnce.Do(func() {
		rpioErr = rpio.Open()
	})
	if rpioErr != nil {
		return nil, fmt.Errorf("open rpio: %w", rpioErr)
	}
	switch bcm {
	case 12, 13, 18, 19:
	default:
		return nil, fmt.Errorf("pin %d has no hardware pwm", bcm)
	}
	if freq <= 0 {
		freq = DefaultFrequency
	}
	hz := int(freq / physic.Hertz)

	p := rpio.Pin(bcm)
	p.Mode(rpio.Pwm)
	// The PWM clock runs at freq * cycle length.
	p.Freq(hz * Max)
	p.DutyCycle(0, Max)
	return &RPIOPin{pin: p}, nil
}

func (p *RPIOPin) WriteAnalog(value int) error {
	p.pin.DutyCycle(uint32(value), Max)
	return nil
}

func (p *RPIOPin) Halt() error {
	p.pin.DutyCycle(0, Max)
	return nil
}
