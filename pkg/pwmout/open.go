package pwmout

import (
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/physic"
)

const (
	DriverPeriph = "periph"
	DriverRPIO   = "rpio"
)

// Output is a hardware PWM backend.
type Output interface {
	AnalogWriter
	Halt() error
}

// Open returns the named backend on pin. rpio takes a BCM pin number, periph
// takes any name gpioreg knows.
func Open(driver, pin string, freq physic.Frequency) (Output, error) {
	switch driver {
	case DriverPeriph, "":
		return NewPeriphPin(pin, freq)
	case DriverRPIO:
		bcm, err := strconv.Atoi(pin)
		if err != nil {
			return nil, fmt.Errorf("rpio pin %q is not a bcm number: %w", pin, err)
		}
		return NewRPIOPin(bcm, freq)
	default:
		return nil, fmt.Errorf("unknown pwm output driver %q", driver)
	}
}
