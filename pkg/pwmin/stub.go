//go:build !linux

package pwmin

// Open returns ErrUnsupported on non-Linux platforms.
func Open(chip string, offset int) (*EdgeCapture, error) {
	return nil, ErrUnsupported
}

func (c *EdgeCapture) Close() error {
	return nil
}
