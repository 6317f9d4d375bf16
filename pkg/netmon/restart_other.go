//go:build !linux

package netmon

func RebootRestarter() error {
	return ErrUnsupported
}
