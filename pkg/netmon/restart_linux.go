//go:build linux

package netmon

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// RebootRestarter flushes filesystems and reboots the device.
func RebootRestarter() error {
	slog.Error("rebooting device", "module", "netmon")
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}
