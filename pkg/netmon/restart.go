package netmon

import (
	"log/slog"
	"os"
)

// ExitRestarter exits the process so the service manager restarts it.
func ExitRestarter() error {
	slog.Error("exiting for restart", "module", "netmon")
	os.Exit(1)
	return nil
}
