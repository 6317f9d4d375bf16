package netmon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/godbus/dbus/v5"
)

// StaticLink is a link that is always up, for wired hosts where the link is
// not ours to manage.
type StaticLink struct{}

func (StaticLink) Connected(context.Context) bool { return true }
func (StaticLink) Connect(context.Context) bool   { return true }
func (StaticLink) Disconnect(context.Context)     {}

const (
	nmDest      = "org.freedesktop.NetworkManager"
	nmPath      = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmState     = nmDest + ".State"
	nmEnable    = nmDest + ".Enable"
	nmConnected = 60 // NM_STATE_CONNECTED_SITE

	nmPollInterval = 500 * time.Millisecond
)

// NMLink manages the link through NetworkManager on the system bus.
type NMLink struct {
	obj            dbus.BusObject
	connectTimeout time.Duration
}

func NewNMLink(connectTimeout time.Duration) (*NMLink, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	return newNMLink(conn.Object(nmDest, nmPath), connectTimeout), nil
}

func newNMLink(obj dbus.BusObject, connectTimeout time.Duration) *NMLink {
	return &NMLink{
		obj:            obj,
		connectTimeout: connectTimeout,
	}
}

func (l *NMLink) state() (uint32, error) {
	v, err := l.obj.GetProperty(nmState)
	if err != nil {
		return 0, err
	}
	s, ok := v.Value().(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected networkmanager state type %T", v.Value())
	}
	return s, nil
}

func (l *NMLink) Connected(ctx context.Context) bool {
	s, err := l.state()
	if err != nil {
		slog.Error("failed to read networkmanager state", "error", err, "module", "netmon")
		return false
	}
	return s >= nmConnected
}

// Connect enables networking and waits for NetworkManager to report a
// connection.
func (l *NMLink) Connect(ctx context.Context) bool {
	if call := l.obj.CallWithContext(ctx, nmEnable, 0, true); call.Err != nil {
		slog.Debug("networkmanager enable", "error", call.Err, "module", "netmon")
	}
	ctx, cancel := context.WithTimeout(ctx, l.connectTimeout)
	defer cancel()
	for {
		if l.Connected(ctx) {
			return true
		}
		if !sleep(ctx, nmPollInterval) {
			return false
		}
	}
}

func (l *NMLink) Disconnect(ctx context.Context) {
	if call := l.obj.CallWithContext(ctx, nmEnable, 0, false); call.Err != nil {
		slog.Debug("networkmanager disable", "error", call.Err, "module", "netmon")
	}
}

// TCPProber checks that a TCP listener accepts connections.
type TCPProber struct {
	Timeout time.Duration
}

func (p TCPProber) Probe(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
