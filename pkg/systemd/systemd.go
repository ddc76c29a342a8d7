// Package systemd reports service state to systemd through sd_notify.
//
// All calls are no-ops when the process was not started by systemd with
// NOTIFY_SOCKET set (Type=notify units).
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify state updates.
type Notifier struct {
	enabled bool
	send    func(state string) (bool, error)
}

// New returns a Notifier. A disabled Notifier never sends anything.
func New(enabled bool) *Notifier {
	return &Notifier{
		enabled: enabled,
		send: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Ready signals that startup finished (READY=1).
func (n *Notifier) Ready() (bool, error) { return n.notify(daemon.SdNotifyReady) }

// Watchdog pets the systemd watchdog (WATCHDOG=1).
func (n *Notifier) Watchdog() (bool, error) { return n.notify(daemon.SdNotifyWatchdog) }

// Stopping signals a graceful shutdown (STOPPING=1).
func (n *Notifier) Stopping() (bool, error) { return n.notify(daemon.SdNotifyStopping) }

// Status sets the free-form unit status line shown by systemctl status.
func (n *Notifier) Status(s string) (bool, error) { return n.notify("STATUS=" + s) }

func (n *Notifier) notify(state string) (bool, error) {
	if n == nil || !n.enabled || n.send == nil {
		return false, nil
	}
	return n.send(state)
}

// WatchdogInterval returns the configured WatchdogSec, or 0 when the
// watchdog is off.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}
