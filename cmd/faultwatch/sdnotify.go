package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// errNoNotifySocket means faultwatch is not running under a systemd unit with
// Type=notify.
var errNoNotifySocket = errors.New("NOTIFY_SOCKET not set")

// sdNotify writes one sd_notify state datagram, such as "READY=1", to the
// socket systemd passes in NOTIFY_SOCKET.
func sdNotify(state string) error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return errNoNotifySocket
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: addr, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("sd_notify %s: %w", state, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(state)); err != nil {
		return fmt.Errorf("sd_notify %s: %w", state, err)
	}
	return nil
}

// watchdogInterval is the systemd watchdog timeout from WATCHDOG_USEC, or 0
// when the watchdog is off or the value is malformed.
func watchdogInterval() time.Duration {
	usec, err := strconv.ParseInt(os.Getenv("WATCHDOG_USEC"), 10, 64)
	if err != nil || usec <= 0 {
		return 0
	}
	return time.Duration(usec) * time.Microsecond
}
