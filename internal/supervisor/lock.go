//go:build linux

package supervisor

import (
	"fmt"
	"net"
)

// Lock is a process-wide exclusivity token backed by a socket in the Linux
// abstract namespace. It has no filesystem presence and the kernel releases
// it when the process exits, however it exits.
type Lock struct {
	conn *net.UnixConn
	name string
}

// AcquireLock claims the abstract socket "@name".
func AcquireLock(name string) (*Lock, error) {
	addr := &net.UnixAddr{Name: "@" + name, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: lock %q: %v", ErrAlreadyRunning, name, err)
	}
	return &Lock{conn: conn, name: name}, nil
}

// Name returns the lock name without the abstract namespace prefix.
func (l *Lock) Name() string {
	return l.name
}

// Release gives up the lock before the process exits.
func (l *Lock) Release() error {
	return l.conn.Close()
}
