package supervisor

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"sync"
	"syscall"

	"github.com/sweeney/dreadpi/internal/fault"
)

// Default unprivileged account.
const (
	DefaultUser  = "nobody"
	DefaultGroup = "nogroup"
)

// Identity is the OS surface the privilege drop needs.
type Identity interface {
	Lookup(userName, groupName string) (uid, gid int, err error)
	Setgroups(gids []int) error
	Setgid(gid int) error
	Setuid(uid int) error
}

// Unprivileged is proof that the process identity has been reduced. Every
// energy source requires one before it touches the network or spawns a
// process. Only Dropper.Drop produces a valid one.
type Unprivileged struct {
	uid, gid int
	valid    bool
}

// UID returns the user id the process now runs as.
func (u *Unprivileged) UID() int { return u.uid }

// GID returns the group id the process now runs as.
func (u *Unprivileged) GID() int { return u.gid }

// Check returns an error unless u came from a successful Drop.
func (u *Unprivileged) Check() error {
	if u == nil || !u.valid {
		return errors.New("privileges have not been dropped")
	}
	return nil
}

// Dropper reduces the process identity exactly once.
type Dropper struct {
	userName  string
	groupName string
	id        Identity

	mu      sync.Mutex
	dropped bool
}

// NewDropper returns a Dropper targeting userName/groupName using the real
// process identity syscalls.
func NewDropper(userName, groupName string) *Dropper {
	return NewDropperWithIdentity(userName, groupName, osIdentity{})
}

// NewDropperWithIdentity is NewDropper with a caller-supplied Identity.
func NewDropperWithIdentity(userName, groupName string, id Identity) *Dropper {
	if userName == "" {
		userName = DefaultUser
	}
	if groupName == "" {
		groupName = DefaultGroup
	}
	return &Dropper{userName: userName, groupName: groupName, id: id}
}

// Drop clears supplementary groups, then sets gid, then uid. A second call
// fails: the token is consumed by the first.
func (d *Dropper) Drop() (*Unprivileged, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dropped {
		return nil, errors.New("privileges already dropped")
	}

	uid, gid, err := d.id.Lookup(d.userName, d.groupName)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s:%s: %v", fault.ErrConfiguration, d.userName, d.groupName, err)
	}

	// Order matters: after setuid we could no longer change groups.
	if err := d.id.Setgroups([]int{}); err != nil {
		return nil, fmt.Errorf("drop privileges: setgroups: %w", err)
	}
	if err := d.id.Setgid(gid); err != nil {
		return nil, fmt.Errorf("drop privileges: setgid %d: %w", gid, err)
	}
	if err := d.id.Setuid(uid); err != nil {
		return nil, fmt.Errorf("drop privileges: setuid %d: %w", uid, err)
	}

	d.dropped = true
	return &Unprivileged{uid: uid, gid: gid, valid: true}, nil
}

type osIdentity struct{}

func (osIdentity) Lookup(userName, groupName string) (int, int, error) {
	u, err := user.Lookup(userName)
	if err != nil {
		return 0, 0, err
	}
	g, err := user.LookupGroup(groupName)
	if err != nil {
		return 0, 0, err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("gid %q: %w", g.Gid, err)
	}
	return uid, gid, nil
}

// The syscall package applies these to every OS thread of the process.
func (osIdentity) Setgroups(gids []int) error { return syscall.Setgroups(gids) }
func (osIdentity) Setgid(gid int) error       { return syscall.Setgid(gid) }
func (osIdentity) Setuid(uid int) error       { return syscall.Setuid(uid) }
