//go:build !linux

package supervisor

import "errors"

// Lock is not available on non-Linux platforms.
type Lock struct{}

// AcquireLock returns an error on non-Linux platforms.
func AcquireLock(name string) (*Lock, error) {
	return nil, errors.New("supervisor: abstract socket lock requires Linux")
}

// Name is not implemented on non-Linux platforms.
func (l *Lock) Name() string {
	return ""
}

// Release is not implemented on non-Linux platforms.
func (l *Lock) Release() error {
	return nil
}
