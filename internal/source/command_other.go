//go:build !unix

package source

import "os/exec"

// killProcessGroup is a no-op without process groups; WaitDelay still bounds
// the run.
func killProcessGroup(cmd *exec.Cmd) {}
