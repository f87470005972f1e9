//go:build linux

package supervisor

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLockName(t *testing.T) string {
	return fmt.Sprintf("dreadpi-test-%s-%d", t.Name(), os.Getpid())
}

func TestAcquireLockExclusive(t *testing.T) {
	name := testLockName(t)

	first, err := AcquireLock(name)
	require.NoError(t, err)
	defer first.Release()
	assert.Equal(t, name, first.Name())

	second, err := AcquireLock(name)
	assert.Nil(t, second)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
}

func TestAcquireLockAfterRelease(t *testing.T) {
	name := testLockName(t)

	first, err := AcquireLock(name)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := AcquireLock(name)
	require.NoError(t, err)
	assert.NoError(t, second.Release())
}

func TestAcquireLockLeavesNoFile(t *testing.T) {
	name := testLockName(t)

	l, err := AcquireLock(name)
	require.NoError(t, err)
	defer l.Release()

	_, err = os.Stat(name)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat("@" + name)
	assert.True(t, os.IsNotExist(err))
}
