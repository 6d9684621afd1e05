package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/nobet/internal/adapters/lock"
	"github.com/alejandrodnm/nobet/internal/domain"
	"github.com/alejandrodnm/nobet/internal/ports"
)

var (
	_ ports.RunLock = lock.Noop{}
	_ ports.RunLock = (*lock.Redis)(nil)
)

func TestNoop_AlwaysAcquires(t *testing.T) {
	var l lock.Noop
	for i := 0; i < 3; i++ {
		release, err := l.Acquire(context.Background(), "nobet:trade", time.Minute)
		require.NoError(t, err)
		release()
		release()
	}
}

func TestRedis_UnreachableServer(t *testing.T) {
	l := lock.NewRedis("127.0.0.1:1", "")
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	release, err := l.Acquire(ctx, "nobet:trade", time.Minute)
	require.Error(t, err)
	assert.Nil(t, release)
	assert.False(t, errors.Is(err, domain.ErrLockHeld))
}
