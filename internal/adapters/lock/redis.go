// Package lock evita que dos procesos ejecuten `trade` a la vez sobre el
// mismo directorio de estado.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/nobet/internal/domain"
)

// unlockScript borra la clave solo si sigue guardando nuestro token.
const unlockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

// Redis implementa ports.RunLock con SET NX + TTL y un unlock condicional.
type Redis struct {
	rdb    *redis.Client
	unlock *redis.Script
}

// NewRedis crea un lock sobre addr. No conecta hasta el primer Acquire.
func NewRedis(addr, password string) *Redis {
	return &Redis{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		unlock: redis.NewScript(unlockScript),
	}
}

// Acquire toma el lock key durante ttl. Devuelve domain.ErrLockHeld si otro
// proceso lo tiene. release es idempotente.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()

	ok, err := r.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock.Acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock.Acquire %s: %w", key, domain.ErrLockHeld)
	}
	slog.Debug("run lock acquired", "key", key, "ttl", ttl)

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Contexto propio: el del run puede estar ya cancelado.
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := r.unlock.Run(rctx, r.rdb, []string{key}, token).Err(); err != nil {
				slog.Warn("run lock release failed", "key", key, "err", err)
				return
			}
			slog.Debug("run lock released", "key", key)
		})
	}
	return release, nil
}

// Close cierra el cliente Redis.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
