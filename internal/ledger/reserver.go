package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Reserver резервирует UTXO между экземплярами сервиса, чтобы две выплаты
// не потратили один и тот же выход.
type Reserver interface {
	Reserve(ctx context.Context, outpoint string) (bool, error)
	Release(ctx context.Context, outpoints ...string) error
}

// Outpoint - ключ резервирования "txid:vout"
func Outpoint(txID string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txID, vout)
}

const reservationPrefix = "utxo:reserved:"

// RedisReserver - SETNX с TTL
type RedisReserver struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
}

// NewRedisReserver создаёт резервирование поверх Redis. owner пишется в значение
// ключа для диагностики.
func NewRedisReserver(client *redis.Client, ttl time.Duration, owner string) *RedisReserver {
	return &RedisReserver{client: client, ttl: ttl, owner: owner}
}

// Reserve возвращает false если выход уже зарезервирован
func (r *RedisReserver) Reserve(ctx context.Context, outpoint string) (bool, error) {
	ok, err := r.client.SetNX(ctx, reservationPrefix+outpoint, r.owner, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", outpoint, err)
	}
	return ok, nil
}

// Release снимает резервирование
func (r *RedisReserver) Release(ctx context.Context, outpoints ...string) error {
	if len(outpoints) == 0 {
		return nil
	}
	keys := make([]string, len(outpoints))
	for i, o := range outpoints {
		keys[i] = reservationPrefix + o
	}
	return r.client.Del(ctx, keys...).Err()
}

// MemoryReserver - резервирование в пределах одного процесса (без Redis)
type MemoryReserver struct {
	mu       sync.Mutex
	ttl      time.Duration
	reserved map[string]time.Time
	now      func() time.Time
}

// NewMemoryReserver создаёт in-memory резервирование
func NewMemoryReserver(ttl time.Duration) *MemoryReserver {
	return &MemoryReserver{
		ttl:      ttl,
		reserved: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Reserve возвращает false если выход зарезервирован и TTL не истёк
func (m *MemoryReserver) Reserve(_ context.Context, outpoint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, ok := m.reserved[outpoint]; ok && now.Before(expires) {
		return false, nil
	}
	m.reserved[outpoint] = now.Add(m.ttl)
	return true, nil
}

// Release снимает резервирование
func (m *MemoryReserver) Release(_ context.Context, outpoints ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range outpoints {
		delete(m.reserved, o)
	}
	return nil
}
