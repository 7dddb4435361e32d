// Package ratelimit - token bucket ограничители частоты запросов.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - token bucket
//
// Ведро пополняется со скоростью rate токенов/сек до ёмкости burst,
// каждый запрос забирает один токен.
//
//	limiter := NewRateLimiter(20, 40)
//	err := limiter.Wait(ctx)   // блокирующее ожидание
//	if limiter.Allow() { ... } // неблокирующая проверка
type RateLimiter struct {
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter создаёт limiter; burst < rate поднимается до rate
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < rate {
		burst = rate
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: time.Now(),
	}
}

// refill вызывается под lock'ом
func (rl *RateLimiter) refill(now time.Time) {
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill(time.Now())

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Allow забирает токен, если он есть
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens возвращает текущее количество токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(time.Now())
	return rl.tokens
}

// ============================================================
// KeyedLimiter - отдельное ведро на каждый ключ (например, IP клиента)
// ============================================================

// KeyedLimiter выдаёт RateLimiter на ключ. Ведра, не использованные
// дольше idleTTL, удаляются при очередном обращении.
type KeyedLimiter struct {
	rate     float64
	burst    float64
	idleTTL  time.Duration
	limiters map[string]*keyedEntry
	mu       sync.Mutex
}

type keyedEntry struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// NewKeyedLimiter создаёт KeyedLimiter с общими параметрами ведра
func NewKeyedLimiter(rate, burst float64, idleTTL time.Duration) *KeyedLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		rate:     rate,
		burst:    burst,
		idleTTL:  idleTTL,
		limiters: make(map[string]*keyedEntry),
	}
}

// Allow проверяет токен для ключа
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.get(key).Allow()
}

// Len возвращает количество активных ведер
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

func (kl *KeyedLimiter) get(key string) *RateLimiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := time.Now()
	for k, e := range kl.limiters {
		if k != key && now.Sub(e.lastSeen) > kl.idleTTL {
			delete(kl.limiters, k)
		}
	}

	e, ok := kl.limiters[key]
	if !ok {
		e = &keyedEntry{limiter: NewRateLimiter(kl.rate, kl.burst)}
		kl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}
