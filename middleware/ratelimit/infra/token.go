package infra

import (
	"context"
	"sync"
	"time"

	"transit-gateway/middleware/ratelimit/domain"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/time/rate"
)

// TokenStore é a estratégia alternativa ao WindowStore: um token bucket
// (x/time/rate) por chave, na mesma tabela LRU de capacidade limitada.
//
// Não tem janela compartilhada, então não sofre do pico de ~2x na virada do minuto.
// Uma chave despejada pela LRU volta com o bucket cheio.
type TokenStore struct {
	mu           sync.Mutex
	entries      *lru.LRU[domain.Key, *tokenEntry]
	capacity     int
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type tokenEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type TokenOption func(*TokenStore)

func WithIdleTTL(d time.Duration) TokenOption {
	return func(s *TokenStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) TokenOption {
	return func(s *TokenStore) { s.cleanupEvery = d }
}

// NewTokenStore cria a tabela com no máximo `capacity` chaves (precisa ser > 0).
func NewTokenStore(capacity int, rps float64, burst int, opts ...TokenOption) (*TokenStore, error) {
	entries, err := lru.NewLRU[domain.Key, *tokenEntry](capacity, nil)
	if err != nil {
		return nil, err
	}

	s := &TokenStore{
		entries:      entries,
		capacity:     capacity,
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewTokenStorePerMinute traduz a cota "por minuto" para o token bucket.
// O burst é quota-1 para que, numa rajada, a quota-ésima requisição seja a
// primeira bloqueada, igual ao WindowStore.
func NewTokenStorePerMinute(capacity, quota int, opts ...TokenOption) (*TokenStore, error) {
	burst := quota - 1
	if burst < 0 {
		burst = 0
	}
	return NewTokenStore(capacity, float64(quota)/60, burst, opts...)
}

func (s *TokenStore) RPS() float64 {
	return float64(s.rps)
}

func (s *TokenStore) Burst() int {
	return s.burst
}

func (s *TokenStore) Capacity() int {
	return s.capacity
}

// RecordAndCheck implementa domain.Counter.
func (s *TokenStore) RecordAndCheck(key domain.Key) bool {
	return !s.limiter(key).Allow()
}

func (s *TokenStore) limiter(key domain.Key) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries.Get(key); ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	// chave nova pode despejar a menos usada
	s.entries.Add(key, &tokenEntry{lim: lim, lastSeen: now})
	return lim
}

// Cleanup remove chaves ociosas há mais de idleTTL, sem esperar a LRU encher.
func (s *TokenStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.entries.Keys() {
		if ent, ok := s.entries.Peek(k); ok && ent.lastSeen.Before(cutoff) {
			s.entries.Remove(k)
		}
	}
}

func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *TokenStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
