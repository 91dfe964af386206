package infra

import (
	"sync"
	"time"

	"transit-gateway/middleware/ratelimit/domain"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultWindow é o intervalo após o qual a tabela inteira é zerada.
const DefaultWindow = time.Minute

// WindowStore conta requisições por chave numa janela fixa compartilhada.
//
// A tabela tem capacidade limitada (LRU): ao passar de `capacity` chaves, a menos
// usada recentemente sai primeiro, independente da janela. A janela é uma só
// para todo mundo: passados 60s desde a última limpeza, a tabela inteira é
// apagada. Um cliente pode fazer até ~2x a cota perto da virada da janela.
type WindowStore struct {
	mu          sync.Mutex
	entries     *lru.LRU[domain.Key, uint32]
	capacity    int
	quota       uint32
	window      time.Duration
	clock       clock.Clock
	lastCleared time.Time
}

type WindowOption func(*WindowStore)

// WithClock troca a fonte de tempo (testes usam clock.NewMock()).
func WithClock(c clock.Clock) WindowOption {
	return func(s *WindowStore) { s.clock = c }
}

func WithWindow(d time.Duration) WindowOption {
	return func(s *WindowStore) { s.window = d }
}

// NewWindowStore cria a tabela com `capacity` entradas e cota `quota` por janela.
// capacity precisa ser > 0.
func NewWindowStore(capacity int, quota int, opts ...WindowOption) (*WindowStore, error) {
	entries, err := lru.NewLRU[domain.Key, uint32](capacity, nil)
	if err != nil {
		return nil, err
	}
	if quota < 0 {
		quota = 0
	}

	s := &WindowStore{
		entries:  entries,
		capacity: capacity,
		quota:    uint32(quota),
		window:   DefaultWindow,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastCleared = s.clock.Now()
	return s, nil
}

func (s *WindowStore) Quota() int {
	return int(s.quota)
}

func (s *WindowStore) Capacity() int {
	return s.capacity
}

func (s *WindowStore) Window() time.Duration {
	return s.window
}

// RecordAndCheck implementa domain.Counter.
func (s *WindowStore) RecordAndCheck(key domain.Key) bool {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastCleared) >= s.window {
		s.entries.Purge()
		s.lastCleared = now
	}

	count, _ := s.entries.Get(key)
	count++
	// Add em chave existente só atualiza e promove; em chave nova pode despejar a LRU.
	s.entries.Add(key, count)

	return count >= s.quota
}

// ResetIn implementa domain.WindowResetter.
func (s *WindowStore) ResetIn() time.Duration {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	left := s.window - now.Sub(s.lastCleared)
	if left < 0 {
		return 0
	}
	return left
}

// Count devolve o contador atual da chave sem promovê-la na LRU.
func (s *WindowStore) Count(key domain.Key) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.entries.Peek(key)
	return int(n), ok
}

func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}
