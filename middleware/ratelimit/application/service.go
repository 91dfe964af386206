package application

import (
	"time"

	"transit-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Counter    domain.Counter
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Counter == nil {
		return domain.Decision{Allowed: true}
	}
	if !s.Counter.RecordAndCheck(key) {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if wr, ok := s.Counter.(domain.WindowResetter); ok {
		// a janela é global: só faz sentido voltar depois da próxima limpeza
		retry = wr.ResetIn()
	}
	if retry <= 0 {
		retry = 1 * time.Second
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}
