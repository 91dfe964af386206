package ratelimit

import (
	"net/http"
	"time"

	"transit-gateway/middleware/ratelimit/application"
	"transit-gateway/middleware/ratelimit/domain"
	"transit-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	// Max é o número de chamadas simultâneas ao upstream. <= 0 desliga o limite.
	Max          int
	RejectStatus int
	// AcquireTimeout é quanto uma requisição espera na fila. 0 = até o cliente desistir.
	AcquireTimeout time.Duration
	// OnReject recebe a decisão: fila estourada ou cliente que foi embora.
	OnReject func(r *http.Request, dec domain.SlotDecision)
}

// ConcurrencyMiddleware segura a requisição até haver vaga para o upstream.
// Sem vaga responde RejectStatus (503) com corpo vazio.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, dec := svc.Acquire(r.Context())
			if !dec.Acquired {
				if opts.OnReject != nil {
					opts.OnReject(r, dec)
				}
				w.WriteHeader(opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
