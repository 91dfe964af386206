package ratelimit

import (
	"net/http"
	"time"

	"transit-gateway/middleware/ratelimit/application"
	"transit-gateway/middleware/ratelimit/domain"
)

type Options struct {
	Counter domain.Counter
	// KeyFn identifica o cliente. nil = DefaultKeyFunc(DefaultIPHeader, false).
	KeyFn        KeyFunc
	RejectStatus int
	RetryAfter   time.Duration
	// Applies decide se a requisição entra na contagem. nil = todas.
	Applies func(r *http.Request) bool
	// OnReject é chamado antes de responder a rejeição (métricas, log).
	OnReject func(r *http.Request, key domain.Key, dec domain.Decision)
	// AddRateLimitHeaders expõe X-RateLimit-* nas requisições contadas.
	AddRateLimitHeaders bool
}

type quotaInfo interface {
	Quota() int
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(DefaultIPHeader, false)
	}

	svc := application.Service{
		Counter:    opts.Counter,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Applies != nil && !opts.Applies(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", string(key))
				switch info := opts.Counter.(type) {
				case quotaInfo:
					w.Header().Set("X-RateLimit-Limit", formatInt(info.Quota()))
				case rateInfo:
					w.Header().Set("X-RateLimit-RPS", formatFloat(info.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(info.Burst()))
				}
				if wr, ok := opts.Counter.(domain.WindowResetter); ok {
					w.Header().Set("X-RateLimit-Reset", formatSeconds(wr.ResetIn()))
				}
			}

			dec := svc.Decide(key)
			if !dec.Allowed {
				if opts.OnReject != nil {
					opts.OnReject(r, key, dec)
				}
				// corpo vazio: o gateway não explica a rejeição
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				w.WriteHeader(opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
