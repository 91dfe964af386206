package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"transit-gateway/metrics"
	"transit-gateway/middleware/ratelimit"
	"transit-gateway/middleware/ratelimit/domain"
	"transit-gateway/upstream"

	"go.uber.org/zap"
)

// DefaultMaxBodyBytes limita o corpo aceito em POST /.
const DefaultMaxBodyBytes = 1 << 20

// Forwarder é o lado do upstream que o pipeline usa.
type Forwarder interface {
	Forward(ctx context.Context, payload []byte) (*upstream.Response, error)
}

type Options struct {
	Gate *Gate
	// Counter é o rate limit das buscas de rota. nil desliga o limite.
	Counter domain.Counter
	// RateLimitHeaders liga os cabeçalhos X-RateLimit-* nas buscas.
	RateLimitHeaders bool
	KeyFn            ratelimit.KeyFunc
	Upstream         Forwarder
	Stats            domain.StatsStore
	Metrics          *metrics.Metrics
	Logger           *zap.Logger

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration
	MaxBodyBytes       int64
}

// Pipeline é o handler de POST /: decode -> gate -> rate limit (só buscas) -> forward.
//
// Toda rejeição local responde com corpo vazio.
type Pipeline struct {
	opts    Options
	log     *zap.Logger
	handler http.Handler
}

func NewPipeline(opts Options) *Pipeline {
	if opts.Gate == nil {
		opts.Gate = NewGate(nil)
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ratelimit.DefaultKeyFunc(ratelimit.DefaultIPHeader, false)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	p := &Pipeline{opts: opts, log: opts.Logger.Named("pipeline")}

	h := http.Handler(http.HandlerFunc(p.forward))
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            opts.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: opts.ConcurrencyTimeout,
		OnReject:       p.slotRejected,
	})(h)
	if opts.Counter != nil {
		h = ratelimit.Middleware(ratelimit.Options{
			Counter:             opts.Counter,
			KeyFn:               opts.KeyFn,
			RejectStatus:        http.StatusTooManyRequests,
			AddRateLimitHeaders: opts.RateLimitHeaders,
			Applies: func(r *http.Request) bool {
				req := RequestFrom(r.Context())
				return req != nil && req.IsSearch()
			},
			OnReject: func(r *http.Request, key domain.Key, dec domain.Decision) {
				p.log.Debug("rate limited",
					zap.String("client", string(key)),
					zap.Duration("retry_after", dec.RetryAfter),
					zap.String("request_id", RequestIDFrom(r.Context())))
				p.finish(r, domain.OutcomeRateLimited, http.StatusTooManyRequests)
			},
		})(h)
	}
	h = p.gate(h)
	h = p.decode(h)

	p.handler = h
	return p
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

func (p *Pipeline) decode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			mt, _, err := mime.ParseMediaType(ct)
			if err != nil || mt != "application/json" {
				p.reject(w, r, domain.OutcomeInvalid, http.StatusUnsupportedMediaType)
				return
			}
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, p.opts.MaxBodyBytes))
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			p.reject(w, r, domain.OutcomeInvalid, status)
			return
		}

		req, err := DecodeRequest(body)
		if err != nil {
			p.log.Debug("rejecting undecodable request",
				zap.Error(err),
				zap.String("request_id", RequestIDFrom(r.Context())))
			p.reject(w, r, domain.OutcomeInvalid, http.StatusUnprocessableEntity)
			return
		}

		next.ServeHTTP(w, r.WithContext(withRequest(r.Context(), req)))
	})
}

func (p *Pipeline) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := RequestFrom(r.Context())
		if !p.opts.Gate.Allowed(req.Destination.Target) {
			p.reject(w, r, domain.OutcomeDenied, http.StatusUnprocessableEntity)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Pipeline) forward(w http.ResponseWriter, r *http.Request) {
	req := RequestFrom(r.Context())
	capability := req.Destination.Target.String()

	payload, err := req.Encode()
	if err != nil {
		p.log.Error("encode request envelope", zap.Error(err))
		p.reject(w, r, domain.OutcomeFailed, http.StatusInternalServerError)
		return
	}
	p.trace("motis request", payload, r)

	done := p.opts.Metrics.TrackInFlight()
	start := time.Now()
	resp, err := p.opts.Upstream.Forward(r.Context(), payload)
	elapsed := time.Since(start)
	done()

	if err != nil {
		status := upstream.StatusFor(err)
		p.opts.Metrics.ObserveUpstream(capability, 0, elapsed)

		fields := []zap.Field{
			zap.String("capability", capability),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		}
		if upstream.IsClientGone(err) {
			p.log.Debug("client went away during upstream call", fields...)
		} else {
			p.log.Warn("upstream call failed", fields...)
		}

		p.reject(w, r, outcomeFor(err), status)
		return
	}

	p.opts.Metrics.ObserveUpstream(capability, resp.Status, elapsed)
	p.trace("motis response", resp.Body, r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
	p.finish(r, domain.OutcomeForwarded, resp.Status)
}

// slotRejected trata a falta de vaga para o upstream. Cliente que desistiu na
// fila não conta como sobrecarga.
func (p *Pipeline) slotRejected(r *http.Request, dec domain.SlotDecision) {
	req := RequestFrom(r.Context())
	fields := []zap.Field{
		zap.String("capability", req.Destination.Target.String()),
		zap.Duration("waited", dec.Waited),
		zap.Int("in_use", dec.InUse),
		zap.Int("capacity", dec.Capacity),
		zap.String("request_id", RequestIDFrom(r.Context())),
	}
	if dec.ClientGone {
		p.log.Debug("client went away waiting for an upstream slot", fields...)
		p.finish(r, domain.OutcomeAbandoned, http.StatusServiceUnavailable)
		return
	}
	p.log.Warn("no upstream slot available", fields...)
	p.finish(r, domain.OutcomeOverloaded, http.StatusServiceUnavailable)
}

func outcomeFor(err error) domain.Outcome {
	switch {
	case errors.Is(err, upstream.ErrUpstreamTimeout):
		return domain.OutcomeTimeout
	case errors.Is(err, upstream.ErrUpstreamUnreachable):
		return domain.OutcomeUnreachable
	case errors.Is(err, upstream.ErrUpstreamMalformed):
		return domain.OutcomeMalformed
	default:
		return domain.OutcomeFailed
	}
}

// reject responde só com o status: o gateway não devolve detalhes do erro.
func (p *Pipeline) reject(w http.ResponseWriter, r *http.Request, outcome domain.Outcome, status int) {
	w.WriteHeader(status)
	p.finish(r, outcome, status)
}

func (p *Pipeline) finish(r *http.Request, outcome domain.Outcome, status int) {
	capability := ""
	if req := RequestFrom(r.Context()); req != nil {
		capability = req.Destination.Target.String()
	}

	p.opts.Metrics.ObserveRequest(capability, string(outcome))

	if p.opts.Stats == nil {
		return
	}
	ev := domain.StatsEvent{
		Key:        p.opts.KeyFn(r),
		Capability: capability,
		Outcome:    outcome,
		Status:     status,
		At:         time.Now(),
	}
	// best-effort, e não pode morrer junto com a conexão do cliente
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), time.Second)
	defer cancel()
	if err := p.opts.Stats.Record(ctx, ev); err != nil {
		p.log.Warn("record stats", zap.Error(err))
	}
}

// trace despeja o JSON indentado em nível debug.
func (p *Pipeline) trace(msg string, body []byte, r *http.Request) {
	if ce := p.log.Check(zap.DebugLevel, msg); ce != nil {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err != nil {
			buf.Reset()
			buf.Write(body)
		}
		ce.Write(zap.String("body", buf.String()), zap.String("request_id", RequestIDFrom(r.Context())))
	}
}
