package gateway

import (
	"context"
	"net/http"
	"strings"

	"transit-gateway/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssetFetcher busca qualquer recurso do upstream por GET, bufferizado.
type AssetFetcher interface {
	FetchAsset(ctx context.Context, uri string) (*upstream.Asset, error)
}

type RouterOptions struct {
	Pipeline http.Handler
	// Assets habilita GET /* repassado ao upstream. nil = desligado.
	Assets AssetFetcher
	Logger *zap.Logger
}

// NewRouter monta as rotas HTTP do gateway.
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/", opts.Pipeline.ServeHTTP)
	r.Options("/*", preflight)

	if opts.Assets != nil {
		r.Get("/*", assetProxy(opts.Assets, logger.Named("assets")))
	}
	return r
}

// RequestID propaga o X-Request-ID do cliente ou gera um novo.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// CORS libera qualquer origem em todas as respostas.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Expose-Headers", "Retry-After, X-Request-ID, X-RateLimit-Limit, X-RateLimit-Reset, X-RateLimit-RPS, X-RateLimit-Burst")
		next.ServeHTTP(w, r)
	})
}

func preflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		h.Set("Access-Control-Allow-Headers", reqHeaders)
	} else {
		h.Set("Access-Control-Allow-Headers", "Content-Type")
	}
	h.Set("Access-Control-Max-Age", "86400")
	h.Add("Vary", "Access-Control-Request-Headers")
	w.WriteHeader(http.StatusNoContent)
}

// assetProxy é só para desenvolvimento: lê a resposta inteira em memória antes
// de devolver. Em produção isso fica a cargo de um servidor web de verdade.
func assetProxy(assets AssetFetcher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.RequestURI()
		log.Debug("proxying to upstream", zap.String("uri", uri))

		asset, err := assets.FetchAsset(r.Context(), uri)
		if err != nil {
			status := upstream.StatusFor(err)
			if !upstream.IsClientGone(err) {
				log.Warn("asset fetch failed", zap.String("uri", uri), zap.Int("status", status), zap.Error(err))
			}
			w.WriteHeader(status)
			return
		}

		if asset.ContentType != "" {
			w.Header().Set("Content-Type", asset.ContentType)
		}
		w.WriteHeader(asset.Status)
		_, _ = w.Write(asset.Body)
	}
}
