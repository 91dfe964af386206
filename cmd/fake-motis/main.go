// fake-motis responde o envelope do MOTIS com JSON fixo, para rodar o gateway
// localmente sem um MOTIS de verdade.
//
//	LISTEN_ADDR  (padrão :8080)
//	FAKE_DELAY   atraso por requisição, ex.: 2s (testa o timeout do gateway)
//	FAKE_STATUS  status devolvido no POST, ex.: 500
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type envelope struct {
	Destination struct {
		Type   string `json:"type"`
		Target string `json:"target"`
	} `json:"destination"`
	ContentType string          `json:"content_type"`
	Content     json.RawMessage `json:"content"`
}

var responseTypes = map[string]string{
	"IntermodalConnectionRequest": "RoutingResponse",
	"IntermodalRoutingRequest":    "RoutingResponse",
	"StationGuesserRequest":       "StationGuesserResponse",
	"AddressRequest":              "AddressResponse",
	"RailVizTrainsRequest":        "RailVizTrainsResponse",
	"RailVizTripsRequest":         "RailVizTrainsResponse",
	"MotisNoMessage":              "LookupScheduleInfoResponse",
	"RailVizStationRequest":       "RailVizStationResponse",
	"FootRoutingRequest":          "FootRoutingResponse",
	"TripId":                      "Connection",
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	addr := getenvDefault("LISTEN_ADDR", ":8080")
	delay := getenvDurationDefault("FAKE_DELAY", 0)
	status := getenvIntDefault("FAKE_STATUS", http.StatusOK)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		var env envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		logger.Info("request",
			zap.String("target", env.Destination.Target),
			zap.String("content_type", env.ContentType))

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		respType, ok := responseTypes[env.ContentType]
		if !ok {
			respType = "MotisError"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"destination":  map[string]string{"type": "Module", "target": ""},
			"content_type": respType,
			"content":      map[string]interface{}{"echo": env.Content},
		})
	})
	// asset de exemplo para testar proxy_assets
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<h1>fake motis</h1><p>" + r.URL.Path + "</p>"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("fake motis listening",
		zap.String("addr", addr),
		zap.Duration("delay", delay),
		zap.Int("status", status))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
