package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	// BaseURL é o endereço do MOTIS (ex.: http://localhost:8080).
	BaseURL string
	// ConnectionsPerHost limita as conexões ociosas mantidas por host.
	ConnectionsPerHost int
	// Timeout total da chamada (conexão + envio + leitura do corpo).
	Timeout time.Duration
	Logger  *zap.Logger
	// Transport substitui o transporte padrão (testes).
	Transport http.RoundTripper
}

// Client é o ForwardingClient: uma chamada por requisição, conexões reaproveitadas.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// Response é o que o upstream respondeu, com o corpo já validado como JSON.
type Response struct {
	Status int
	Body   json.RawMessage
}

// Asset é uma resposta qualquer do upstream, bufferizada inteira em memória.
type Asset struct {
	Status      int
	ContentType string
	Body        []byte
}

func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream address %q: %w", base, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream address %q: want http(s)://host[:port]", base)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rt := opts.Transport
	if rt == nil {
		rt = newTransport(opts.ConnectionsPerHost)
	}

	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Transport: rt,
			Timeout:   opts.Timeout,
		},
		log: logger.Named("upstream"),
	}, nil
}

func newTransport(perHost int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// BaseURL devolve o endereço do upstream sem barra final.
func (c *Client) BaseURL() string {
	return c.base
}

// Forward envia o envelope JSON ao upstream e devolve status + corpo JSON.
//
// Erros possíveis: ErrUpstreamTimeout, ErrUpstreamUnreachable,
// ErrUpstreamMalformed, ErrClientGone ou um erro genérico de transporte.
// Use StatusFor para obter o status HTTP correspondente.
func (c *Client) Forward(ctx context.Context, payload []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = classify(ctx, err)
		c.log.Debug("upstream call failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		// o corpo pode travar no meio: mesmo tratamento de timeout/desconexão do Do
		err = classify(ctx, fmt.Errorf("read upstream body: %w", err))
		c.log.Debug("upstream body read failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, err
	}

	var body json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		c.log.Debug("upstream answered with non-json body",
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(raw)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUpstreamMalformed, err)
	}

	c.log.Debug("upstream call done",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{Status: resp.StatusCode, Body: body}, nil
}

// FetchAsset faz GET em base+uri e devolve a resposta inteira em memória.
// Só serve para desenvolvimento: nada é transmitido em streaming.
func (c *Client) FetchAsset(ctx context.Context, uri string) (*Asset, error) {
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("read asset body: %w", err))
	}

	return &Asset{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Close fecha as conexões ociosas do pool.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// IsClientGone indica que o erro veio do cliente ter desconectado.
func IsClientGone(err error) bool {
	return errors.Is(err, ErrClientGone)
}
