package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

var (
	// ErrUpstreamTimeout: o upstream não respondeu dentro do timeout.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstreamUnreachable: não foi possível abrir conexão com o upstream.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	// ErrUpstreamMalformed: a resposta chegou mas o corpo não é JSON.
	ErrUpstreamMalformed = errors.New("upstream response is not valid json")
	// ErrClientGone: o cliente desconectou antes do upstream responder.
	ErrClientGone = errors.New("client went away")
)

// StatusError carrega um status HTTP vindo da camada de transporte.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upstream status %d", e.Code)
	}
	return fmt.Sprintf("upstream status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusFor traduz um erro de Forward/FetchAsset para o status que o gateway
// devolve ao cliente.
func StatusFor(err error) int {
	var se *StatusError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstreamUnreachable):
		return http.StatusBadGateway
	case errors.As(err, &se) && se.Code >= 100 && se.Code <= 999:
		return se.Code
	default:
		return http.StatusInternalServerError
	}
}

// classify converte o erro do http.Client em um dos erros do pacote.
// ctx é o contexto da requisição do cliente.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	// cliente desconectou: não é culpa do upstream
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %w", ErrClientGone, err)
	}

	if isTimeout(err) {
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	}
	if isConnect(err) {
		return fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnect(err error) bool {
	var oe *net.OpError
	if errors.As(err, &oe) && oe.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
