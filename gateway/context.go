package gateway

import "context"

type ctxKey int

const (
	requestKey ctxKey = iota
	requestIDKey
)

func withRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestKey, req)
}

// RequestFrom devolve o envelope já decodificado, ou nil antes do decode.
func RequestFrom(ctx context.Context) *Request {
	req, _ := ctx.Value(requestKey).(*Request)
	return req
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
