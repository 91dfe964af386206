package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DestinationModule é o único tipo de destino aceito.
const DestinationModule = "Module"

var ErrInvalidRequest = errors.New("invalid request envelope")

type Destination struct {
	Type   string     `json:"type"`
	Target Capability `json:"target"`
}

// Request é o envelope que o cliente manda em POST /.
//
// Content é opaco para o gateway: só exigimos que seja um objeto JSON e ele é
// repassado ao upstream sem alteração.
type Request struct {
	Destination Destination     `json:"destination"`
	ContentType ContentType     `json:"content_type"`
	Content     json.RawMessage `json:"content"`
}

// DecodeRequest valida e decodifica o envelope. Qualquer erro é ErrInvalidRequest.
func DecodeRequest(b []byte) (*Request, error) {
	var raw struct {
		Destination *Destination     `json:"destination"`
		ContentType *ContentType     `json:"content_type"`
		Content     *json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	switch {
	case raw.Destination == nil:
		return nil, fmt.Errorf("%w: missing destination", ErrInvalidRequest)
	case raw.Destination.Type != DestinationModule:
		return nil, fmt.Errorf("%w: destination type %q", ErrInvalidRequest, raw.Destination.Type)
	case raw.Destination.Target == "":
		return nil, fmt.Errorf("%w: missing destination target", ErrInvalidRequest)
	case raw.ContentType == nil:
		return nil, fmt.Errorf("%w: missing content_type", ErrInvalidRequest)
	case raw.Content == nil:
		return nil, fmt.Errorf("%w: missing content", ErrInvalidRequest)
	}

	content := bytes.TrimSpace(*raw.Content)
	if len(content) == 0 || content[0] != '{' {
		return nil, fmt.Errorf("%w: content must be an object", ErrInvalidRequest)
	}

	return &Request{
		Destination: *raw.Destination,
		ContentType: *raw.ContentType,
		Content:     json.RawMessage(content),
	}, nil
}

// IsSearch indica se a requisição é uma busca de rota (sujeita ao rate limit).
func (r *Request) IsSearch() bool {
	return r.ContentType.IsSearch()
}

// Encode serializa o envelope para o upstream.
func (r *Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}
