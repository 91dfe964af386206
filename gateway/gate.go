package gateway

// Gate aplica a allowlist de capabilities configurada pelo administrador.
type Gate struct {
	allowed map[Capability]struct{}
}

// NewGate monta o Gate. allowed == nil libera todas as capabilities conhecidas;
// uma lista vazia (não nil) não libera nenhuma.
func NewGate(allowed []Capability) *Gate {
	if allowed == nil {
		return &Gate{}
	}
	set := make(map[Capability]struct{}, len(allowed))
	for _, c := range allowed {
		set[c] = struct{}{}
	}
	return &Gate{allowed: set}
}

func (g *Gate) Allowed(c Capability) bool {
	if g == nil || g.allowed == nil {
		return true
	}
	_, ok := g.allowed[c]
	return ok
}
