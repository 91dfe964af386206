// Package gateway implementa o pipeline de admissão e encaminhamento de POST /.
//
// O cliente manda um envelope
//
//	{"destination": {"type": "Module", "target": "/intermodal"},
//	 "content_type": "IntermodalConnectionRequest",
//	 "content": {...}}
//
// e o pipeline decide, nesta ordem:
//
//  1. o envelope decodifica? (senão 422; capability ou content_type desconhecidos também)
//  2. a capability está na allowlist? (senão 422)
//  3. se for busca de rota, o cliente ainda tem cota? (senão 429)
//  4. encaminha ao upstream e repassa status + JSON (ou 502/504/500)
//
// O conteúdo das buscas não é interpretado: o gateway só controla acesso e tráfego.
package gateway
