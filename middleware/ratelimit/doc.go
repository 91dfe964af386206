// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de
// concorrência do gateway.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela LRU, token bucket, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + extração da identidade do cliente
//     + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a identidade do cliente (header de IP real, XFF ou RemoteAddr)
//  2. Se a requisição é de busca de rota (Options.Applies), conta e decide
//  3. Se bloqueado, responde 429 com corpo vazio (ou 503 na concorrência)
//  4. Se permitido, chama o próximo handler (encaminhamento ao upstream)
package ratelimit
