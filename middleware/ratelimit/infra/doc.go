// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: contador por IP numa janela fixa compartilhada, tabela LRU limitada
//   - TokenStore: token bucket por chave (golang.org/x/time/rate), mesma tabela LRU limitada
//   - ChanPool: semáforo simples para limitar chamadas simultâneas ao upstream
//   - MemoryStatsStore / RedisStatsStore: contadores de desfecho por capability
package infra
