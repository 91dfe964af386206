// Package upstream encaminha requisições já admitidas para o backend MOTIS e
// classifica o resultado.
//
// Cada requisição do cliente vira exatamente uma tentativa no upstream: não há
// retry. Falhas de transporte viram erros sentinela (ErrUpstreamTimeout,
// ErrUpstreamUnreachable, ErrUpstreamMalformed) e StatusFor traduz qualquer erro
// deste pacote para o status HTTP que o gateway devolve.
package upstream
