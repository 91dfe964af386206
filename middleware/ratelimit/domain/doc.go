// Package domain define contratos e tipos de domínio para rate limit e concorrência
// do gateway.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar a regra
// "esse cliente estourou a cota?" dos detalhes de infraestrutura (LRU, Redis, etc).
package domain
