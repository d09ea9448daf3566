// Package domain define os tipos e contratos do controle de admissão:
// identidade, regra efetiva, entrada de cache, configuração e decisão.
//
// Nada aqui conhece net/http, relógio ou implementação concreta de cache.
// As regras (janela fixa, detecção de troca de IP, validação) ficam em
// application; as estruturas de dados concretas ficam em infra.
package domain
