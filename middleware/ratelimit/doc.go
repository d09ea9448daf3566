// Package ratelimit é o adapter net/http do controle de admissão.
//
// Camadas:
//
//   - domain: tipos e contratos (sem net/http)
//   - application: fingerprint, detecção de troca de IP, janela fixa, validação da política
//   - infra: cache LRU+TTL, estatísticas (memória/Redis), semáforo
//   - ratelimit (este pacote): middlewares HTTP, extração de identidade/IP e resposta
//
// Fluxo por requisição:
//
//  1. Identidade: user id presente no contexto (ou header confiável) => autenticado
//  2. IP do cliente (ou "unknown")
//  3. Regra efetiva para (path, identidade), com fallback para a política padrão
//  4. Chave: fingerprint dos headers (anônimo) ou user id (autenticado)
//  5. Estratégia correspondente decide
//  6. Bloqueado => 429 {"error":"Too Many Requests"}; senão segue para o próximo handler
//
// Cota estourada e comportamento suspeito produzem exatamente a mesma resposta.
package ratelimit
