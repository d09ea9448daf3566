// Package application contém as regras do controle de admissão, sem net/http:
//
//   - Fingerprinter: identificador estável de clientes anônimos via headers
//   - Detector: sinaliza troca excessiva de IP por fingerprint
//   - AnonymousLimiter / AuthenticatedLimiter: cota em janela fixa por chave
//   - ConfigResolver: validação tudo-ou-nada da política e regra por rota
//   - Service.Decide: junta tudo e devolve uma domain.Decision
//   - ConcurrencyService: aquisição de vaga com timeout
package application
