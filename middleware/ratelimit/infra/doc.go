// Package infra contém as implementações concretas dos contratos de domain:
//
//   - BoundedCache: entradas por chave com capacidade fixa, LRU e TTL
//   - MemoryStatsStore / RedisStatsStore: estatísticas das decisões
//   - ChanPool: semáforo para limite de concorrência
package infra
