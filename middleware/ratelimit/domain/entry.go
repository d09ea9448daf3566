package domain

import "time"

// Entry é o estado de uma chave dentro da janela atual.
//
// Invariantes: Count >= 1 depois de criada; History só cresce dentro da
// janela e é zerada junto com o contador.
type Entry struct {
	Count       int
	WindowStart time.Time
	History     map[string]struct{}
}

func NewEntry(now time.Time) *Entry {
	return &Entry{
		Count:       1,
		WindowStart: now,
		History:     make(map[string]struct{}),
	}
}

// Reset abre uma nova janela começando em now.
func (e *Entry) Reset(now time.Time) {
	e.Count = 1
	e.WindowStart = now
	clear(e.History)
}

func (e *Entry) Seen(ip string) bool {
	_, ok := e.History[ip]
	return ok
}

func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := &Entry{
		Count:       e.Count,
		WindowStart: e.WindowStart,
		History:     make(map[string]struct{}, len(e.History)),
	}
	for ip := range e.History {
		out.History[ip] = struct{}{}
	}
	return out
}

// EntryCache é o armazenamento limitado (capacidade + TTL) das entradas.
//
// Get devolve uma cópia; a única forma de mutar uma entrada guardada é
// Update, que roda fn com a trava da chave segurada. fn recebe nil quando
// a chave não existe (ou expirou) e devolve a entrada a guardar; devolver
// nil remove a chave. ttl <= 0 usa o TTL padrão do cache.
type EntryCache interface {
	Get(key string) (*Entry, bool)
	Set(key string, e *Entry)
	Has(key string) bool
	Clear()
	Update(key string, ttl time.Duration, fn func(e *Entry) *Entry)
}
