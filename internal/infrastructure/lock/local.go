package lock

import (
	"context"
	"sort"
	"sync"
)

// Local serializa llaves dentro del proceso. Cada llave es un semáforo de capacidad 1
// que se crea al pedirla y se elimina cuando nadie la espera.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal construye la tabla de candados en memoria.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock toma las llaves en orden lexicográfico (sin duplicados). Si ctx se cancela
// mientras espera, libera lo ya tomado y devuelve ctx.Err().
func (l *Local) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := normalizeKeys(keys)
	held := make([]string, 0, len(ordered))
	for _, k := range ordered {
		s := l.ref(k)
		select {
		case s.ch <- struct{}{}:
			held = append(held, k)
		case <-ctx.Done():
			l.unref(k)
			l.release(held)
			return nil, ctx.Err()
		}
	}
	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) release(held []string) {
	for i := len(held) - 1; i >= 0; i-- {
		l.mu.Lock()
		s := l.slots[held[i]]
		l.mu.Unlock()
		<-s.ch
		l.unref(held[i])
	}
}

// size cantidad de llaves vivas; solo para pruebas.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
