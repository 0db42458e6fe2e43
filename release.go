package locus

import "sync"

// releaseTable tracks Releasable values handed out to clients so their
// release callbacks fire deterministically when the owning client is
// torn down.
type releaseTable struct {
	mu     sync.Mutex
	values map[Node][]Releasable
}

func newReleaseTable() *releaseTable {
	return &releaseTable{values: make(map[Node][]Releasable)}
}

// track remembers value against client when it supports release.
// Clientless requests have no owner to release against.
func (t *releaseTable) track(client Node, value any) {
	if client == nil {
		return
	}

	r, ok := value.(Releasable)
	if !ok {
		return
	}

	t.mu.Lock()
	t.values[client] = append(t.values[client], r)
	t.mu.Unlock()
}

// release fires the callbacks recorded for client, in reverse order of
// tracking, and forgets them.
func (t *releaseTable) release(client Node) {
	t.mu.Lock()
	tracked := t.values[client]
	delete(t.values, client)
	t.mu.Unlock()

	for i := len(tracked) - 1; i >= 0; i-- {
		tracked[i].Release(client)
	}
}

// clear drops every record without firing callbacks.
func (t *releaseTable) clear() {
	t.mu.Lock()
	t.values = make(map[Node][]Releasable)
	t.mu.Unlock()
}
