package server

import (
	"sync"

	workshop "github.com/nevindra/workshop"
)

// sessionRecord is one live session: its conversation state, the agent loop
// that drives it, and the sandbox it owns. busy serializes turns; a record
// in use rejects new /chat requests.
type sessionRecord struct {
	session       *workshop.Session
	agent         *workshop.Agent
	userID        string
	workspaceRoot string
	busy          bool
}

// registry is the in-memory session map. All access goes through its mutex;
// record fields (including busy) are only touched while it is held.
type registry struct {
	mu   sync.Mutex
	recs map[string]*sessionRecord
}

func newRegistry() *registry {
	return &registry{recs: make(map[string]*sessionRecord)}
}

// lookup returns the record for id, or nil.
func (r *registry) lookup(id string) *sessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recs[id]
}

// add stores a record under its session id.
func (r *registry) add(rec *sessionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.session.ID] = rec
}

// acquire marks the record for id busy. It returns the record, whether a
// known id was found, and whether the acquisition succeeded (false means the
// session is mid-turn).
func (r *registry) acquire(id string) (rec *sessionRecord, found, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, found = r.recs[id]
	if !found {
		return nil, false, false
	}
	if rec.busy {
		return rec, true, false
	}
	rec.busy = true
	return rec, true, true
}

// addAcquired stores a freshly created record already marked busy.
func (r *registry) addAcquired(rec *sessionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.busy = true
	r.recs[rec.session.ID] = rec
}

// release clears the busy flag. Safe to call from a deferred cleanup no
// matter how the turn ended.
func (r *registry) release(rec *sessionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.busy = false
}

// each calls fn for every record. Used for shutdown cleanup.
func (r *registry) each(fn func(id string, rec *sessionRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.recs {
		fn(id, rec)
	}
}
