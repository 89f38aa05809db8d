package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/CK6170/Loadcurve-go/curve"
	"github.com/CK6170/Loadcurve-go/rig"
)

// RunRecord is one completed (or fitted) acquisition kept in memory so the
// UI can re-fit and download it.
type RunRecord struct {
	ID      string
	Taken   time.Time
	Rec     *rig.Recording
	Outcome *curve.Outcome // nil until calibrated
}

type RunStore struct {
	mu sync.RWMutex
	m  map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{m: make(map[string]*RunRecord)}
}

func (s *RunStore) Put(rec *rig.Recording) (*RunRecord, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	r := &RunRecord{ID: id, Taken: rec.Taken, Rec: rec}
	s.mu.Lock()
	s.m[id] = r
	s.mu.Unlock()
	return r, nil
}

func (s *RunStore) Get(id string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[id]
	return r, ok
}

func (s *RunStore) SetOutcome(id string, out *curve.Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[id]
	if !ok {
		return false
	}
	r.Outcome = out
	return true
}

// List returns records newest first.
func (s *RunStore) List() []*RunRecord {
	s.mu.RLock()
	out := make([]*RunRecord, 0, len(s.m))
	for _, r := range s.m {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Taken.After(out[j].Taken) })
	return out
}

func newID() (string, error) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
