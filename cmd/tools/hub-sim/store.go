package main

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// twinDocument is one stored twin key: the last requested (desired) and
// reported documents.
type twinDocument struct {
	Key         string          `json:"key"`
	Request     json.RawMessage `json:"request"`
	Report      json.RawMessage `json:"report"`
	RequestedAt time.Time       `json:"requested_at"`
	ReportedAt  time.Time       `json:"reported_at"`
}

// hubStore keeps device identities and twin documents for the process
// lifetime.
type hubStore struct {
	mu      sync.RWMutex
	devices map[string]string                   // thing ID -> device ID
	tokens  map[string]string                   // device ID -> token
	twins   map[string]map[string]*twinDocument // device ID -> key -> doc
}

func newHubStore() *hubStore {
	return &hubStore{
		devices: make(map[string]string),
		tokens:  make(map[string]string),
		twins:   make(map[string]map[string]*twinDocument),
	}
}

// registerThing assigns a device identity, idempotently per thing.
func (s *hubStore) registerThing(thingID string) (deviceID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.devices[thingID]; ok {
		return id, s.tokens[id]
	}
	id := uuid.NewString()
	tok := uuid.NewString()
	s.devices[thingID] = id
	s.tokens[id] = tok
	s.twins[id] = make(map[string]*twinDocument)
	return id, tok
}

func (s *hubStore) knownDevice(deviceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.twins[deviceID]
	return ok
}

func (s *hubStore) doc(deviceID, key string) *twinDocument {
	if _, ok := s.twins[deviceID]; !ok {
		s.twins[deviceID] = make(map[string]*twinDocument)
	}
	d, ok := s.twins[deviceID][key]
	if !ok {
		d = &twinDocument{Key: key, Request: json.RawMessage("{}"), Report: json.RawMessage("{}")}
		s.twins[deviceID][key] = d
	}
	return d
}

func (s *hubStore) setRequest(deviceID, key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(deviceID, key)
	d.Request = append(json.RawMessage(nil), body...)
	d.RequestedAt = time.Now().UTC()
}

func (s *hubStore) setReport(deviceID, key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(deviceID, key)
	d.Report = append(json.RawMessage(nil), body...)
	d.ReportedAt = time.Now().UTC()
}

// request returns the stored desired document, or {} when nothing is
// stored.
func (s *hubStore) request(deviceID, key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if keys, ok := s.twins[deviceID]; ok {
		if d, ok := keys[key]; ok {
			return d.Request
		}
	}
	return []byte("{}")
}

func (s *hubStore) twin(deviceID, key string) (twinDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if keys, ok := s.twins[deviceID]; ok {
		if d, ok := keys[key]; ok {
			return *d, true
		}
	}
	return twinDocument{}, false
}
