package domain

import (
	"sync"
	"time"
)

// ReadingStore is a mutex-guarded implementation of SnapshotSource holding
// the latest reading per parameter. The bridge poll loop writes to it; the
// HTTP API reads from it.
type ReadingStore struct {
	readings    map[string]Reading
	device      DeviceInfo
	discovered  bool
	online      bool
	lastContact time.Time
	mutex       sync.RWMutex
}

// NewReadingStore creates an empty reading store.
func NewReadingStore() *ReadingStore {
	return &ReadingStore{
		readings: make(map[string]Reading),
	}
}

// Update merges a batch of readings into the store. Successful readings
// refresh the last-contact time.
func (s *ReadingStore) Update(readings map[string]Reading) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, reading := range readings {
		s.readings[name] = reading
		if reading.Err == nil {
			s.lastContact = time.Now()
		}
	}
}

// SetDevice records the discovered inverter identity.
func (s *ReadingStore) SetDevice(info DeviceInfo) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.device = info
	s.discovered = true
	s.lastContact = time.Now()
}

// SetOnline records the availability state derived by the poll loop.
func (s *ReadingStore) SetOnline(online bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.online = online
}

// Snapshot returns a copy of the most recent reading per parameter.
func (s *ReadingStore) Snapshot() map[string]Reading {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snapshot := make(map[string]Reading, len(s.readings))
	for name, reading := range s.readings {
		snapshot[name] = reading
	}
	return snapshot
}

// Get returns the latest reading for one parameter.
func (s *ReadingStore) Get(name string) (Reading, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	reading, ok := s.readings[name]
	return reading, ok
}

// Device returns the discovered inverter identity, if any.
func (s *ReadingStore) Device() (DeviceInfo, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.device, s.discovered
}

// Online reports whether the inverter responded recently.
func (s *ReadingStore) Online() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.online
}

// LastContact returns the time of the last successful exchange.
func (s *ReadingStore) LastContact() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastContact
}
