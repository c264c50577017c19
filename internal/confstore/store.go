package confstore

import (
	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/types"
)

// Persistence is opaque word storage. Zero means unset.
type Persistence interface {
	ReadConfigWord() (uint32, error)
	WriteConfigWord(raw uint32) error
}

// Store keeps the in-memory copy of the persisted record.
type Store struct {
	backend Persistence
	logger  *logger.Logger
	current Record
}

func New(backend Persistence, l *logger.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  l,
		current: Default(),
	}
}

// Load reads the persisted word. An unset word is replaced by the default
// record, which is written back. A failed read yields the default without
// writing so the stored word is left alone.
func (s *Store) Load() Record {
	raw, err := s.backend.ReadConfigWord()
	if err != nil {
		s.logger.Warnf("Failed to read config word, using defaults: %v", err)
		s.current = Default()
		return s.current
	}

	rec := Unpack(raw)
	if !rec.Valid {
		s.logger.Infof("Config word unset (0x%08x), writing defaults", raw)
		rec = Default()
		s.Save(rec)
		return rec
	}

	s.current = rec
	s.logger.Debugf("Loaded config: device=%s", rec.Device)
	return rec
}

// Save writes the packed record verbatim.
func (s *Store) Save(rec Record) {
	s.current = rec
	if err := s.backend.WriteConfigWord(rec.Pack()); err != nil {
		s.logger.Errorf("Failed to write config word: %v", err)
		return
	}
	s.logger.Debugf("Saved config: device=%s", rec.Device)
}

// Update saves dev as the active device if it differs from the stored one.
// It reports whether a write happened.
func (s *Store) Update(dev types.DeviceID) bool {
	if s.current.Valid && s.current.Device == dev {
		return false
	}
	s.Save(Record{Valid: true, Device: dev})
	return true
}

// Current returns the in-memory record without touching storage.
func (s *Store) Current() Record {
	return s.current
}
