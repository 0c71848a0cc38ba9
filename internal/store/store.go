// Package store persists the current user and their registrations in a
// small local key-value store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/peterbourgon/diskv/v3"

	appLog "evently/internal/log"
	"evently/internal/model"
)

// Keys used in the store. They match the names the web client used for its
// local storage so exported data stays recognisable.
const (
	KeyUser          = "evently_user"
	KeyRegistrations = "evently_registered_events"
)

// ErrNotFound is returned by KV.Read for a missing key.
var ErrNotFound = errors.New("store: key not found")

// KV is the raw byte store.
type KV interface {
	Read(key string) ([]byte, error)
	Write(key string, val []byte) error
	Erase(key string) error
	Keys(ctx context.Context) []string
}

// Disk is a KV backed by diskv, one file per key under a base directory.
type Disk struct {
	d *diskv.Diskv
}

// OpenDisk creates dir if needed and returns a store rooted there.
func OpenDisk(dir string) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("store: data dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &Disk{d: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 256 * 1024,
		FilePerm:     0o600,
		PathPerm:     0o700,
	})}, nil
}

func (s *Disk) Read(key string) ([]byte, error) {
	val, err := s.d.Read(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return val, err
}

func (s *Disk) Write(key string, val []byte) error {
	return s.d.Write(key, val)
}

func (s *Disk) Erase(key string) error {
	if !s.d.Has(key) {
		return nil
	}
	return s.d.Erase(key)
}

func (s *Disk) Keys(ctx context.Context) []string {
	var keys []string
	for k := range s.d.Keys(ctx.Done()) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Memory is an in-process KV, used by tests and when no data dir is set.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Read(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Memory) Write(key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), val...)
	return nil
}

func (s *Memory) Erase(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *Memory) Keys(context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// State is the typed view over a KV.
type State struct {
	kv KV
}

func NewState(kv KV) *State {
	return &State{kv: kv}
}

// LoadUser returns the stored user or nil. A malformed value, a JSON null
// and a user without an ID are all erased and read as logged out.
func (s *State) LoadUser() *model.User {
	u, ok := loadJSON[*model.User](s.kv, KeyUser)
	if !ok {
		return nil
	}
	if u == nil || u.ID == "" {
		appLog.Warn("stored user is empty, erasing", "key", KeyUser)
		if err := s.kv.Erase(KeyUser); err != nil {
			appLog.Error("store erase failed", err, "key", KeyUser)
		}
		return nil
	}
	return u
}

// SaveUser stores u; nil erases the key.
func (s *State) SaveUser(u *model.User) error {
	if u == nil {
		return s.kv.Erase(KeyUser)
	}
	return saveJSON(s.kv, KeyUser, u)
}

// LoadRegistrations returns the stored registrations, never nil. A malformed
// value is erased.
func (s *State) LoadRegistrations() []model.Registration {
	regs, ok := loadJSON[[]model.Registration](s.kv, KeyRegistrations)
	if !ok || regs == nil {
		return []model.Registration{}
	}
	return regs
}

func (s *State) SaveRegistrations(regs []model.Registration) error {
	if regs == nil {
		regs = []model.Registration{}
	}
	return saveJSON(s.kv, KeyRegistrations, regs)
}

// loadJSON decodes key into T. Missing keys and unreadable or malformed
// values report false; malformed values are also erased so the next start
// is clean.
func loadJSON[T any](kv KV, key string) (T, bool) {
	var zero T
	raw, err := kv.Read(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			appLog.Error("store read failed", err, "key", key)
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		appLog.Error("store value malformed, erasing", err, "key", key, "bytes", len(raw))
		if eraseErr := kv.Erase(key); eraseErr != nil {
			appLog.Error("store erase failed", eraseErr, "key", key)
		}
		return zero, false
	}
	return v, true
}

func saveJSON(kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	if err := kv.Write(key, data); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}
