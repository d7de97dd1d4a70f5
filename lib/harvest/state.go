package harvest

import (
	"log/slog"
	"sort"
	"strconv"
)

// RejectedEntry records why an identifier was permanently excluded.
type RejectedEntry struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Paths names the four persisted collections.
type Paths struct {
	Dataset  string
	AppList  string
	Rejected string
	Deferred string
}

func DefaultPaths() Paths {
	return Paths{
		Dataset:  "games.json",
		AppList:  "applist.json",
		Rejected: "discarted.json",
		Deferred: "notreleased.json",
	}
}

// State mirrors the four persisted collections in memory. An identifier is
// present in at most one of accepted, rejected and deferred.
type State struct {
	Accepted map[string]Record
	Universe []string
	Rejected map[string]RejectedEntry
	Deferred map[string]struct{}

	paths Paths
}

// LoadState restores all four collections from disk, creating empty ones
// for files that do not exist yet.
func LoadState(paths Paths) (*State, error) {
	s := &State{paths: paths}

	accepted, err := Load(paths.Dataset, map[string]Record{})
	if err != nil {
		return nil, err
	}
	s.Accepted = accepted

	universe, err := Load(paths.AppList, []string{})
	if err != nil {
		return nil, err
	}
	s.Universe = universe

	rejected, err := loadRejected(paths.Rejected)
	if err != nil {
		return nil, err
	}
	s.Rejected = rejected

	deferredList, err := Load(paths.Deferred, []string{})
	if err != nil {
		return nil, err
	}
	s.Deferred = make(map[string]struct{}, len(deferredList))
	for _, id := range deferredList {
		s.Deferred[id] = struct{}{}
	}

	slog.Info("state restored",
		"accepted", len(s.Accepted),
		"universe", len(s.Universe),
		"rejected", len(s.Rejected),
		"deferred", len(s.Deferred),
	)
	return s, nil
}

// loadRejected reads the rejected store in its canonical map form, falling
// back to the legacy list-of-ids format older snapshots used.
func loadRejected(path string) (map[string]RejectedEntry, error) {
	rejected, err := Load(path, map[string]RejectedEntry{})
	if err == nil {
		return rejected, nil
	}

	legacy, legacyErr := Load(path, []string{})
	if legacyErr != nil {
		return nil, err
	}
	slog.Info("migrating legacy rejected list", "path", path, "count", len(legacy))
	rejected = make(map[string]RejectedEntry, len(legacy))
	for _, id := range legacy {
		rejected[id] = RejectedEntry{Reason: "unknown"}
	}
	return rejected, nil
}

// Known reports whether the id already has a terminal outcome.
func (s *State) Known(id string) bool {
	if _, ok := s.Accepted[id]; ok {
		return true
	}
	_, ok := s.Rejected[id]
	return ok
}

// IsDeferred reports whether the id is parked as not yet released.
func (s *State) IsDeferred(id string) bool {
	_, ok := s.Deferred[id]
	return ok
}

// Accept moves the id into the accepted store and out of deferred.
func (s *State) Accept(id string, rec Record) {
	s.Accepted[id] = rec
	delete(s.Deferred, id)
}

// Reject permanently excludes the id. A previously deferred id that turns
// out to be rejectable leaves the deferred store so membership stays
// mutually exclusive.
func (s *State) Reject(id, name, reason string) {
	s.Rejected[id] = RejectedEntry{Name: name, Reason: reason}
	delete(s.Deferred, id)
}

// Defer parks the id for a future run.
func (s *State) Defer(id string) {
	s.Deferred[id] = struct{}{}
}

func (s *State) deferredList() []string {
	list := make([]string, 0, len(s.Deferred))
	for id := range s.Deferred {
		list = append(list, id)
	}
	sort.Slice(list, func(i, j int) bool {
		a, aerr := strconv.ParseInt(list[i], 10, 64)
		b, berr := strconv.ParseInt(list[j], 10, 64)
		if aerr != nil || berr != nil {
			return list[i] < list[j]
		}
		return a < b
	})
	return list
}

func (s *State) SaveDataset(backup bool) error {
	return Save(s.paths.Dataset, s.Accepted, backup)
}

func (s *State) SaveUniverse(backup bool) error {
	return Save(s.paths.AppList, s.Universe, backup)
}

func (s *State) SaveRejected(backup bool) error {
	return Save(s.paths.Rejected, s.Rejected, backup)
}

func (s *State) SaveDeferred(backup bool) error {
	return Save(s.paths.Deferred, s.deferredList(), backup)
}

// FlushAll persists every collection. All four are attempted even if one
// fails; the first error wins.
func (s *State) FlushAll(backup bool) error {
	var firstErr error
	for _, save := range []func(bool) error{
		s.SaveDataset,
		s.SaveUniverse,
		s.SaveRejected,
		s.SaveDeferred,
	} {
		err := save(backup)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
