// Package memory provides an in-memory Store for tests and embedding.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/clubsitehq/schedkit/recurrence"
	"github.com/clubsitehq/schedkit/storage"
)

// Store implements storage.Store using in-memory maps.
type Store struct {
	mu         sync.RWMutex
	rules      map[string]recurrence.Rule       // key: rule id
	exceptions map[string]recurrence.Exception  // key: ruleID/sourceKey
	manual     map[string]recurrence.Occurrence // key: source key
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rules:      make(map[string]recurrence.Rule),
		exceptions: make(map[string]recurrence.Exception),
		manual:     make(map[string]recurrence.Occurrence),
	}
}

func exceptionKey(ruleID, sourceKey string) string {
	return fmt.Sprintf("%s/%s", ruleID, sourceKey)
}

// Rule operations

func (s *Store) GetRule(_ context.Context, id string) (*recurrence.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "rule not found"}
	}
	return &rule, nil
}

func (s *Store) ListRules(_ context.Context, scope storage.Scope) ([]recurrence.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]recurrence.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		if scope.ProgramNodeID != "" && rule.ProgramNodeID != scope.ProgramNodeID {
			continue
		}
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (s *Store) PutRule(_ context.Context, rule recurrence.Rule) error {
	if rule.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "rule id required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[rule.ID] = rule
	return nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return &storage.Error{Type: storage.ErrNotFound, Message: "rule not found"}
	}
	delete(s.rules, id)
	return nil
}

// Exception operations

func (s *Store) ListExceptions(_ context.Context, ruleIDs []string) ([]recurrence.Exception, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(ruleIDs))
	for _, id := range ruleIDs {
		wanted[id] = struct{}{}
	}

	var exceptions []recurrence.Exception
	for _, ex := range s.exceptions {
		if _, ok := wanted[ex.RuleID]; ok {
			exceptions = append(exceptions, ex)
		}
	}
	sort.Slice(exceptions, func(i, j int) bool { return exceptions[i].SourceKey < exceptions[j].SourceKey })
	return exceptions, nil
}

// UpsertException inserts or replaces the exception recorded against
// (ruleID, sourceKey). The original id survives replacement so repeated
// upserts stay idempotent.
func (s *Store) UpsertException(_ context.Context, ex recurrence.Exception) error {
	if ex.RuleID == "" || ex.SourceKey == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "rule id and source key required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := exceptionKey(ex.RuleID, ex.SourceKey)
	if existing, ok := s.exceptions[key]; ok {
		ex.ID = existing.ID
	} else if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	s.exceptions[key] = ex
	return nil
}

func (s *Store) DeleteException(_ context.Context, ruleID, sourceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := exceptionKey(ruleID, sourceKey)
	if _, ok := s.exceptions[key]; !ok {
		return &storage.Error{Type: storage.ErrNotFound, Message: "exception not found"}
	}
	delete(s.exceptions, key)
	return nil
}

// Manual occurrence operations

func (s *Store) ListManualOccurrences(_ context.Context, scope storage.Scope) ([]recurrence.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	occs := make([]recurrence.Occurrence, 0, len(s.manual))
	for _, occ := range s.manual {
		if scope.ProgramNodeID != "" && occ.ProgramNodeID != scope.ProgramNodeID {
			continue
		}
		occs = append(occs, occ)
	}
	sort.Slice(occs, func(i, j int) bool { return occs[i].SourceKey < occs[j].SourceKey })
	return occs, nil
}

func (s *Store) PutManualOccurrence(_ context.Context, occ recurrence.Occurrence) error {
	if occ.SourceKey == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "source key required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manual[occ.SourceKey] = occ
	return nil
}

func (s *Store) DeleteManualOccurrence(_ context.Context, sourceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.manual[sourceKey]; !ok {
		return &storage.Error{Type: storage.ErrNotFound, Message: "manual occurrence not found"}
	}
	delete(s.manual, sourceKey)
	return nil
}
