package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/amsen20/argos/internal/model"
)

type InMemoryDecisionStore struct {
	mutex     sync.Mutex
	decisions map[string]map[string]*model.PlacementDecision
}

func NewInMemoryDecisionStore() *InMemoryDecisionStore {
	return &InMemoryDecisionStore{decisions: make(map[string]map[string]*model.PlacementDecision)}
}

func (s *InMemoryDecisionStore) Put(decision *model.PlacementDecision) error {
	if decision == nil {
		return fmt.Errorf("cannot store a nil decision")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	run, ok := s.decisions[decision.Run]
	if !ok {
		run = make(map[string]*model.PlacementDecision)
		s.decisions[decision.Run] = run
	}

	stored := *decision
	run[key(decision)] = &stored

	return nil
}

func (s *InMemoryDecisionStore) List(run string) ([]*model.PlacementDecision, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	decisions, ok := s.decisions[run]
	if !ok {
		return nil, fmt.Errorf("run %s does not exist", run)
	}

	keys := make([]string, 0, len(decisions))
	for k := range decisions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ret := make([]*model.PlacementDecision, 0, len(keys))
	for _, k := range keys {
		decision := *decisions[k]
		ret = append(ret, &decision)
	}

	return ret, nil
}

func (s *InMemoryDecisionStore) Runs() ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	runs := make([]string, 0, len(s.decisions))
	for run := range s.decisions {
		runs = append(runs, run)
	}
	sort.Strings(runs)

	return runs, nil
}

func (s *InMemoryDecisionStore) Count(run string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.decisions[run]), nil
}

func (s *InMemoryDecisionStore) Close() error {
	return nil
}
