package handler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
	"github.com/arturoeanton/go-commit-roaster/internal/service"
)

// stubStore is an in-memory port.RoastStore and port.CredentialSource for
// handler tests.
type stubStore struct {
	mu     sync.Mutex
	nextID int
	roasts map[string]*domain.Roast
	repos  map[string]*domain.TrackedRepo
}

func newStubStore() *stubStore {
	return &stubStore{
		roasts: make(map[string]*domain.Roast),
		repos:  make(map[string]*domain.TrackedRepo),
	}
}

func (s *stubStore) CreateRoast(_ context.Context, r *domain.Roast) (*domain.Roast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *r
	cp.ID = fmt.Sprintf("roast-%d", s.nextID)
	cp.CreatedAt = time.Now()
	s.roasts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *stubStore) GetRoast(_ context.Context, id string) (*domain.Roast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roasts[id]
	if !ok {
		return nil, port.ErrRoastNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *stubStore) ListDueRoasts(_ context.Context, now time.Time) ([]domain.Roast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.Roast
	for _, r := range s.roasts {
		if r.Due(now) {
			due = append(due, *r)
		}
	}
	return due, nil
}

func (s *stubStore) ListPendingRoastsByUser(_ context.Context, userID string, now time.Time) ([]domain.Roast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Roast
	for _, r := range s.roasts {
		repo, ok := s.repos[r.RepoName]
		if !ok || repo.UserID != userID {
			continue
		}
		if r.Status == domain.RoastStatusPending && r.Deadline != nil && r.Deadline.After(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(*out[j].Deadline) })
	return out, nil
}

func (s *stubStore) ClaimRoast(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roasts[id]
	if !ok || r.Posted || r.Fixed {
		return false, nil
	}
	r.Posted = true
	r.Status = domain.RoastStatusExpired
	return true, nil
}

func (s *stubStore) ResolveRoast(_ context.Context, id string, now time.Time) (*domain.Roast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roasts[id]
	if !ok {
		return nil, port.ErrRoastNotFound
	}
	if r.Status != domain.RoastStatusPending {
		return nil, port.ErrAlreadyProcessed
	}
	r.Status = domain.RoastStatusResolved
	r.Fixed = true
	r.ResolvedAt = &now
	cp := *r
	return &cp, nil
}

func (s *stubStore) GetTrackedRepo(_ context.Context, repoName string) (*domain.TrackedRepo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.repos[repoName]
	if !ok {
		return nil, port.ErrNotTracked
	}
	cp := *t
	return &cp, nil
}

func (s *stubStore) UpsertTrackedRepo(_ context.Context, r *domain.TrackedRepo) (*domain.TrackedRepo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if cp.ID == "" {
		s.nextID++
		cp.ID = fmt.Sprintf("repo-%d", s.nextID)
	}
	s.repos[cp.RepoName] = &cp
	out := cp
	return &out, nil
}

func (s *stubStore) ListTrackedReposByUser(_ context.Context, userID string) ([]domain.TrackedRepo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TrackedRepo
	for _, t := range s.repos {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *stubStore) DeleteTrackedRepo(_ context.Context, repoName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.repos, repoName)
	return nil
}

func (s *stubStore) DeleteTrackedRepoCascade(_ context.Context, repoName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.roasts {
		if r.RepoName == repoName {
			delete(s.roasts, id)
		}
	}
	delete(s.repos, repoName)
	return nil
}

func (s *stubStore) WriteAudit(string, string, string, string, string, string, string) error {
	return nil
}

func (s *stubStore) Credential(context.Context, string, string) (string, string, error) {
	return "", "", port.ErrNoCredential
}

func (s *stubStore) UpdateCredential(context.Context, string, string, string, string) error {
	return nil
}

func newTestLifecycle(store *stubStore) *service.LifecycleService {
	dispatcher := service.NewDispatcher(port.SocialRegistry{}, nopVCS{}, store, store)
	return service.NewLifecycleService(store, dispatcher)
}

// nopVCS satisfies port.VCSProvider for handlers that never reach it.
type nopVCS struct{}

func (nopVCS) FetchDiff(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (nopVCS) FetchCommitInfo(context.Context, string, string, string) (*domain.CommitInfo, error) {
	return &domain.CommitInfo{}, nil
}

func (nopVCS) RevertCommit(context.Context, string, string, string) error { return nil }
func (nopVCS) DeleteRepository(context.Context, string, string) error     { return nil }
