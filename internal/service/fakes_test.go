package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
)

// memStore is an in-memory port.RoastStore and port.CredentialSource with the
// same conditional-update semantics as the Postgres adapter.
type memStore struct {
	mu     sync.Mutex
	nextID int
	roasts map[string]*domain.Roast
	repos  map[string]*domain.TrackedRepo
	tokens map[string][2]string // user|kind -> access, refresh
	audits []auditEntry
}

type auditEntry struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Details    string
}

func newMemStore() *memStore {
	return &memStore{
		roasts: make(map[string]*domain.Roast),
		repos:  make(map[string]*domain.TrackedRepo),
		tokens: make(map[string][2]string),
	}
}

func (m *memStore) CreateRoast(_ context.Context, r *domain.Roast) (*domain.Roast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *r
	cp.ID = fmt.Sprintf("roast-%d", m.nextID)
	cp.CreatedAt = time.Now()
	m.roasts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) GetRoast(_ context.Context, id string) (*domain.Roast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roasts[id]
	if !ok {
		return nil, port.ErrRoastNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListDueRoasts(_ context.Context, now time.Time) ([]domain.Roast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []domain.Roast
	for _, r := range m.roasts {
		if r.Due(now) {
			due = append(due, *r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Deadline.Before(*due[j].Deadline) })
	return due, nil
}

func (m *memStore) ListPendingRoastsByUser(_ context.Context, userID string, now time.Time) ([]domain.Roast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Roast
	for _, r := range m.roasts {
		repo, ok := m.repos[r.RepoName]
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

func (m *memStore) ClaimRoast(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roasts[id]
	if !ok || r.Posted || r.Fixed {
		return false, nil
	}
	r.Posted = true
	r.Status = domain.RoastStatusExpired
	return true, nil
}

func (m *memStore) ResolveRoast(_ context.Context, id string, now time.Time) (*domain.Roast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roasts[id]
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

func (m *memStore) GetTrackedRepo(_ context.Context, repoName string) (*domain.TrackedRepo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.repos[repoName]
	if !ok {
		return nil, port.ErrNotTracked
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) UpsertTrackedRepo(_ context.Context, r *domain.TrackedRepo) (*domain.TrackedRepo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	if cp.ID == "" {
		m.nextID++
		cp.ID = fmt.Sprintf("repo-%d", m.nextID)
	}
	m.repos[cp.RepoName] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) ListTrackedReposByUser(_ context.Context, userID string) ([]domain.TrackedRepo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TrackedRepo
	for _, t := range m.repos {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) DeleteTrackedRepo(_ context.Context, repoName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.repos, repoName)
	return nil
}

func (m *memStore) DeleteTrackedRepoCascade(_ context.Context, repoName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.roasts {
		if r.RepoName == repoName {
			delete(m.roasts, id)
		}
	}
	delete(m.repos, repoName)
	return nil
}

func (m *memStore) WriteAudit(userID, action, resource, resourceID, details, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, auditEntry{
		UserID: userID, Action: action, Resource: resource,
		ResourceID: resourceID, Details: details,
	})
	return nil
}

func (m *memStore) Credential(_ context.Context, userID, kind string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair, ok := m.tokens[userID+"|"+kind]
	if !ok {
		return "", "", port.ErrNoCredential
	}
	return pair[0], pair[1], nil
}

func (m *memStore) UpdateCredential(_ context.Context, userID, kind, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID+"|"+kind] = [2]string{access, refresh}
	return nil
}

func (m *memStore) setToken(userID, kind, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID+"|"+kind] = [2]string{token, ""}
}

func (m *memStore) auditCount(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.audits {
		if a.Action == action {
			n++
		}
	}
	return n
}

// fakeVCS records revert/delete calls and serves canned diffs and commits.
type fakeVCS struct {
	mu        sync.Mutex
	diff      string
	diffErr   error
	info      *domain.CommitInfo
	infoErr   error
	revertErr error
	deleteErr error
	reverted  []string
	deleted   []string
}

func (f *fakeVCS) FetchDiff(context.Context, string, string, string) (string, error) {
	return f.diff, f.diffErr
}

func (f *fakeVCS) FetchCommitInfo(_ context.Context, _, _, sha string) (*domain.CommitInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if f.info != nil {
		return f.info, nil
	}
	return &domain.CommitInfo{SHA: sha, Author: "dev", Message: "wip", Branch: "main"}, nil
}

func (f *fakeVCS) RevertCommit(_ context.Context, repoName, _, sha string) error {
	if f.revertErr != nil {
		return f.revertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverted = append(f.reverted, repoName+"@"+sha)
	return nil
}

func (f *fakeVCS) DeleteRepository(_ context.Context, repoName, _ string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, repoName)
	return nil
}

// fakePoster counts posts and can be configured to fail.
type fakePoster struct {
	mu       sync.Mutex
	platform string
	err      error
	postID   string
	texts    []string
}

func (f *fakePoster) Platform() string { return f.platform }

func (f *fakePoster) Post(_ context.Context, _, text string) (*port.PostResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return &port.PostResult{PostID: f.postID}, nil
}

func (f *fakePoster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

// fakeOracle returns a canned verdict and roast.
type fakeOracle struct {
	verdict  *port.Verdict
	judgeErr error
	roast    string
	roastErr error
}

func (f *fakeOracle) Judge(context.Context, string) (*port.Verdict, error) {
	return f.verdict, f.judgeErr
}

func (f *fakeOracle) GenerateRoast(context.Context, port.RoastRequest) (string, error) {
	return f.roast, f.roastErr
}
