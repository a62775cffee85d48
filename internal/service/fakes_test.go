package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/proposal-studio/internal/mailer"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/storage"
)

// fakeProposalRepo хранит предложения в памяти.
type fakeProposalRepo struct {
	mu        sync.Mutex
	proposals map[uuid.UUID]*models.Proposal
	signers   *fakeSignatureRepo
}

func newFakeProposalRepo() *fakeProposalRepo {
	return &fakeProposalRepo{proposals: make(map[uuid.UUID]*models.Proposal)}
}

func (r *fakeProposalRepo) put(p *models.Proposal) *models.Proposal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.ProposalStatusDraft
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	cp := *p
	r.proposals[p.ID] = &cp
	return p
}

func (r *fakeProposalRepo) get(id uuid.UUID) *models.Proposal {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *fakeProposalRepo) Create(ctx context.Context, p *models.Proposal) error {
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.put(p)
	return nil
}

func (r *fakeProposalRepo) CreateWithSigners(ctx context.Context, p *models.Proposal, signers []models.ProposalSignature) error {
	if err := r.Create(ctx, p); err != nil {
		return err
	}
	if r.signers != nil {
		for i := range signers {
			signers[i].ProposalID = p.ID
			if err := r.signers.Create(ctx, &signers[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *fakeProposalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	if p := r.get(id); p != nil {
		return p, nil
	}
	return nil, repository.ErrProposalNotFound
}

func (r *fakeProposalRepo) List(ctx context.Context, userID uuid.UUID, filter models.ProposalFilter) ([]models.Proposal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Proposal
	for _, p := range r.proposals {
		if p.UserID != userID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else {
		out = nil
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (r *fakeProposalRepo) Update(ctx context.Context, p *models.Proposal) error {
	if r.get(p.ID) == nil {
		return repository.ErrProposalNotFound
	}
	p.UpdatedAt = time.Now()
	r.put(p)
	return nil
}

func (r *fakeProposalRepo) mutate(id uuid.UUID, fn func(p *models.Proposal) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return false, repository.ErrProposalNotFound
	}
	return fn(p), nil
}

func (r *fakeProposalRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.mutate(id, func(p *models.Proposal) bool { p.Status = status; return true })
	return err
}

func (r *fakeProposalRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.mutate(id, func(p *models.Proposal) bool {
		if p.Status == models.ProposalStatusDraft {
			p.Status = models.ProposalStatusSent
		}
		p.SentAt = &at
		return true
	})
	return err
}

func (r *fakeProposalRepo) MarkViewed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.mutate(id, func(p *models.Proposal) bool {
		if p.Status != models.ProposalStatusSent {
			return false
		}
		p.Status = models.ProposalStatusViewed
		p.ViewedAt = &at
		return true
	})
}

func (r *fakeProposalRepo) MarkSigned(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.mutate(id, func(p *models.Proposal) bool {
		switch p.Status {
		case models.ProposalStatusSigned, models.ProposalStatusPaid, models.ProposalStatusDeclined, models.ProposalStatusArchived:
			return false
		}
		p.Status = models.ProposalStatusSigned
		p.SignedAt = &at
		return true
	})
}

func (r *fakeProposalRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.proposals[id]; !ok {
		return repository.ErrProposalNotFound
	}
	delete(r.proposals, id)
	return nil
}

func (r *fakeProposalRepo) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.proposals {
		if p.UserID == userID && p.Status != models.ProposalStatusArchived {
			n++
		}
	}
	return n, nil
}

func (r *fakeProposalRepo) StatusSummary(ctx context.Context, userID uuid.UUID) ([]models.ProposalStatusCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byStatus := map[string]*models.ProposalStatusCount{}
	for _, p := range r.proposals {
		if p.UserID != userID {
			continue
		}
		row, ok := byStatus[p.Status]
		if !ok {
			row = &models.ProposalStatusCount{Status: p.Status}
			byStatus[p.Status] = row
		}
		row.Count++
		row.Amount += p.TotalAmount
	}
	var out []models.ProposalStatusCount
	for _, row := range byStatus {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

// fakeSignatureRepo хранит подписантов в памяти.
type fakeSignatureRepo struct {
	mu      sync.Mutex
	signers map[uuid.UUID]*models.ProposalSignature
	order   []uuid.UUID
}

func newFakeSignatureRepo() *fakeSignatureRepo {
	return &fakeSignatureRepo{signers: make(map[uuid.UUID]*models.ProposalSignature)}
}

func (r *fakeSignatureRepo) Create(ctx context.Context, s *models.ProposalSignature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	for _, sg := range r.signers {
		if sg.ProposalID == s.ProposalID && sg.SortOrder >= s.SortOrder {
			s.SortOrder = sg.SortOrder + 1
		}
	}
	cp := *s
	r.signers[s.ID] = &cp
	r.order = append(r.order, s.ID)
	return nil
}

func (r *fakeSignatureRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ProposalSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.signers[id]
	if !ok {
		return nil, repository.ErrSignerNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSignatureRepo) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.ProposalSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ProposalSignature
	for _, id := range r.order {
		if s, ok := r.signers[id]; ok && s.ProposalID == proposalID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSignatureRepo) Sign(ctx context.Context, s *models.ProposalSignature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.signers[s.ID]
	if !ok || stored.SignedAt != nil {
		return repository.ErrSignerAlreadySigned
	}
	cp := *s
	r.signers[s.ID] = &cp
	return nil
}

func (r *fakeSignatureRepo) CountPending(ctx context.Context, proposalID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.signers {
		if s.ProposalID == proposalID && s.SignedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *fakeSignatureRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.signers[id]
	if !ok || s.SignedAt != nil {
		return repository.ErrSignerAlreadySigned
	}
	delete(r.signers, id)
	return nil
}

// fakeShareRepo хранит ссылки в памяти.
type fakeShareRepo struct {
	mu     sync.Mutex
	shares map[uuid.UUID]*models.SecureShare
}

func newFakeShareRepo() *fakeShareRepo {
	return &fakeShareRepo{shares: make(map[uuid.UUID]*models.SecureShare)}
}

func (r *fakeShareRepo) Create(ctx context.Context, s *models.SecureShare) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New()
	s.IsActive = true
	s.CreatedAt = time.Now()
	cp := *s
	r.shares[s.ID] = &cp
	return nil
}

func (r *fakeShareRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SecureShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[id]
	if !ok {
		return nil, repository.ErrShareNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeShareRepo) GetByToken(ctx context.Context, token string) (*models.SecureShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shares {
		if s.Token == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrShareNotFound
}

func (r *fakeShareRepo) GetActiveForProposal(ctx context.Context, proposalID uuid.UUID) (*models.SecureShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, s := range r.shares {
		if s.ProposalID == proposalID && s.IsActive && !s.IsExpired(now) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrShareNotFound
}

func (r *fakeShareRepo) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.SecureShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.SecureShare{}
	for _, s := range r.shares {
		if s.ProposalID == proposalID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeShareRepo) update(id uuid.UUID, fn func(s *models.SecureShare)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shares[id]
	if !ok {
		return repository.ErrShareNotFound
	}
	fn(s)
	return nil
}

func (r *fakeShareRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(s *models.SecureShare) { s.IsActive = false })
}

func (r *fakeShareRepo) Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	return r.update(id, func(s *models.SecureShare) { s.ExpiresAt = expiresAt })
}

func (r *fakeShareRepo) RecordAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(s *models.SecureShare) {
		s.AccessCount++
		s.LastAccessedAt = &at
	})
}

// fakeEvents собирает события аналитики.
type fakeEvents struct {
	mu     sync.Mutex
	events []models.ProposalAnalyticsEvent
}

func (f *fakeEvents) Record(ctx context.Context, e *models.ProposalAnalyticsEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.New()
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeEvents) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// recordingHub запоминает события для владельца.
type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHub) has(event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e == event {
			return true
		}
	}
	return false
}

// recordingDispatcher запоминает исходящие события.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, userID uuid.UUID, event string, data any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) has(event string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.events {
		if e == event {
			return true
		}
	}
	return false
}

// fakeSubscriptions отвечает на проверку тарифа фиксированным значением.
type fakeSubscriptions bool

func (f fakeSubscriptions) HasActiveSubscription(ctx context.Context, userID uuid.UUID) (bool, error) {
	return bool(f), nil
}

// fakeBlobs хранилище файлов в памяти.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Save(ctx context.Context, ownerID uuid.UUID, originalName string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := ownerID.String() + "/" + uuid.NewString() + "-" + originalName
	b.objects[key] = data
	return key, int64(len(data)), nil
}

func (b *fakeBlobs) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *fakeBlobs) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// fakeProfiles отдаёт владельца предложения.
type fakeProfiles struct {
	users    map[uuid.UUID]*models.User
	profiles map[uuid.UUID]*models.Profile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{users: map[uuid.UUID]*models.User{}, profiles: map[uuid.UUID]*models.Profile{}}
}

func (f *fakeProfiles) addUser(email, displayName string) uuid.UUID {
	id := uuid.New()
	f.users[id] = &models.User{ID: id, Email: email, Username: strings.Split(email, "@")[0], IsActive: true}
	f.profiles[id] = &models.Profile{UserID: id, DisplayName: displayName, DefaultCurrency: "USD"}
	return id
}

func (f *fakeProfiles) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrUserNotFound
}

// mockMailer mock почтового клиента.
type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
