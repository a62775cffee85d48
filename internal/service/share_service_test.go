package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-studio/internal/content"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
)

type shareFixture struct {
	svc       *ShareService
	repo      *fakeShareRepo
	proposals *fakeProposalRepo
	events    *fakeEvents
	hub       *recordingHub
	owner     uuid.UUID
	now       time.Time
}

func newShareFixture() *shareFixture {
	repo := newFakeShareRepo()
	proposals := newFakeProposalRepo()
	events := &fakeEvents{}
	svc := NewShareService(repo, proposals, newFakeSignatureRepo(), nil, nil, events, testShareTTL, 4*testShareTTL)
	hub := &recordingHub{}
	svc.SetHub(hub)

	f := &shareFixture{
		svc:       svc,
		repo:      repo,
		proposals: proposals,
		events:    events,
		hub:       hub,
		owner:     uuid.New(),
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return f.now }
	return f
}

func (f *shareFixture) sentProposal() *models.Proposal {
	return f.proposals.put(&models.Proposal{UserID: f.owner, Title: "Сайт", Status: models.ProposalStatusSent})
}

func TestShareService_CreateAppliesDefaultAndMaxTTL(t *testing.T) {
	f := newShareFixture()
	p := f.sentProposal()
	ctx := context.Background()

	share, err := f.svc.Create(ctx, p.ID, f.owner, 0)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(testShareTTL), share.ExpiresAt)
	assert.NotEmpty(t, share.Token)
	assert.True(t, share.IsActive)

	long, err := f.svc.Create(ctx, p.ID, f.owner, 365*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(4*testShareTTL), long.ExpiresAt)
	assert.NotEqual(t, share.Token, long.Token)
}

func TestShareService_CreateForeignProposal(t *testing.T) {
	f := newShareFixture()
	p := f.sentProposal()

	_, err := f.svc.Create(context.Background(), p.ID, uuid.New(), 0)
	assert.True(t, errors.Is(err, apperror.ErrProposalNotFound))
}

func TestShareService_ResolveExpired(t *testing.T) {
	f := newShareFixture()
	p := f.sentProposal()
	ctx := context.Background()

	share, err := f.svc.Create(ctx, p.ID, f.owner, time.Hour)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.svc.Resolve(ctx, share.Token, ViewerMeta{})
	assert.True(t, errors.Is(err, apperror.ErrShareExpired))
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeGone))
}

func TestShareService_ResolveRevokedAndUnknown(t *testing.T) {
	f := newShareFixture()
	p := f.sentProposal()
	ctx := context.Background()

	share, err := f.svc.Create(ctx, p.ID, f.owner, 0)
	require.NoError(t, err)
	require.NoError(t, f.svc.Revoke(ctx, share.ID, f.owner))

	_, err = f.svc.Resolve(ctx, share.Token, ViewerMeta{})
	assert.True(t, errors.Is(err, apperror.ErrShareNotFound))

	_, err = f.svc.Resolve(ctx, "unknown-token", ViewerMeta{})
	assert.True(t, errors.Is(err, apperror.ErrShareNotFound))

	_, err = f.svc.Resolve(ctx, "  ", ViewerMeta{})
	assert.True(t, errors.Is(err, apperror.ErrShareNotFound))
}

func TestShareService_ResolveMarksViewedOnce(t *testing.T) {
	f := newShareFixture()
	p := f.sentProposal()
	ctx := context.Background()

	share, err := f.svc.Create(ctx, p.ID, f.owner, 0)
	require.NoError(t, err)

	shared, err := f.svc.Resolve(ctx, share.Token, ViewerMeta{IP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusViewed, shared.Proposal.Status)
	assert.Equal(t, 1, shared.Share.AccessCount)
	assert.True(t, f.hub.has(models.WSEventProposalViewed))

	_, err = f.svc.Resolve(ctx, share.Token, ViewerMeta{})
	require.NoError(t, err)

	stored, err := f.repo.GetByID(ctx, share.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.AccessCount)
	assert.Equal(t, 2, f.events.count(models.AnalyticsEventView))
	assert.Equal(t, models.ProposalStatusViewed, f.proposals.get(p.ID).Status)
}

func TestShareService_ResolveKeepsSignedStatus(t *testing.T) {
	f := newShareFixture()
	p := f.proposals.put(&models.Proposal{UserID: f.owner, Title: "Подписано", Status: models.ProposalStatusSigned})
	ctx := context.Background()

	share, err := f.svc.Create(ctx, p.ID, f.owner, 0)
	require.NoError(t, err)

	shared, err := f.svc.Resolve(ctx, share.Token, ViewerMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusSigned, shared.Proposal.Status)
	assert.False(t, f.hub.has(models.WSEventProposalViewed))
}

func TestShareService_LookupDoesNotCountViews(t *testing.T) {
	f := newShareFixture()
	p := f.sentProposal()
	ctx := context.Background()

	share, err := f.svc.Create(ctx, p.ID, f.owner, 0)
	require.NoError(t, err)

	_, err = f.svc.Lookup(ctx, share.Token)
	require.NoError(t, err)

	stored, err := f.repo.GetByID(ctx, share.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AccessCount)
	assert.Equal(t, models.ProposalStatusSent, f.proposals.get(p.ID).Status)
}

func TestShareService_ExportCountsViewAndDownload(t *testing.T) {
	f := newShareFixture()
	renderer, err := content.NewRenderer()
	require.NoError(t, err)
	f.svc.documents = NewDocumentBuilder(renderer, nil, nil, nil, nil)
	p := f.sentProposal()
	ctx := context.Background()

	share, err := f.svc.Create(ctx, p.ID, f.owner, 0)
	require.NoError(t, err)

	html, filename, err := f.svc.Export(ctx, share.Token, ViewerMeta{IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.Contains(t, html, "Сайт")
	assert.Contains(t, filename, ".html")

	stored, err := f.repo.GetByID(ctx, share.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AccessCount)
	assert.Equal(t, 1, f.events.count(models.AnalyticsEventView))
	assert.Equal(t, 1, f.events.count(models.AnalyticsEventDownload))
	assert.Equal(t, models.ProposalStatusViewed, f.proposals.get(p.ID).Status)
}

func TestShareService_ExtendFromNow(t *testing.T) {
	f := newShareFixture()
	p := f.sentProposal()
	ctx := context.Background()

	share, err := f.svc.Create(ctx, p.ID, f.owner, time.Hour)
	require.NoError(t, err)

	f.now = f.now.Add(3 * time.Hour)
	extended, err := f.svc.Extend(ctx, share.ID, f.owner, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(48*time.Hour), extended.ExpiresAt)

	_, err = f.svc.Resolve(ctx, share.Token, ViewerMeta{})
	assert.NoError(t, err)

	_, err = f.svc.Extend(ctx, share.ID, uuid.New(), time.Hour)
	assert.True(t, errors.Is(err, apperror.ErrShareNotFound))
}

func TestShareService_TrackEventValidation(t *testing.T) {
	f := newShareFixture()
	p := f.sentProposal()
	ctx := context.Background()

	share, err := f.svc.Create(ctx, p.ID, f.owner, 0)
	require.NoError(t, err)

	err = f.svc.TrackEvent(ctx, share.Token, TrackEventInput{EventType: "sign"}, ViewerMeta{})
	assert.True(t, apperror.IsValidation(err))

	err = f.svc.TrackEvent(ctx, share.Token, TrackEventInput{EventType: models.AnalyticsEventSectionView}, ViewerMeta{})
	assert.True(t, apperror.IsValidation(err))

	zero := 0
	err = f.svc.TrackEvent(ctx, share.Token, TrackEventInput{
		EventType:       models.AnalyticsEventTimeSpent,
		DurationSeconds: &zero,
	}, ViewerMeta{})
	assert.True(t, apperror.IsValidation(err))

	section := "pricing"
	err = f.svc.TrackEvent(ctx, share.Token, TrackEventInput{
		EventType: models.AnalyticsEventSectionView,
		Section:   &section,
	}, ViewerMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.events.count(models.AnalyticsEventSectionView))
}
