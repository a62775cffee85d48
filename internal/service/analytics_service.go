package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
)

const (
	summaryWindow     = 30 * 24 * time.Hour
	dashboardCacheTTL = time.Minute
	recentNotifyLimit = 5
)

// AnalyticsRepository описывает хранилище событий аналитики.
type AnalyticsRepository interface {
	Record(ctx context.Context, e *models.ProposalAnalyticsEvent) error
	Summary(ctx context.Context, proposalID uuid.UUID, since time.Time) (*models.AnalyticsSummary, error)
}

// StatusSummarizer считает предложения по статусам.
type StatusSummarizer interface {
	ProposalReader
	StatusSummary(ctx context.Context, userID uuid.UUID) ([]models.ProposalStatusCount, error)
}

// NotificationLister возвращает последние уведомления.
type NotificationLister interface {
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
}

// AnalyticsService отдаёт статистику по предложениям и дашборд.
type AnalyticsService struct {
	repo          AnalyticsRepository
	proposals     StatusSummarizer
	notifications NotificationLister
	cache         *CacheService
	now           func() time.Time
}

// NewAnalyticsService создаёт сервис аналитики.
func NewAnalyticsService(repo AnalyticsRepository, proposals StatusSummarizer, notifications NotificationLister, cache *CacheService) *AnalyticsService {
	return &AnalyticsService{
		repo:          repo,
		proposals:     proposals,
		notifications: notifications,
		cache:         cache,
		now:           time.Now,
	}
}

// Record сохраняет событие. Реализует EventRecorder.
func (s *AnalyticsService) Record(ctx context.Context, e *models.ProposalAnalyticsEvent) error {
	return s.repo.Record(ctx, e)
}

// ProposalSummary возвращает статистику предложения владельцу.
func (s *AnalyticsService) ProposalSummary(ctx context.Context, proposalID, userID uuid.UUID) (*models.AnalyticsSummary, error) {
	if _, err := loadOwnedProposal(ctx, s.proposals, proposalID, userID); err != nil {
		return nil, err
	}

	since := s.now().Add(-summaryWindow).Truncate(24 * time.Hour)
	summary, err := s.repo.Summary(ctx, proposalID, since)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return summary, nil
}

// Dashboard возвращает сводку пользователя, результат кэшируется на минуту.
func (s *AnalyticsService) Dashboard(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error) {
	if s.cache == nil {
		return s.buildDashboard(ctx, userID)
	}

	value, err := s.cache.GetOrSet(ctx, DashboardCacheKey(userID), dashboardCacheTTL, func() (any, error) {
		return s.buildDashboard(ctx, userID)
	})
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.Internal(err)
	}

	dashboard, ok := value.(*models.Dashboard)
	if !ok {
		s.cache.Delete(DashboardCacheKey(userID))
		return s.buildDashboard(ctx, userID)
	}
	return dashboard, nil
}

func (s *AnalyticsService) buildDashboard(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error) {
	statuses, err := s.proposals.StatusSummary(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	d := &models.Dashboard{Statuses: statuses}
	if d.Statuses == nil {
		d.Statuses = []models.ProposalStatusCount{}
	}

	for _, row := range statuses {
		d.TotalProposals += row.Count
		switch row.Status {
		case models.ProposalStatusSent, models.ProposalStatusViewed:
			d.PipelineValue += row.Amount
		case models.ProposalStatusSigned:
			d.SignedValue += row.Amount
		case models.ProposalStatusPaid:
			d.PaidValue += row.Amount
		}
	}

	d.RecentNotifications = []models.Notification{}
	if s.notifications != nil {
		recent, err := s.notifications.List(ctx, userID, recentNotifyLimit, 0, false)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		if recent != nil {
			d.RecentNotifications = recent
		}
	}

	return d, nil
}
