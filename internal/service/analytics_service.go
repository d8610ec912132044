package service

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/SergeiKhy/shortify/internal/repository"
	"go.uber.org/zap"
)

const (
	dashboardTopLinks     = 10
	dashboardRecentClicks = 50

	DefaultStatsDays = 7
	MaxStatsDays     = 90
)

// AnalyticsService только читает ссылки и клики: списки, статистика, дашборд
type AnalyticsService interface {
	Dashboard(ctx context.Context, filter models.DashboardFilter) (*models.DashboardStats, error)
	Clicks(ctx context.Context, code string, filter models.ClickFilter) ([]models.Click, error)
	Stats(ctx context.Context, code string) (*models.ClickStats, error)
	// DailyStats клики по дням за последние days дней (вне диапазона 1..90 берётся 7)
	DailyStats(ctx context.Context, code string, days int) ([]models.DailyClickStats, error)
}

type analyticsService struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.ClickRepository
	logger    *zap.Logger
}

func NewAnalyticsService(linkRepo repository.LinkRepository, clickRepo repository.ClickRepository, logger *zap.Logger) AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &analyticsService{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		logger:    logger,
	}
}

func (s *analyticsService) Dashboard(ctx context.Context, filter models.DashboardFilter) (*models.DashboardStats, error) {
	topLinks, totalLinks, err := s.linkRepo.List(ctx, models.LinkFilter{
		MinClicks: filter.MinClicks,
		Sort:      models.SortClicksDesc,
		Limit:     dashboardTopLinks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load top links: %w", err)
	}

	clickFilter := models.ClickFilter{
		ClickedFrom: filter.ClickedFrom,
		ClickedTo:   filter.ClickedTo,
		ParamKey:    filter.ParamKey,
		ParamValue:  filter.ParamValue,
		Limit:       dashboardRecentClicks,
	}

	totalClicks, err := s.clickRepo.Count(ctx, clickFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}

	recent, err := s.clickRepo.List(ctx, clickFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent clicks: %w", err)
	}

	return &models.DashboardStats{
		TotalLinks:   totalLinks,
		TotalClicks:  totalClicks,
		TopLinks:     topLinks,
		RecentClicks: recent,
	}, nil
}

func (s *analyticsService) Clicks(ctx context.Context, code string, filter models.ClickFilter) ([]models.Click, error) {
	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	filter.LinkID = &link.ID
	if filter.Limit <= 0 {
		filter.Limit = models.DefaultPageSize
	}
	if filter.Limit > models.MaxPageSize {
		filter.Limit = models.MaxPageSize
	}

	return s.clickRepo.List(ctx, filter)
}

func (s *analyticsService) Stats(ctx context.Context, code string) (*models.ClickStats, error) {
	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	stats, err := s.clickRepo.GetStats(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	stats.ShortCode = link.ShortCode

	return stats, nil
}

func (s *analyticsService) DailyStats(ctx context.Context, code string, days int) ([]models.DailyClickStats, error) {
	if days < 1 || days > MaxStatsDays {
		days = DefaultStatsDays
	}

	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Loading daily stats", zap.String("short_code", code), zap.Int("days", days))
	return s.clickRepo.GetDailyStats(ctx, link.ID, days)
}
