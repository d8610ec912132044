package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SergeiKhy/shortify/internal/metrics"
	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/SergeiKhy/shortify/internal/repository"
	"github.com/SergeiKhy/shortify/internal/shortcode"
	"go.uber.org/zap"
)

// Константы сервиса
const (
	defaultCacheTTL       = 24 * time.Hour
	maxAllocationAttempts = 10
)

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	// Resolve ищет ссылку по короткому коду; ErrLinkNotFound, если такой нет
	Resolve(ctx context.Context, code string) (*models.Link, error)
	// CreateOrGet возвращает ссылку для URL, создавая её при первом обращении
	CreateOrGet(ctx context.Context, originalURL string) (*models.Link, error)
	DeleteLink(ctx context.Context, code string) error
	ListLinks(ctx context.Context, filter models.LinkFilter, page, pageSize int) (*models.LinkPage, error)
}

// LinkServiceOption настраивает linkService
type LinkServiceOption func(*linkService)

// WithCodeGenerator подменяет генератор кодов (используется в тестах коллизий)
func WithCodeGenerator(generate func() (string, error)) LinkServiceOption {
	return func(s *linkService) {
		s.generateCode = generate
	}
}

// WithCacheTTL задаёт время жизни ссылки в кэше
func WithCacheTTL(ttl time.Duration) LinkServiceOption {
	return func(s *linkService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo     repository.LinkRepository
	cacheRepo    repository.CacheRepository
	logger       *zap.Logger
	generateCode func() (string, error)
	cacheTTL     time.Duration
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	logger *zap.Logger,
	opts ...LinkServiceOption,
) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &linkService{
		linkRepo:     linkRepo,
		cacheRepo:    cacheRepo,
		logger:       logger,
		generateCode: shortcode.Generate,
		cacheTTL:     defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve получает ссылку по короткому коду (сначала из кэша, затем из БД)
func (s *linkService) Resolve(ctx context.Context, code string) (*models.Link, error) {
	// Такой код не мог быть выдан, в БД не идём
	if !shortcode.Valid(code) {
		return nil, ErrLinkNotFound
	}

	link, err := s.cacheRepo.Get(ctx, code)
	if err == nil {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return link, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Debug("Cache read failed", zap.String("short_code", code), zap.Error(err))
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	link, err = s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// Строку могли удалить сразу после чтения: маркер удаления в кэше не перезаписываем
	if err := s.cacheRepo.SetIfAbsent(ctx, link, s.cacheTTL); err != nil {
		s.logger.Debug("Failed to cache link", zap.String("short_code", link.ShortCode), zap.Error(err))
	}
	return link, nil
}

// attemptOutcome результат одной попытки вставки с новым кодом
type attemptOutcome int

const (
	attemptCreated   attemptOutcome = iota
	attemptCollision                // код уже занят, пробуем другой
	attemptRaced                    // тот же URL только что вставил другой запрос
	attemptFailed
)

// CreateOrGet создаёт короткую ссылку или возвращает существующую для того же URL
func (s *linkService) CreateOrGet(ctx context.Context, originalURL string) (*models.Link, error) {
	originalURL = strings.TrimSpace(originalURL)

	if err := ValidateURL(originalURL); err != nil {
		s.logger.Info("URL rejected", zap.String("url", truncate(originalURL)), zap.Error(err))
		return nil, err
	}

	// Дедупликация: повторная отправка того же URL возвращает прежний код
	existing, err := s.linkRepo.GetByOriginalURL(ctx, originalURL)
	if err == nil {
		metrics.LinksDeduplicated.Inc()
		s.logger.Info("Returning existing short link",
			zap.String("short_code", existing.ShortCode),
			zap.String("url", truncate(originalURL)),
		)
		return existing, nil
	}
	if !errors.Is(err, repository.ErrLinkNotFound) {
		return nil, fmt.Errorf("failed to look up link: %w", err)
	}

	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		link, outcome, err := s.tryCreate(ctx, originalURL)

		switch outcome {
		case attemptCreated:
			metrics.LinksCreated.Inc()
			s.logger.Info("Created short link",
				zap.String("short_code", link.ShortCode),
				zap.String("url", truncate(originalURL)),
				zap.Int("attempt", attempt),
			)
			s.cache(ctx, link)
			return link, nil

		case attemptCollision:
			metrics.CodeCollisions.Inc()
			s.logger.Warn("Short code collision", zap.Int("attempt", attempt), zap.Error(err))

		case attemptRaced:
			return s.fetchRaced(ctx, originalURL)

		default:
			return nil, err
		}
	}

	metrics.AllocationExhausted.Inc()
	s.logger.Error("Short code space exhausted",
		zap.Int("attempts", maxAllocationAttempts),
		zap.String("url", truncate(originalURL)),
	)
	return nil, fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, maxAllocationAttempts)
}

// tryCreate выполняет одну попытку вставки со свежим случайным кодом
func (s *linkService) tryCreate(ctx context.Context, originalURL string) (*models.Link, attemptOutcome, error) {
	code, err := s.generateCode()
	if err != nil {
		return nil, attemptFailed, fmt.Errorf("failed to generate code: %w", err)
	}

	link := &models.Link{
		ShortCode:   code,
		OriginalURL: originalURL,
	}

	err = s.linkRepo.Create(ctx, link)
	switch {
	case err == nil:
		return link, attemptCreated, nil
	case errors.Is(err, repository.ErrShortCodeExists):
		return nil, attemptCollision, fmt.Errorf("code %s: %w", code, err)
	case errors.Is(err, repository.ErrOriginalURLExists):
		return nil, attemptRaced, err
	default:
		return nil, attemptFailed, err
	}
}

// fetchRaced возвращает строку, которую вставил конкурирующий запрос
func (s *linkService) fetchRaced(ctx context.Context, originalURL string) (*models.Link, error) {
	link, err := s.linkRepo.GetByOriginalURL(ctx, originalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch concurrently created link: %w", err)
	}

	metrics.LinksDeduplicated.Inc()
	s.logger.Info("Concurrent create resolved to existing link", zap.String("short_code", link.ShortCode))
	return link, nil
}

// DeleteLink удаляет ссылку по короткому коду вместе с её кликами
func (s *linkService) DeleteLink(ctx context.Context, code string) error {
	if err := s.linkRepo.Delete(ctx, code); err != nil {
		return err
	}

	// Кэш помечаем только после удаления строки из БД
	if err := s.cacheRepo.Delete(ctx, code); err != nil {
		s.logger.Warn("Failed to invalidate cached link", zap.String("short_code", code), zap.Error(err))
	}

	s.logger.Info("Deleted short link", zap.String("short_code", code))
	return nil
}

// ListLinks возвращает страницу ссылок; page начинается с 1
func (s *linkService) ListLinks(ctx context.Context, filter models.LinkFilter, page, pageSize int) (*models.LinkPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = models.DefaultPageSize
	}
	if pageSize > models.MaxPageSize {
		pageSize = models.MaxPageSize
	}

	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	links, total, err := s.linkRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &models.LinkPage{
		Links:    links,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// cache кладёт ссылку в кэш; ошибка кэша не прерывает запрос
func (s *linkService) cache(ctx context.Context, link *models.Link) {
	if err := s.cacheRepo.Set(ctx, link, s.cacheTTL); err != nil {
		s.logger.Debug("Failed to cache link", zap.String("short_code", link.ShortCode), zap.Error(err))
	}
}

// truncate укорачивает URL для логов
func truncate(s string) string {
	return truncateBytes(s, 50)
}

// truncateBytes обрезает s до maxLen байт, не разрывая руну
func truncateBytes(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
