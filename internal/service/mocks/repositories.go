package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/SergeiKhy/shortify/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing.
// It enforces the same two unique constraints as the links table.
type MockLinkRepository struct {
	mu          sync.RWMutex
	byCode      map[string]*models.Link
	byURL       map[string]*models.Link
	byID        map[int64]*models.Link
	nextID      int64
	createCalls int

	// CreateHook runs before every insert; a non-nil error is returned from Create as is
	CreateHook func(link *models.Link) error
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		byCode: make(map[string]*models.Link),
		byURL:  make(map[string]*models.Link),
		byID:   make(map[int64]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	m.createCalls++
	hook := m.CreateHook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(link); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(link)
}

// Add stores a link directly, bypassing CreateHook
func (m *MockLinkRepository) Add(link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(link)
}

func (m *MockLinkRepository) insert(link *models.Link) error {
	if _, exists := m.byCode[link.ShortCode]; exists {
		return repository.ErrShortCodeExists
	}
	if _, exists := m.byURL[link.OriginalURL]; exists {
		return repository.ErrOriginalURLExists
	}

	link.ID = m.nextID
	m.nextID++
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	stored := *link
	m.byCode[stored.ShortCode] = &stored
	m.byURL[stored.OriginalURL] = &stored
	m.byID[stored.ID] = &stored
	return nil
}

func (m *MockLinkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.byCode[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) GetByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.byURL[originalURL]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.byCode[code]
	if !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.byCode, link.ShortCode)
	delete(m.byURL, link.OriginalURL)
	delete(m.byID, link.ID)
	return nil
}

func (m *MockLinkRepository) List(ctx context.Context, filter models.LinkFilter) ([]models.Link, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	matched := make([]models.Link, 0, len(m.byID))
	for _, link := range m.byID {
		if search != "" &&
			!strings.Contains(strings.ToLower(link.OriginalURL), search) &&
			!strings.Contains(strings.ToLower(link.ShortCode), search) {
			continue
		}
		if filter.CreatedFrom != nil && link.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && link.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		if filter.MinClicks != nil && link.ClicksCount < *filter.MinClicks {
			continue
		}
		matched = append(matched, *link)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch filter.Sort {
		case models.SortCreatedAsc:
			return a.ID < b.ID
		case models.SortClicksDesc:
			if a.ClicksCount != b.ClicksCount {
				return a.ClicksCount > b.ClicksCount
			}
			return a.ID > b.ID
		case models.SortClicksAsc:
			if a.ClicksCount != b.ClicksCount {
				return a.ClicksCount < b.ClicksCount
			}
			return a.ID < b.ID
		default:
			return a.ID > b.ID
		}
	})

	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

// CreateCalls returns how many times Create was called
func (m *MockLinkRepository) CreateCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.createCalls
}

// Count returns the number of stored links
func (m *MockLinkRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *MockLinkRepository) exists(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok
}

func (m *MockLinkRepository) incrementClicks(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.byID[id]
	if !ok {
		return false
	}
	link.ClicksCount++
	return true
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu         sync.RWMutex
	cache      map[string]models.Link
	tombstones map[string]bool

	// Err, when set, is returned from every call to simulate Redis being down
	Err error
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache:      make(map[string]models.Link),
		tombstones: make(map[string]bool),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	link, exists := m.cache[code]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	return &link, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.cache[link.ShortCode] = *link
	delete(m.tombstones, link.ShortCode)
	return nil
}

// SetIfAbsent leaves existing entries and deletion markers untouched
func (m *MockCacheRepository) SetIfAbsent(ctx context.Context, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.cache[link.ShortCode]; ok || m.tombstones[link.ShortCode] {
		return nil
	}
	m.cache[link.ShortCode] = *link
	return nil
}

// Delete replaces the entry with a deletion marker
func (m *MockCacheRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	delete(m.cache, code)
	m.tombstones[code] = true
	return nil
}

// Has reports whether code is currently cached
func (m *MockCacheRepository) Has(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cache[code]
	return ok
}

// MockClickRepository implements repository.ClickRepository for testing.
// RecordClick increments the counter in the linked MockLinkRepository.
type MockClickRepository struct {
	mu     sync.RWMutex
	links  *MockLinkRepository
	clicks []models.Click
	nextID int64

	// RecordHook runs before every insert; a non-nil error fails RecordClick
	RecordHook func(click *models.Click) error
}

func NewMockClickRepository(links *MockLinkRepository) *MockClickRepository {
	return &MockClickRepository{
		links:  links,
		nextID: 1,
	}
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	m.mu.RLock()
	hook := m.RecordHook
	m.mu.RUnlock()

	if hook != nil {
		if err := hook(click); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.links.incrementClicks(click.LinkID) {
		return repository.ErrLinkNotFound
	}

	click.ID = m.nextID
	m.nextID++
	click.ClickedAt = time.Now()
	m.clicks = append(m.clicks, *click)
	return nil
}

func (m *MockClickRepository) match(click models.Click, filter models.ClickFilter) bool {
	if filter.LinkID != nil && click.LinkID != *filter.LinkID {
		return false
	}
	if filter.ClickedFrom != nil && click.ClickedAt.Before(*filter.ClickedFrom) {
		return false
	}
	if filter.ClickedTo != nil && click.ClickedAt.After(*filter.ClickedTo) {
		return false
	}
	if filter.ParamKey != "" {
		value, ok := click.QueryParams[filter.ParamKey]
		if !ok || (filter.ParamValue != "" && value != filter.ParamValue) {
			return false
		}
	}
	return m.links.exists(click.LinkID)
}

func (m *MockClickRepository) List(ctx context.Context, filter models.ClickFilter) ([]models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultPageSize
	}

	result := make([]models.Click, 0, limit)
	for i := len(m.clicks) - 1; i >= 0 && len(result) < limit; i-- {
		if m.match(m.clicks[i], filter) {
			result = append(result, m.clicks[i])
		}
	}
	return result, nil
}

func (m *MockClickRepository) Count(ctx context.Context, filter models.ClickFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, click := range m.clicks {
		if m.match(click, filter) {
			total++
		}
	}
	return total, nil
}

func (m *MockClickRepository) GetStats(ctx context.Context, linkID int64) (*models.ClickStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.ClickStats{}
	uniqueIPs := make(map[string]struct{})
	for _, click := range m.clicks {
		if click.LinkID != linkID {
			continue
		}
		stats.TotalClicks++
		if click.IPAddress != "" {
			uniqueIPs[click.IPAddress] = struct{}{}
		}
	}
	stats.UniqueClicks = int64(len(uniqueIPs))
	return stats, nil
}

func (m *MockClickRepository) GetDailyStats(ctx context.Context, linkID int64, days int) ([]models.DailyClickStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	since := time.Now().AddDate(0, 0, -days)
	perDay := make(map[string]int64)
	for _, click := range m.clicks {
		if click.LinkID == linkID && click.ClickedAt.After(since) {
			perDay[click.ClickedAt.Format(time.DateOnly)]++
		}
	}

	stats := make([]models.DailyClickStats, 0, len(perDay))
	for date, clicks := range perDay {
		stats = append(stats, models.DailyClickStats{Date: date, Clicks: clicks})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date > stats[j].Date })
	return stats, nil
}

// Clicks returns a snapshot of all recorded clicks
func (m *MockClickRepository) Clicks() []models.Click {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Click(nil), m.clicks...)
}
