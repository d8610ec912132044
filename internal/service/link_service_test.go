package service_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/SergeiKhy/shortify/internal/repository"
	"github.com/SergeiKhy/shortify/internal/service"
	"github.com/SergeiKhy/shortify/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[a-zA-Z0-9]{6}$`)

// setupTestService создаёт тестовое окружение с моковыми репозиториями
func setupTestService(t *testing.T, opts ...service.LinkServiceOption) (service.LinkService, *mocks.MockLinkRepository, *mocks.MockCacheRepository) {
	t.Helper()
	linkRepo := mocks.NewMockLinkRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	linkService := service.NewLinkService(linkRepo, cacheRepo, zaptest.NewLogger(t), opts...)
	return linkService, linkRepo, cacheRepo
}

// sequence возвращает генератор, выдающий коды по порядку (последний повторяется)
func sequence(codes ...string) func() (string, error) {
	var (
		mu sync.Mutex
		i  int
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[min(i, len(codes)-1)]
		i++
		return code, nil
	}
}

func TestLinkService_CreateOrGet_Success(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService(t)

	link, err := linkService.CreateOrGet(context.Background(), "https://example.com/test")
	require.NoError(t, err)

	assert.Regexp(t, codePattern, link.ShortCode)
	assert.Equal(t, "https://example.com/test", link.OriginalURL)
	assert.Zero(t, link.ClicksCount)
	assert.NotZero(t, link.ID)
	assert.False(t, link.CreatedAt.IsZero())
	assert.Equal(t, 1, linkRepo.Count())
	assert.True(t, cacheRepo.Has(link.ShortCode))
}

// TestLinkService_CreateOrGet_Dedup повторная отправка того же URL не создаёт новую строку
func TestLinkService_CreateOrGet_Dedup(t *testing.T) {
	linkService, linkRepo, _ := setupTestService(t)
	ctx := context.Background()

	first, err := linkService.CreateOrGet(ctx, "https://example.com/page")
	require.NoError(t, err)

	second, err := linkService.CreateOrGet(ctx, "  https://example.com/page  ")
	require.NoError(t, err)

	assert.Equal(t, first.ShortCode, second.ShortCode)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, linkRepo.Count())
	assert.Equal(t, 1, linkRepo.CreateCalls())
}

func TestLinkService_CreateOrGet_InvalidURL(t *testing.T) {
	linkService, linkRepo, _ := setupTestService(t)

	for _, raw := range []string{"ftp://example.com", "http://localhost:8000", "not-a-url", ""} {
		link, err := linkService.CreateOrGet(context.Background(), raw)

		assert.Nil(t, link)
		assert.True(t, service.IsValidationError(err), "ожидалась ошибка валидации для %q", raw)
	}

	assert.Zero(t, linkRepo.Count())
	assert.Zero(t, linkRepo.CreateCalls())
}

// TestLinkService_CreateOrGet_CollisionRetry занятый код приводит к новой попытке со свежим кодом
func TestLinkService_CreateOrGet_CollisionRetry(t *testing.T) {
	linkService, linkRepo, _ := setupTestService(t,
		service.WithCodeGenerator(sequence("AAAAAA", "AAAAAA", "BBBBBB")),
	)
	require.NoError(t, linkRepo.Add(&models.Link{ShortCode: "AAAAAA", OriginalURL: "https://taken.example.com"}))

	link, err := linkService.CreateOrGet(context.Background(), "https://example.com/new")
	require.NoError(t, err)

	assert.Equal(t, "BBBBBB", link.ShortCode)
	assert.Equal(t, 3, linkRepo.CreateCalls())
	assert.Equal(t, 2, linkRepo.Count())
}

func TestLinkService_CreateOrGet_Exhausted(t *testing.T) {
	linkService, linkRepo, _ := setupTestService(t, service.WithCodeGenerator(sequence("AAAAAA")))
	require.NoError(t, linkRepo.Add(&models.Link{ShortCode: "AAAAAA", OriginalURL: "https://taken.example.com"}))

	link, err := linkService.CreateOrGet(context.Background(), "https://example.com/new")

	assert.Nil(t, link)
	assert.ErrorIs(t, err, service.ErrAllocationExhausted)
	assert.False(t, service.IsValidationError(err))
	assert.Equal(t, 10, linkRepo.CreateCalls())
	assert.Equal(t, 1, linkRepo.Count())
}

// TestLinkService_CreateOrGet_RaceOnOriginalURL конкурентный запрос вставил тот же URL между проверкой и вставкой
func TestLinkService_CreateOrGet_RaceOnOriginalURL(t *testing.T) {
	linkService, linkRepo, _ := setupTestService(t)

	var once sync.Once
	linkRepo.CreateHook = func(link *models.Link) error {
		once.Do(func() {
			require.NoError(t, linkRepo.Add(&models.Link{ShortCode: "RACED1", OriginalURL: link.OriginalURL}))
		})
		return nil
	}

	link, err := linkService.CreateOrGet(context.Background(), "https://example.com/raced")
	require.NoError(t, err)

	assert.Equal(t, "RACED1", link.ShortCode)
	assert.Equal(t, 1, linkRepo.Count())
	assert.Equal(t, 1, linkRepo.CreateCalls())
}

func TestLinkService_CreateOrGet_FatalError(t *testing.T) {
	linkService, linkRepo, _ := setupTestService(t)
	linkRepo.CreateHook = func(*models.Link) error {
		return errors.New("connection reset by peer")
	}

	link, err := linkService.CreateOrGet(context.Background(), "https://example.com/x")

	assert.Nil(t, link)
	assert.ErrorContains(t, err, "connection reset by peer")
	assert.NotErrorIs(t, err, service.ErrAllocationExhausted)
	assert.Equal(t, 1, linkRepo.CreateCalls())
}

func TestLinkService_CreateOrGet_GeneratorError(t *testing.T) {
	linkService, linkRepo, _ := setupTestService(t, service.WithCodeGenerator(func() (string, error) {
		return "", errors.New("entropy unavailable")
	}))

	_, err := linkService.CreateOrGet(context.Background(), "https://example.com/x")

	assert.ErrorContains(t, err, "entropy unavailable")
	assert.Zero(t, linkRepo.CreateCalls())
}

// TestLinkService_CreateOrGet_Concurrent параллельные запросы с одним URL получают одну ссылку
func TestLinkService_CreateOrGet_Concurrent(t *testing.T) {
	linkService, linkRepo, _ := setupTestService(t)
	const workers = 20

	codes := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link, err := linkService.CreateOrGet(context.Background(), "https://example.com/hot")
			if assert.NoError(t, err) {
				codes[i] = link.ShortCode
			}
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, codes[0], code)
	}
	assert.Equal(t, 1, linkRepo.Count())
}

func TestLinkService_CreateOrGet_ManyDistinct(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}

	linkRepo := mocks.NewMockLinkRepository()
	linkService := service.NewLinkService(linkRepo, mocks.NewMockCacheRepository(), zap.NewNop())
	faker := gofakeit.New(42)
	ctx := context.Background()

	const total = 10000
	seen := make(map[string]struct{}, total)
	for i := 0; i < total; i++ {
		link, err := linkService.CreateOrGet(ctx, fmt.Sprintf("https://%s/%d", faker.DomainName(), i))
		require.NoError(t, err)
		seen[link.ShortCode] = struct{}{}
	}

	assert.Len(t, seen, total)
	assert.Equal(t, total, linkRepo.Count())
}

func TestLinkService_Resolve(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService(t)
	stored := &models.Link{ShortCode: "abc123", OriginalURL: "https://example.com/resolve"}
	require.NoError(t, linkRepo.Add(stored))

	link, err := linkService.Resolve(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, stored.ID, link.ID)
	assert.Equal(t, "https://example.com/resolve", link.OriginalURL)
	assert.True(t, cacheRepo.Has("abc123"))

	// Вторая выборка из кэша, даже если строки в БД уже нет
	require.NoError(t, linkRepo.Delete(context.Background(), "abc123"))
	cached, err := linkService.Resolve(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, link.OriginalURL, cached.OriginalURL)
}

func TestLinkService_Resolve_NotFound(t *testing.T) {
	linkService, _, _ := setupTestService(t)

	for _, code := range []string{"zzzzzz", "short", "has-dash", "toolong1", ""} {
		link, err := linkService.Resolve(context.Background(), code)

		assert.Nil(t, link)
		assert.ErrorIs(t, err, service.ErrLinkNotFound, "code %q", code)
	}
}

// TestLinkService_Resolve_CacheDown недоступный кэш не мешает чтению из БД
func TestLinkService_Resolve_CacheDown(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService(t)
	require.NoError(t, linkRepo.Add(&models.Link{ShortCode: "abc123", OriginalURL: "https://example.com"}))
	cacheRepo.Err = errors.New("redis: connection refused")

	link, err := linkService.Resolve(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.OriginalURL)
}

func TestLinkService_DeleteLink(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService(t)
	ctx := context.Background()

	link, err := linkService.CreateOrGet(ctx, "https://example.com/delete")
	require.NoError(t, err)
	require.True(t, cacheRepo.Has(link.ShortCode))

	require.NoError(t, linkService.DeleteLink(ctx, link.ShortCode))

	assert.False(t, cacheRepo.Has(link.ShortCode))
	_, err = linkRepo.GetByShortCode(ctx, link.ShortCode)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	_, err = linkService.Resolve(ctx, link.ShortCode)
	assert.ErrorIs(t, err, service.ErrLinkNotFound)
}

// TestLinkService_Resolve_StaleReadAfterDelete чтение, начатое до удаления, не возвращает ссылку в кэш
func TestLinkService_Resolve_StaleReadAfterDelete(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService(t)
	ctx := context.Background()
	require.NoError(t, linkRepo.Add(&models.Link{ShortCode: "abc123", OriginalURL: "https://example.com/stale"}))

	// Строка ещё читается из БД, а кэш уже помечен удалением
	require.NoError(t, cacheRepo.Delete(ctx, "abc123"))

	link, err := linkService.Resolve(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/stale", link.OriginalURL)
	assert.False(t, cacheRepo.Has("abc123"))

	require.NoError(t, linkRepo.Delete(ctx, "abc123"))
	_, err = linkService.Resolve(ctx, "abc123")
	assert.ErrorIs(t, err, service.ErrLinkNotFound)
}

func TestLinkService_DeleteLink_NotFound(t *testing.T) {
	linkService, _, _ := setupTestService(t)

	err := linkService.DeleteLink(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, service.ErrLinkNotFound)
}

func TestLinkService_ListLinks(t *testing.T) {
	linkService, linkRepo, _ := setupTestService(t)
	for i := 0; i < 25; i++ {
		require.NoError(t, linkRepo.Add(&models.Link{
			ShortCode:   fmt.Sprintf("code%02d", i),
			OriginalURL: fmt.Sprintf("https://example.com/%d", i),
		}))
	}
	require.NoError(t, linkRepo.Add(&models.Link{ShortCode: "golang", OriginalURL: "https://go.dev/doc"}))
	ctx := context.Background()

	page, err := linkService.ListLinks(ctx, models.LinkFilter{Search: "example"}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, models.DefaultPageSize, page.PageSize)
	assert.Len(t, page.Links, 5)

	page, err = linkService.ListLinks(ctx, models.LinkFilter{Search: "GO.DEV"}, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, models.MaxPageSize, page.PageSize)
	require.Len(t, page.Links, 1)
	assert.Equal(t, "golang", page.Links[0].ShortCode)
}
