package service

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/SergeiKhy/shortify/internal/metrics"
	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/SergeiKhy/shortify/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3                // Количество воркеров
	defaultChannelBuffer = 1000             // Размер буфера канала
	defaultRecordTimeout = 5 * time.Second  // Таймаут записи одного клика
	maxRetries           = 3                // Максимальное количество попыток записи
	retryBaseDelay       = 100 * time.Millisecond
	maxReferrerLen       = 2048 // Ширина колонки clicks.referrer
)

// ClickRecorder записывает клики без влияния на редирект
type ClickRecorder interface {
	Start()
	Stop()
	// Record синхронно сохраняет клик; при любой ошибке логирует её и возвращает nil
	Record(ctx context.Context, link *models.Link, meta models.ClickMetadata) *models.Click
	// Enqueue передаёт клик воркерам и сразу возвращается (fire-and-forget)
	Enqueue(link *models.Link, meta models.ClickMetadata)
	QueueStats() QueueStats
}

// ClickRecorderConfig параметры пула воркеров
type ClickRecorderConfig struct {
	Workers    int
	BufferSize int
	Timeout    time.Duration
}

type clickEvent struct {
	link models.Link
	meta models.ClickMetadata
}

// clickRecorder реализация с использованием Worker Pool
type clickRecorder struct {
	clickRepo   repository.ClickRepository
	logger      *zap.Logger
	events      chan clickEvent // Канал для событий кликов
	workerCount int
	timeout     time.Duration
	wg          sync.WaitGroup

	mu      sync.RWMutex // защищает stopped и закрытие events
	stopped bool

	dropLog rate.Sometimes // не чаще одного предупреждения о переполнении в интервал
}

// NewClickRecorder создаёт новый экземпляр процессора кликов
func NewClickRecorder(clickRepo repository.ClickRepository, cfg ClickRecorderConfig, logger *zap.Logger) ClickRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultChannelBuffer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRecordTimeout
	}

	return &clickRecorder{
		clickRepo:   clickRepo,
		logger:      logger,
		events:      make(chan clickEvent, cfg.BufferSize),
		workerCount: cfg.Workers,
		timeout:     cfg.Timeout,
		dropLog:     rate.Sometimes{Interval: 10 * time.Second},
	}
}

// Start запускает worker pool
func (r *clickRecorder) Start() {
	r.logger.Info("Запуск воркеров записи кликов", zap.Int("count", r.workerCount))

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop закрывает очередь и ждёт, пока воркеры запишут оставшиеся события
func (r *clickRecorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.events)
	r.mu.Unlock()

	r.logger.Info("Остановка записи кликов...", zap.Int("pending", len(r.events)))
	r.wg.Wait()
	r.logger.Info("Запись кликов остановлена")
}

// worker обрабатывает события кликов из канала до его закрытия
func (r *clickRecorder) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("Воркер кликов запущен", zap.Int("id", id))
	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		r.Record(ctx, &event.link, event.meta)
		cancel()
	}
	r.logger.Debug("Воркер кликов остановлен", zap.Int("id", id))
}

// Enqueue неблокирующая отправка события в worker pool
func (r *clickRecorder) Enqueue(link *models.Link, meta models.ClickMetadata) {
	if link == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		metrics.ClicksDropped.Inc()
		return
	}

	select {
	case r.events <- clickEvent{link: *link, meta: meta}:
	default:
		// Канал заполнен: теряем статистику, но не задерживаем редирект
		metrics.ClicksDropped.Inc()
		r.dropLog.Do(func() {
			r.logger.Warn("Буфер канала кликов заполнен, событие потеряно",
				zap.String("short_code", link.ShortCode),
				zap.Int("buffer_size", cap(r.events)),
			)
		})
	}
}

// Record сохраняет клик и увеличивает счётчик ссылки одной транзакцией
func (r *clickRecorder) Record(ctx context.Context, link *models.Link, meta models.ClickMetadata) (click *models.Click) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ClicksFailed.Inc()
			r.logger.Error("Паника при записи клика", zap.Any("panic", rec))
			click = nil
		}
	}()

	if link == nil {
		metrics.ClicksFailed.Inc()
		r.logger.Warn("Клик без ссылки пропущен")
		return nil
	}

	click = &models.Click{
		LinkID:      link.ID,
		ShortCode:   link.ShortCode,
		QueryParams: meta.QueryParams,
		UserAgent:   meta.UserAgent,
		Referrer:    meta.Referrer,
		IPAddress:   meta.IPAddress,
	}

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = r.clickRepo.RecordClick(ctx, click); err == nil {
			metrics.ClicksRecorded.Inc()
			r.logger.Debug("Клик записан",
				zap.String("short_code", link.ShortCode),
				zap.String("ip", meta.IPAddress),
			)
			return click
		}

		// Ссылку удалили между редиректом и записью или БД отвергла данные: повтор не поможет
		if errors.Is(err, repository.ErrLinkNotFound) || repository.IsDataException(err) || attempt == maxRetries {
			break
		}

		r.logger.Debug("Повторная попытка записи клика",
			zap.String("short_code", link.ShortCode),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			err = errors.Join(err, ctx.Err())
			attempt = maxRetries
		case <-time.After(time.Duration(attempt) * retryBaseDelay):
		}
	}

	metrics.ClicksFailed.Inc()
	r.logger.Error("Не удалось записать клик",
		zap.String("short_code", link.ShortCode),
		zap.Error(err),
	)
	return nil
}

// QueueStats статистика очереди для мониторинга
type QueueStats struct {
	BufferSize  int `json:"buffer_size"`  // Общая ёмкость канала
	BufferUsed  int `json:"buffer_used"`  // Текущее использование
	WorkerCount int `json:"worker_count"` // Количество воркеров
}

func (r *clickRecorder) QueueStats() QueueStats {
	return QueueStats{
		BufferSize:  cap(r.events),
		BufferUsed:  len(r.events),
		WorkerCount: r.workerCount,
	}
}

// MetadataFromRequest извлекает данные клика из входящего запроса.
// IP берётся из первого элемента X-Forwarded-For (исходный клиент в цепочке прокси), иначе из адреса соединения.
// Значения приводятся к виду, который примут колонки clicks: NUL вырезается (jsonb его не хранит),
// реферер обрезается до maxReferrerLen символов.
func MetadataFromRequest(req *http.Request) models.ClickMetadata {
	meta := models.ClickMetadata{
		UserAgent: stripNUL(req.UserAgent()),
		Referrer:  truncateRunes(stripNUL(req.Referer()), maxReferrerLen),
		IPAddress: clientIP(req),
	}

	if query := req.URL.Query(); len(query) > 0 {
		meta.QueryParams = make(map[string]string, len(query))
		for key, values := range query {
			meta.QueryParams[stripNUL(key)] = stripNUL(values[len(values)-1])
		}
	}

	return meta
}

// clientIP возвращает адрес клиента или пустую строку (NULL в БД), если валидного адреса нет
func clientIP(req *http.Request) string {
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.WithZone("").String()
		}
	}

	if addrPort, err := netip.ParseAddrPort(req.RemoteAddr); err == nil {
		return addrPort.Addr().WithZone("").String()
	}
	if addr, err := netip.ParseAddr(req.RemoteAddr); err == nil {
		return addr.WithZone("").String()
	}
	return ""
}

func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
