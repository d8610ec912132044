package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/jackc/pgx/v5"
)

type ClickRepository interface {
	// RecordClick в одной транзакции сохраняет клик и атомарно увеличивает links.clicks_count
	RecordClick(ctx context.Context, click *models.Click) error
	List(ctx context.Context, filter models.ClickFilter) ([]models.Click, error)
	Count(ctx context.Context, filter models.ClickFilter) (int64, error)
	GetStats(ctx context.Context, linkID int64) (*models.ClickStats, error)
	GetDailyStats(ctx context.Context, linkID int64, days int) ([]models.DailyClickStats, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	insertQuery := `
		INSERT INTO clicks (link_id, query_params, user_agent, referrer, ip_address)
		VALUES ($1, $2, NULLIF($3::text, ''), NULLIF($4::text, ''), NULLIF($5::text, '')::inet)
		RETURNING id, clicked_at
	`
	// Инкремент выполняется на стороне БД, чтобы параллельные клики не терялись
	incrementQuery := `UPDATE links SET clicks_count = clicks_count + 1 WHERE id = $1`

	var params []byte
	if len(click.QueryParams) > 0 {
		var err error
		if params, err = json.Marshal(click.QueryParams); err != nil {
			return fmt.Errorf("failed to marshal query params: %w", err)
		}
	}

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertQuery,
			click.LinkID,
			params,
			click.UserAgent,
			click.Referrer,
			click.IPAddress,
		).Scan(&click.ID, &click.ClickedAt)
		if err != nil {
			return err
		}

		result, err := tx.Exec(ctx, incrementQuery, click.LinkID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return ErrLinkNotFound
		}
		return nil
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrLinkNotFound
		}
		if errors.Is(err, ErrLinkNotFound) {
			return err
		}
		if IsDataException(err) {
			return fmt.Errorf("%w: %w", ErrInvalidClick, err)
		}
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func clickWhere(filter models.ClickFilter) *whereBuilder {
	where := &whereBuilder{}
	if filter.LinkID != nil {
		where.add("c.link_id = ?", *filter.LinkID)
	}
	if filter.ClickedFrom != nil {
		where.add("c.clicked_at >= ?", *filter.ClickedFrom)
	}
	if filter.ClickedTo != nil {
		where.add("c.clicked_at <= ?", *filter.ClickedTo)
	}
	if filter.ParamKey != "" {
		if filter.ParamValue != "" {
			where.add("c.query_params ->> ?::text = ?", filter.ParamKey, filter.ParamValue)
		} else {
			where.add("c.query_params ->> ?::text IS NOT NULL", filter.ParamKey)
		}
	}
	return where
}

func (r *clickRepository) List(ctx context.Context, filter models.ClickFilter) ([]models.Click, error) {
	where := clickWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultPageSize
	}

	query := `
		SELECT c.id, c.link_id, l.short_code, c.clicked_at, c.query_params,
			COALESCE(c.user_agent, ''), COALESCE(c.referrer, ''), COALESCE(host(c.ip_address), '')
		FROM clicks c
		JOIN links l ON c.link_id = l.id` + where.sql() + `
		ORDER BY c.clicked_at DESC, c.id DESC
		LIMIT ` + where.arg(limit)

	rows, err := r.db.Pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	defer rows.Close()

	clicks := make([]models.Click, 0, limit)
	for rows.Next() {
		var (
			click  models.Click
			params []byte
		)
		if err := rows.Scan(
			&click.ID,
			&click.LinkID,
			&click.ShortCode,
			&click.ClickedAt,
			&params,
			&click.UserAgent,
			&click.Referrer,
			&click.IPAddress,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		if params != nil {
			if err := json.Unmarshal(params, &click.QueryParams); err != nil {
				return nil, fmt.Errorf("failed to unmarshal query params: %w", err)
			}
		}
		clicks = append(clicks, click)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clicks: %w", err)
	}

	return clicks, nil
}

func (r *clickRepository) Count(ctx context.Context, filter models.ClickFilter) (int64, error) {
	where := clickWhere(filter)

	var total int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM clicks c`+where.sql(), where.args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}

	return total, nil
}

func (r *clickRepository) GetStats(ctx context.Context, linkID int64) (*models.ClickStats, error) {
	query := `
		SELECT
			COUNT(*) as total_clicks,
			COUNT(DISTINCT ip_address) as unique_clicks
		FROM clicks
		WHERE link_id = $1
	`

	stats := &models.ClickStats{}
	err := r.db.Pool.QueryRow(ctx, query, linkID).Scan(
		&stats.TotalClicks,
		&stats.UniqueClicks,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get click stats: %w", err)
	}

	return stats, nil
}

func (r *clickRepository) GetDailyStats(ctx context.Context, linkID int64, days int) ([]models.DailyClickStats, error) {
	query := `
		SELECT
			to_char(DATE(clicked_at), 'YYYY-MM-DD') as date,
			COUNT(*) as clicks
		FROM clicks
		WHERE link_id = $1
			AND clicked_at >= NOW() - make_interval(days => $2::int)
		GROUP BY DATE(clicked_at)
		ORDER BY DATE(clicked_at) DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, linkID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	stats := []models.DailyClickStats{}
	for rows.Next() {
		var dailyStat models.DailyClickStats
		if err := rows.Scan(&dailyStat.Date, &dailyStat.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, dailyStat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}
