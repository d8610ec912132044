package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/shortify/internal/models"
	"github.com/jackc/pgx/v5"
)

type LinkRepository interface {
	// Create вставляет ссылку в отдельной транзакции.
	// Нарушение уникальности возвращается как ErrShortCodeExists или ErrOriginalURLExists.
	Create(ctx context.Context, link *models.Link) error
	GetByShortCode(ctx context.Context, code string) (*models.Link, error)
	GetByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error)
	Delete(ctx context.Context, code string) error
	List(ctx context.Context, filter models.LinkFilter) ([]models.Link, int64, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

const linkColumns = `id, short_code, original_url, created_at, clicks_count`

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (original_url, short_code)
		VALUES ($1, $2)
		RETURNING id, created_at, clicks_count
	`

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, link.OriginalURL, link.ShortCode).
			Scan(&link.ID, &link.CreatedAt, &link.ClicksCount)
	})
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case constraintShortCode:
				return ErrShortCodeExists
			case constraintOriginalURL:
				return ErrOriginalURLExists
			}
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`
	return r.getOne(ctx, query, code)
}

func (r *linkRepository) GetByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE original_url = $1`
	return r.getOne(ctx, query, originalURL)
}

func (r *linkRepository) getOne(ctx context.Context, query string, arg any) (*models.Link, error) {
	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.CreatedAt,
		&link.ClicksCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// Delete удаляет ссылку; клики удаляются каскадно (ON DELETE CASCADE)
func (r *linkRepository) Delete(ctx context.Context, code string) error {
	query := `DELETE FROM links WHERE short_code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

var linkOrderBy = map[string]string{
	models.SortCreatedDesc: "created_at DESC, id DESC",
	models.SortCreatedAsc:  "created_at ASC, id ASC",
	models.SortClicksDesc:  "clicks_count DESC, id DESC",
	models.SortClicksAsc:   "clicks_count ASC, id ASC",
}

func (r *linkRepository) List(ctx context.Context, filter models.LinkFilter) ([]models.Link, int64, error) {
	var where whereBuilder
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		where.add("(original_url ILIKE ? OR short_code ILIKE ?)", pattern, pattern)
	}
	if filter.CreatedFrom != nil {
		where.add("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		where.add("created_at <= ?", *filter.CreatedTo)
	}
	if filter.MinClicks != nil {
		where.add("clicks_count >= ?", *filter.MinClicks)
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM links`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count links: %w", err)
	}

	orderBy, ok := linkOrderBy[filter.Sort]
	if !ok {
		orderBy = linkOrderBy[models.SortCreatedDesc]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultPageSize
	}

	query := `SELECT ` + linkColumns + ` FROM links` + where.sql() +
		` ORDER BY ` + orderBy +
		` LIMIT ` + where.arg(limit) + ` OFFSET ` + where.arg(filter.Offset)

	rows, err := r.db.Pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]models.Link, 0, limit)
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(&link.ID, &link.ShortCode, &link.OriginalURL, &link.CreatedAt, &link.ClicksCount); err != nil {
			return nil, 0, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating links: %w", err)
	}

	return links, total, nil
}
