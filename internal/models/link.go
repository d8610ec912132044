package models

import (
	"time"
)

// Link соответствует одной паре "длинный URL -> короткий код"
type Link struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	ClicksCount int64     `json:"clicks_count"`
}

// Допустимые значения LinkFilter.Sort
const (
	SortCreatedDesc = "-created_at"
	SortCreatedAsc  = "created_at"
	SortClicksDesc  = "-clicks_count"
	SortClicksAsc   = "clicks_count"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// LinkFilter фильтр списка ссылок
type LinkFilter struct {
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	MinClicks   *int64
	Sort        string
	Limit       int
	Offset      int
}

type LinkPage struct {
	Links    []Link `json:"links"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}
