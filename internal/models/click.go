package models

import (
	"time"
)

type Click struct {
	ID          int64             `json:"id"`
	LinkID      int64             `json:"link_id"`
	ShortCode   string            `json:"short_code,omitempty"`
	ClickedAt   time.Time         `json:"clicked_at"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Referrer    string            `json:"referrer,omitempty"`
	IPAddress   string            `json:"ip_address,omitempty"`
}

// ClickMetadata данные запроса, из которых строится Click
type ClickMetadata struct {
	QueryParams map[string]string
	UserAgent   string
	Referrer    string
	IPAddress   string
}

// ClickFilter фильтр выборки кликов
type ClickFilter struct {
	LinkID      *int64
	ClickedFrom *time.Time
	ClickedTo   *time.Time
	ParamKey    string
	ParamValue  string
	Limit       int
}

type ClickStats struct {
	ShortCode    string `json:"short_code"`
	TotalClicks  int64  `json:"total_clicks"`
	UniqueClicks int64  `json:"unique_clicks"`
}

type DailyClickStats struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

type DashboardFilter struct {
	ClickedFrom *time.Time
	ClickedTo   *time.Time
	ParamKey    string
	ParamValue  string
	MinClicks   *int64
}

type DashboardStats struct {
	TotalLinks   int64   `json:"total_links"`
	TotalClicks  int64   `json:"total_clicks"`
	TopLinks     []Link  `json:"top_links"`
	RecentClicks []Click `json:"recent_clicks"`
}
