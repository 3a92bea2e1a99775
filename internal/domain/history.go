package domain

import "time"

// HistoryKind distinguishes instant notifications from daily summaries.
type HistoryKind string

const (
	HistoryInstant HistoryKind = "instant"
	HistorySummary HistoryKind = "daily_summary"
)

// StockSummary is the compact per-entity projection kept in notification history.
type StockSummary struct {
	StockCode    string `json:"stockCode"`
	StockName    string `json:"stockName"`
	Quarter      string `json:"quarter"`
	ForecastType string `json:"forecastType"`
	ChangeRange  string `json:"changeRange"`
}

// HistoryEntry records one successful email dispatch. Entries are never mutated.
type HistoryEntry struct {
	ID         string         `json:"id"`
	Kind       HistoryKind    `json:"kind"`
	SentAt     time.Time      `json:"sentAt"`
	Recipients []string       `json:"recipients"`
	StockCount int            `json:"stockCount"`
	Stocks     []StockSummary `json:"stocks"`
}

// Summarize projects reports into history summaries, preserving order.
func Summarize(reports []Report) []StockSummary {
	out := make([]StockSummary, 0, len(reports))
	for _, r := range reports {
		out = append(out, StockSummary{
			StockCode:    r.Code,
			StockName:    r.Name,
			Quarter:      r.PeriodKey(),
			ForecastType: r.ForecastType,
			ChangeRange:  r.ChangeRange(),
		})
	}
	return out
}
