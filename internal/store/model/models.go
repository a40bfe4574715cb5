package model

import (
	"database/sql"
	"time"
)

// Source says which code path produced a RequestLog.
type Source string

const (
	// SourceRelay is a call served by the relay endpoints on behalf of a remote client.
	SourceRelay Source = "relay"
	// SourceEngine is one attempt of a server-side failover run.
	SourceEngine Source = "engine"
)

// RequestLog is one provider call, successful or not.
type RequestLog struct {
	ID           string         `db:"id" json:"id"`
	Source       Source         `db:"source" json:"source"`
	ProviderID   string         `db:"provider_id" json:"provider"`
	ModelID      string         `db:"model_id" json:"model"`
	Transport    string         `db:"transport" json:"transport"`
	ErrorKind    string         `db:"error_kind" json:"error_kind,omitempty"`
	ErrorMessage sql.NullString `db:"error_message" json:"-"`
	StatusCode   int            `db:"status_code" json:"status_code"`
	LatencyMS    int64          `db:"latency_ms" json:"latency_ms"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Succeeded reports whether the call produced an answer.
func (l *RequestLog) Succeeded() bool {
	return l.ErrorKind == ""
}

// DailyStats aggregates the calls to one provider on one day.
type DailyStats struct {
	Date           string  `db:"date" json:"date"`
	ProviderID     string  `db:"provider_id" json:"provider"`
	TotalRequests  int     `db:"total_requests" json:"total_requests"`
	Failures       int     `db:"failures" json:"failures"`
	AverageLatency float64 `db:"avg_latency" json:"avg_latency_ms"`
}
