// Package types contains request and response shapes of the relay API.
package types

import "github.com/okian/plusolver/internal/domain/model"

// SessionRequest is the body of POST /run-session and /run-session-stream.
type SessionRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TargetScore   *int   `json:"target_score,omitempty"`
	FullKnowledge bool   `json:"full_knowledge"`
}

// Credentials extracts the operator credentials.
func (r SessionRequest) Credentials() model.Credentials {
	return model.Credentials{Identifier: r.Email, Secret: r.Password}
}

// SessionResponse wraps a synchronous run result.
type SessionResponse struct {
	Status string              `json:"status"`
	Data   model.AttemptResult `json:"data"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	CacheItems     int     `json:"cache_items"`
	CachePopulated bool    `json:"cache_populated"`
	ActiveRuns     int     `json:"active_runs"`
	RunsStarted    int64   `json:"runs_started"`
	AttemptsTotal  int64   `json:"attempts_total"`
	AttemptsFailed int64   `json:"attempts_failed"`
	LastKnowledge  float64 `json:"last_user_knowledge"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// CatalogResponse is returned by GET /catalog.
type CatalogResponse struct {
	Count int                 `json:"count"`
	Items []model.CatalogItem `json:"items"`
}

// ErrorResponse is the body of every non-2xx relay response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
