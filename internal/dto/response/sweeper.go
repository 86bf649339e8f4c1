package response

import "time"

type SweepResponse struct {
	Reclaimed int       `json:"reclaimed"`
	SweptAt   time.Time `json:"swept_at"`
}

type SweeperStatsResponse struct {
	Running        bool      `json:"running"`
	Runs           int64     `json:"runs"`
	TotalExpired   int64     `json:"total_expired"`
	TotalFailures  int64     `json:"total_failures"`
	LastRunAt      time.Time `json:"last_run_at"`
	LastRunExpired int       `json:"last_run_expired"`
}
