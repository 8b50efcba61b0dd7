package goalpace

import (
	"log/slog"
	"time"
)

// RunReport summarises one activation of a scheduled job.
type RunReport struct {
	Job string `json:"job"`

	// Total is the number of goals considered.
	Total int `json:"total"`
	// Processed is the number of goals that produced a write.
	Processed int `json:"processed"`
	// Skipped is the number of goals left alone on purpose.
	Skipped int `json:"skipped"`
	// Failed is the number of goals whose processing errored.
	Failed int `json:"failed"`

	Elapsed time.Duration `json:"elapsed"`
}

// LogValue implements slog.LogValuer.
func (r RunReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("job", r.Job),
		slog.Int("total", r.Total),
		slog.Int("processed", r.Processed),
		slog.Int("skipped", r.Skipped),
		slog.Int("failed", r.Failed),
		slog.Duration("elapsed", r.Elapsed),
	)
}
