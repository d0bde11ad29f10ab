package logging

import (
	"log/slog"
)

// WithQuery creates a logger carrying the query's position in the workload.
//
// Example:
//
//	log := logging.WithQuery(7)
//	log.Debug("query planned", "joins", 3)
func WithQuery(queryID int) *slog.Logger {
	return GetLogger().With("query", queryID)
}

// WithRelation creates a logger with relation context.
// Use this for loading and statistics.
func WithRelation(relationID uint32) *slog.Logger {
	return GetLogger().With("relation", relationID)
}

// WithOperator creates a logger for one operator of a query tree.
//
// Example:
//
//	log := logging.WithOperator("join")
//	log.Debug("build side chosen", "rows", n)
func WithOperator(operator string) *slog.Logger {
	return GetLogger().With("operator", operator)
}

// WithComponent creates a logger with component/subsystem context.
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError creates a logger with the error attached as a field.
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
