package services

import "context"

type contextKey string

const (
	runIDKey contextKey = "run_id"
	stageKey contextKey = "stage"
	plotKey  contextKey = "plot"
	bandKey  contextKey = "band"
)

// WithRunID annotates context with the invocation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return withString(ctx, runIDKey, id)
}

// RunIDFromContext extracts the invocation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, runIDKey)
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithPlot annotates context with the plot being processed.
func WithPlot(ctx context.Context, plot string) context.Context {
	return withString(ctx, plotKey, plot)
}

// PlotFromContext returns the plot identifier if present.
func PlotFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, plotKey)
}

// WithBand annotates context with the spectral band being processed.
func WithBand(ctx context.Context, band string) context.Context {
	return withString(ctx, bandKey, band)
}

// BandFromContext returns the band name if present.
func BandFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, bandKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
