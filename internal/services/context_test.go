package services_test

import (
	"context"
	"testing"

	"agbprep/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-42")
	ctx = services.WithStage(ctx, "acquire")
	ctx = services.WithPlot(ctx, "7-3")
	ctx = services.WithBand(ctx, "B8A")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "acquire" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if plot, ok := services.PlotFromContext(ctx); !ok || plot != "7-3" {
		t.Fatalf("unexpected plot: %v %v", plot, ok)
	}
	if band, ok := services.BandFromContext(ctx); !ok || band != "B8A" {
		t.Fatalf("unexpected band: %v %v", band, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithPlot(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected blank stage to be ignored")
	}
	if _, ok := services.PlotFromContext(ctx); ok {
		t.Fatal("expected blank plot to be ignored")
	}
}
