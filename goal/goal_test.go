package goal_test

import (
	"errors"
	"testing"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		target   float64
		want     float64
	}{
		{"half", 50, 100, 50},
		{"over target clamps", 150, 100, 100},
		{"negative progress clamps", -10, 100, 0},
		{"zero target", 50, 0, 0},
		{"negative target", 50, -5, 0},
		{"fractional", 1, 8, 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := goal.Percentage(tt.progress, tt.target); got != tt.want {
				t.Errorf("Percentage(%v, %v) = %v, want %v", tt.progress, tt.target, got, tt.want)
			}
		})
	}
}

func TestSetProgress(t *testing.T) {
	g := &goal.Goal{TargetValue: 200}
	g.SetProgress(50)
	if g.Progress != 50 {
		t.Errorf("Progress = %v, want 50", g.Progress)
	}
	if g.ProgressPercentage != 25 {
		t.Errorf("ProgressPercentage = %v, want 25", g.ProgressPercentage)
	}
}

func TestIsAutoTracked(t *testing.T) {
	tests := []struct {
		status goal.Status
		auto   bool
		want   bool
	}{
		{goal.StatusActive, true, true},
		{goal.StatusActive, false, false},
		{goal.StatusCompleted, true, false},
		{goal.StatusArchived, true, false},
	}
	for _, tt := range tests {
		g := &goal.Goal{Status: tt.status, AutoCalculated: tt.auto}
		if got := g.IsAutoTracked(); got != tt.want {
			t.Errorf("IsAutoTracked(%s, %v) = %v, want %v", tt.status, tt.auto, got, tt.want)
		}
	}
}

func TestValidateManualAdjustment(t *testing.T) {
	tests := []struct {
		name          string
		progress      float64
		target        float64
		justification string
		wantErr       bool
	}{
		{"valid", 40, 100, "Closed deal missed by sync", false},
		{"equal to target", 100, 100, "Reached the quarterly number", false},
		{"negative", -1, 100, "Correcting a bad import", true},
		{"above target", 101, 100, "Correcting a bad import", true},
		{"short justification", 10, 100, "typo", true},
		{"whitespace justification", 10, 100, "          ", true},
		{"no target set", 500, 0, "Target pending approval", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := goal.ValidateManualAdjustment(tt.progress, tt.target, tt.justification)
			if tt.wantErr {
				if !errors.Is(err, goalpace.ErrInvalidAdjustment) {
					t.Fatalf("expected ErrInvalidAdjustment, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
