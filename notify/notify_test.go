package notify

import (
	"context"
	"strings"
	"testing"

	"homescout/models"
	"homescout/utils"
)

func price(v float64) *float64 { return &v }

func TestFormatAlert(t *testing.T) {
	tests := []struct {
		name  string
		alert models.Alert
		want  []string
	}{
		{
			name: "full",
			alert: models.Alert{
				Address:      "1 Main St",
				Price:        price(2_150_000),
				URL:          "https://example.com/1",
				ScorePercent: "81.5",
				Tier:         "Exceptional",
				TopPositives: []string{"Natural Light", "Views"},
				Tradeoff:     "HOA $900/mo",
				Reason:       "Price drop 6%",
			},
			want: []string{"[Price drop 6%]", "1 Main St", "$2.15M", "81.5% Exceptional", "+ Natural Light, Views", "- HOA $900/mo", "https://example.com/1"},
		},
		{
			name:  "missing fields",
			alert: models.Alert{ScorePercent: "70", Tier: "Strong", Reason: "New listing"},
			want:  []string{"Address n/a", "Price n/a", "70% Strong"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAlert(tt.alert)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("FormatAlert() = %q; missing %q", got, w)
				}
			}
		})
	}
}

func TestFormatBatchHeading(t *testing.T) {
	batch := models.AlertBatch{ID: "b1", Kind: models.AlertDigest, Alerts: []models.Alert{{Reason: "DOM 50"}}}
	lines := FormatBatch(batch)
	if len(lines) != 2 {
		t.Fatalf("lines = %d; want 2", len(lines))
	}
	if lines[0] != "digest batch b1: 1 alert" {
		t.Errorf("heading = %q", lines[0])
	}
}

func TestLogTransportHonoursContext(t *testing.T) {
	tr := NewLogTransport(utils.NewNopLogger())
	if err := tr.Send(context.Background(), models.AlertBatch{Kind: models.AlertImmediate}); err != nil {
		t.Errorf("Send: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Send(ctx, models.AlertBatch{}); err == nil {
		t.Error("Send on cancelled context returned nil")
	}
}
