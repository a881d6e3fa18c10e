// Package notify hands alert batches to an outside notification channel.
package notify

import (
	"context"
	"fmt"
	"strings"

	"homescout/models"
	"homescout/services/scoring"
	"homescout/utils"
)

// Transport delivers one batch. A returned error means the batch was not
// delivered and its events stay unflagged.
type Transport interface {
	Send(ctx context.Context, batch models.AlertBatch) error
}

// LogTransport writes batches to the logger. It is used when no broker is
// configured.
type LogTransport struct {
	logger *utils.Logger
}

func NewLogTransport(logger *utils.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, batch models.AlertBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, line := range FormatBatch(batch) {
		t.logger.Info("[notify] %s", line)
	}
	return nil
}

// FormatBatch renders a batch as a heading followed by one line per alert.
func FormatBatch(batch models.AlertBatch) []string {
	n := len(batch.Alerts)
	plural := "s"
	if n == 1 {
		plural = ""
	}
	lines := make([]string, 0, n+1)
	lines = append(lines, fmt.Sprintf("%s batch %s: %d alert%s", batch.Kind, batch.ID, n, plural))
	for _, a := range batch.Alerts {
		lines = append(lines, FormatAlert(a))
	}
	return lines
}

// FormatAlert renders one alert on a single line.
func FormatAlert(a models.Alert) string {
	price := "Price n/a"
	if a.Price != nil {
		price = scoring.FormatCurrency(*a.Price)
	}
	address := a.Address
	if address == "" {
		address = "Address n/a"
	}
	parts := []string{
		fmt.Sprintf("[%s]", a.Reason),
		address,
		price,
		fmt.Sprintf("%s%% %s", a.ScorePercent, a.Tier),
	}
	if len(a.TopPositives) > 0 {
		parts = append(parts, "+ "+strings.Join(a.TopPositives, ", "))
	}
	if a.Tradeoff != "" {
		parts = append(parts, "- "+a.Tradeoff)
	}
	if a.URL != "" {
		parts = append(parts, a.URL)
	}
	return strings.Join(parts, " | ")
}
