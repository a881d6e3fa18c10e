package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jszwec/csvutil"

	"homescout/models"
)

// ExportRow is one scored listing as written to the CSV export.
type ExportRow struct {
	ID           int64    `csv:"id"`
	Source       string   `csv:"source"`
	Address      string   `csv:"address"`
	Neighborhood string   `csv:"neighborhood,omitempty"`
	Price        *float64 `csv:"price,omitempty"`
	Beds         *float64 `csv:"beds,omitempty"`
	Baths        *float64 `csv:"baths,omitempty"`
	Sqft         *float64 `csv:"sqft,omitempty"`
	Status       string   `csv:"status"`
	DaysOnMarket *int     `csv:"days_on_market,omitempty"`
	Tranquility  *int     `csv:"tranquility_score,omitempty"`
	Light        *int     `csv:"light_potential_score,omitempty"`
	Matches      bool     `csv:"matches"`
	Percent      float64  `csv:"score_percent"`
	Tier         string   `csv:"tier"`
	GateFailure  string   `csv:"gate_failure,omitempty"`
	TopPositives string   `csv:"top_positives,omitempty"`
	Tradeoff     string   `csv:"tradeoff,omitempty"`
	URL          string   `csv:"url"`
}

// NewExportRow flattens a listing and its score.
func NewExportRow(l *models.Listing, res models.ScoreResult) ExportRow {
	return ExportRow{
		ID:           l.ID,
		Source:       l.Source,
		Address:      l.Address,
		Neighborhood: l.Neighborhood,
		Price:        l.Price,
		Beds:         l.Beds,
		Baths:        l.Baths,
		Sqft:         l.Sqft,
		Status:       l.Status,
		DaysOnMarket: l.DaysOnMarket,
		Tranquility:  l.TranquilityScore,
		Light:        l.LightScore,
		Matches:      res.Matches,
		Percent:      res.Percent,
		Tier:         res.Tier,
		GateFailure:  res.GateFailure,
		TopPositives: strings.Join(res.TopPositives, "; "),
		Tradeoff:     res.Tradeoff,
		URL:          l.URL,
	}
}

// CSVExporter writes scored listings to a CSV file.
// It is safe for concurrent use.
type CSVExporter struct {
	mu   sync.Mutex
	path string
}

// NewCSVExporter prepares an exporter for path. Intermediate directories are
// created automatically.
func NewCSVExporter(path string) (*CSVExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVExporter{path: path}, nil
}

// Write replaces the file contents with the header and rows.
func (c *CSVExporter) Write(rows []ExportRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	if len(rows) == 0 {
		header, err := csvutil.Header(ExportRow{}, "csv")
		if err != nil {
			return fmt.Errorf("csv: header: %w", err)
		}
		data = []byte(strings.Join(header, ",") + "\n")
	} else {
		var err error
		if data, err = csvutil.Marshal(rows); err != nil {
			return fmt.Errorf("csv: encode rows: %w", err)
		}
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("csv: write file %q: %w", c.path, err)
	}
	return nil
}

func (c *CSVExporter) Path() string {
	return c.path
}
