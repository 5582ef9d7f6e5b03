package exchange

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jwalitptl/stroke-api/internal/model"
)

// ExportFilename is the download name offered for exports.
const ExportFilename = "exported_patients.csv"

// Export writes the records matched by params as CSV in Columns order and
// returns the number of data rows written. The header row is written even
// when nothing matches.
func (s *Service) Export(ctx context.Context, w io.Writer, params model.PatientSearchParams) (int, error) {
	patients, err := s.patients.Search(ctx, params)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range patients {
		if err := cw.Write(encodeRecord(p)); err != nil {
			return 0, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}

	s.metrics.ExportRows.Add(float64(len(patients)))
	s.logger.Debug().Int("rows", len(patients)).Msg("csv export written")
	return len(patients), nil
}
