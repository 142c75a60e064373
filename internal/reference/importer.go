// Package reference loads municipality reference data from CSV exports.
package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/repository"
)

// Expected header of the IBGE/TOM join export
var header = []string{"ibge_code", "name", "uf", "tom_code", "created_at", "extinguished_at"}

const batchSize = 500

// Importer upserts municipalities from CSV
type Importer struct {
	municipalities repository.MunicipalityRepository
	tx             repository.TransactionManager
	logger         *zap.Logger
}

// NewImporter creates a new municipality importer
func NewImporter(municipalities repository.MunicipalityRepository, tx repository.TransactionManager, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		municipalities: municipalities,
		tx:             tx,
		logger:         logger.Named("municipality_import"),
	}
}

// Import reads every row of r and upserts it in a single transaction.
// It returns the number of rows written.
func (i *Importer) Import(ctx context.Context, r io.Reader) (int, error) {
	rows, err := Parse(r)
	if err != nil {
		return 0, err
	}

	err = i.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for start := 0; start < len(rows); start += batchSize {
			end := min(start+batchSize, len(rows))
			if err := i.municipalities.Upsert(txCtx, rows[start:end]); err != nil {
				return fmt.Errorf("upsert rows %d-%d: %w", start+1, end, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	i.logger.Info("municipalities imported", zap.Int("rows", len(rows)))
	return len(rows), nil
}

// Parse decodes the CSV export into municipalities
func Parse(r io.Reader) ([]model.Municipality, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.NewValidationError("csv", nil, "header", "file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for idx, col := range header {
		if !strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(first[idx]), "\ufeff"), col) {
			return nil, model.NewValidationError("csv", first[idx], "header", fmt.Sprintf("column %d must be %s", idx+1, col))
		}
	}

	var out []model.Municipality
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		m := model.Municipality{
			IbgeCode:       strings.TrimSpace(rec[0]),
			Name:           strings.TrimSpace(rec[1]),
			Uf:             strings.TrimSpace(rec[2]),
			TomCode:        strings.TrimSpace(rec[3]),
			CreatedAt:      optional(rec[4]),
			ExtinguishedAt: optional(rec[5]),
		}
		m.Normalize()
		if len(m.IbgeCode) != 7 || m.Name == "" || len(m.Uf) != 2 || m.TomCode == "" {
			return nil, model.NewValidationError(fmt.Sprintf("line %d", line), rec, "row", "ibge_code (7 digits), name, uf and tom_code are required")
		}
		out = append(out, m)
	}
	return out, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
