package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rezonia/nfse-emitter/internal/model"
)

// SeedMappings are the tax code mappings installed by Seed
var SeedMappings = []model.ServiceTypeTaxMapping{
	{
		ServiceTypeKey:        "vehicle-wash-45200-05",
		CnaeCode:              "4520-0/05",
		Description:           "Serviços de lavagem, lubrificação e polimento de veículos automotores",
		NbsCode:               "149.01.00",
		ServiceListCode:       "14.01",
		OperationIndicator:    "140101",
		TaxSituationCode:      "200",
		TaxClassificationCode: "140001",
		IsActive:              true,
	},
}

// SeedMunicipalities are the municipalities installed by Seed
var SeedMunicipalities = []model.Municipality{
	{IbgeCode: "4204301", Name: "Concórdia", Uf: "SC", TomCode: "8083"},
	{IbgeCode: "4205407", Name: "Florianópolis", Uf: "SC", TomCode: "8105"},
	{IbgeCode: "4204202", Name: "Chapecó", Uf: "SC", TomCode: "8081"},
	{IbgeCode: "4209003", Name: "Joaçaba", Uf: "SC", TomCode: "8177"},
}

// Seed installs reference data. Existing rows are left untouched so it can run on every start.
func Seed(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, m := range SeedMappings {
			m.ID = uuid.New()
			m.CreatedAt = now
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "service_type_key"}},
				DoNothing: true,
			}).Create(&m).Error; err != nil {
				return fmt.Errorf("seed mapping %s: %w", m.ServiceTypeKey, err)
			}
		}

		municipalities := make([]model.Municipality, len(SeedMunicipalities))
		copy(municipalities, SeedMunicipalities)
		for i := range municipalities {
			municipalities[i].Normalize()
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ibge_code"}},
			DoNothing: true,
		}).Create(&municipalities).Error; err != nil {
			return fmt.Errorf("seed municipalities: %w", err)
		}
		return nil
	})
}
