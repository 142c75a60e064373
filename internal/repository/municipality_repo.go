package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rezonia/nfse-emitter/internal/model"
)

type MunicipalityRepository interface {
	FindByIbgeCode(ctx context.Context, ibgeCode string) (*model.Municipality, error)
	FindByTomCode(ctx context.Context, tomCode string) (*model.Municipality, error)
	FindByCityAndUf(ctx context.Context, city, uf string) (*model.Municipality, error)
	ListByUf(ctx context.Context, uf string) ([]model.Municipality, error)
	Upsert(ctx context.Context, municipalities []model.Municipality) error
}

type municipalityRepository struct {
	db *gorm.DB
}

func NewMunicipalityRepository(db *gorm.DB) MunicipalityRepository {
	return &municipalityRepository{db: db}
}

func (r *municipalityRepository) FindByIbgeCode(ctx context.Context, ibgeCode string) (*model.Municipality, error) {
	var m model.Municipality
	if err := GetDB(ctx, r.db).First(&m, "ibge_code = ?", ibgeCode).Error; err != nil {
		return nil, notFound(err, "municipality", ibgeCode)
	}
	return &m, nil
}

func (r *municipalityRepository) FindByTomCode(ctx context.Context, tomCode string) (*model.Municipality, error) {
	var m model.Municipality
	if err := GetDB(ctx, r.db).First(&m, "tom_code = ?", tomCode).Error; err != nil {
		return nil, notFound(err, "municipality", tomCode)
	}
	return &m, nil
}

// FindByCityAndUf matches the name case-insensitively
func (r *municipalityRepository) FindByCityAndUf(ctx context.Context, city, uf string) (*model.Municipality, error) {
	var m model.Municipality
	uf = strings.ToUpper(strings.TrimSpace(uf))
	if err := GetDB(ctx, r.db).
		Where("name_lower = ? AND uf = ?", model.MunicipalityNameKey(city), uf).
		First(&m).Error; err != nil {
		return nil, notFound(err, "municipality", city+"/"+uf)
	}
	return &m, nil
}

func (r *municipalityRepository) ListByUf(ctx context.Context, uf string) ([]model.Municipality, error) {
	var municipalities []model.Municipality
	if err := GetDB(ctx, r.db).
		Where("uf = ?", strings.ToUpper(uf)).
		Order("name ASC").
		Find(&municipalities).Error; err != nil {
		return nil, err
	}
	return municipalities, nil
}

// Upsert inserts municipalities, replacing rows with the same IBGE code
func (r *municipalityRepository) Upsert(ctx context.Context, municipalities []model.Municipality) error {
	if len(municipalities) == 0 {
		return nil
	}
	for i := range municipalities {
		municipalities[i].Normalize()
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ibge_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "name_lower", "uf", "tom_code", "created_at", "extinguished_at"}),
	}).CreateInBatches(municipalities, 500).Error
}
