package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rezonia/nfse-emitter/internal/model"
)

// ServiceTypeTaxMappingRepository only ever returns active mappings
type ServiceTypeTaxMappingRepository interface {
	FindByServiceTypeKey(ctx context.Context, key string) (*model.ServiceTypeTaxMapping, error)
	FindByCnaeCode(ctx context.Context, cnae string) (*model.ServiceTypeTaxMapping, error)
	ListActive(ctx context.Context) ([]model.ServiceTypeTaxMapping, error)
	Create(ctx context.Context, mapping *model.ServiceTypeTaxMapping) error
}

type serviceTypeTaxMappingRepository struct {
	db *gorm.DB
}

func NewServiceTypeTaxMappingRepository(db *gorm.DB) ServiceTypeTaxMappingRepository {
	return &serviceTypeTaxMappingRepository{db: db}
}

func (r *serviceTypeTaxMappingRepository) FindByServiceTypeKey(ctx context.Context, key string) (*model.ServiceTypeTaxMapping, error) {
	var m model.ServiceTypeTaxMapping
	if err := GetDB(ctx, r.db).
		Where("service_type_key = ? AND is_active = ?", key, true).
		First(&m).Error; err != nil {
		return nil, notFound(err, "service type tax mapping", key)
	}
	return &m, nil
}

func (r *serviceTypeTaxMappingRepository) FindByCnaeCode(ctx context.Context, cnae string) (*model.ServiceTypeTaxMapping, error) {
	var m model.ServiceTypeTaxMapping
	if err := GetDB(ctx, r.db).
		Where("cnae_code = ? AND is_active = ?", cnae, true).
		Order("service_type_key ASC").
		First(&m).Error; err != nil {
		return nil, notFound(err, "service type tax mapping", cnae)
	}
	return &m, nil
}

func (r *serviceTypeTaxMappingRepository) ListActive(ctx context.Context) ([]model.ServiceTypeTaxMapping, error) {
	var mappings []model.ServiceTypeTaxMapping
	if err := GetDB(ctx, r.db).
		Where("is_active = ?", true).
		Order("service_type_key ASC").
		Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

func (r *serviceTypeTaxMappingRepository) Create(ctx context.Context, mapping *model.ServiceTypeTaxMapping) error {
	return GetDB(ctx, r.db).Create(mapping).Error
}
