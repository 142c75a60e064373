package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rezonia/nfse-emitter/internal/model"
)

type InvoiceRepository interface {
	Create(ctx context.Context, inv *model.Invoice) error
	Update(ctx context.Context, inv *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	ListByStatus(ctx context.Context, status model.InvoiceStatus, limit int) ([]model.Invoice, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *model.Invoice) error {
	return GetDB(ctx, r.db).Create(inv).Error
}

func (r *invoiceRepository) Update(ctx context.Context, inv *model.Invoice) error {
	return GetDB(ctx, r.db).Save(inv).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	if err := GetDB(ctx, r.db).First(&inv, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "invoice", id.String())
	}
	return &inv, nil
}

func (r *invoiceRepository) ListByStatus(ctx context.Context, status model.InvoiceStatus, limit int) ([]model.Invoice, error) {
	var invoices []model.Invoice
	q := GetDB(ctx, r.db).Where("status = ?", status).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
