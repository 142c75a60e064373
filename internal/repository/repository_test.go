package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Invoice{}, &model.Municipality{}, &model.ServiceTypeTaxMapping{}))
	return db
}

func strPtr(s string) *string { return &s }

func newInvoice(t *testing.T) *model.Invoice {
	t.Helper()
	inv, err := model.NewInvoice("client-1",
		model.Issuer{Cnpj: "12345678000195", Name: "Lava Car", Cnae: "4520-0/05",
			Address: model.Address{City: "Concórdia", Uf: "SC"}},
		model.Consumer{Name: "Cliente", CpfCnpj: "98765432000110",
			Address: model.Address{City: "Florianópolis", Uf: "SC"}},
		"Lavagem", decimal.RequireFromString("1500.00"), decimal.RequireFromString("0.05"),
		time.Date(2026, 1, 18, 10, 0, 0, 0, time.UTC), strPtr("vehicle-wash-45200-05"))
	require.NoError(t, err)
	return inv
}

func TestInvoiceRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewInvoiceRepository(db)
	ctx := context.Background()

	inv := newInvoice(t)
	require.NoError(t, repo.Create(ctx, inv))

	t.Run("finds by id", func(t *testing.T) {
		got, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, inv.ID, got.ID)
		assert.Equal(t, model.Cnpj("12345678000195"), got.IssuerCNPJ)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(1500)), "amount %s", got.Amount)
		assert.True(t, got.IssRate.Equal(decimal.RequireFromString("0.05")), "rate %s", got.IssRate)
		assert.Equal(t, model.InvoiceStatusPending, got.Status)

		consumer, err := got.DecodeConsumer()
		require.NoError(t, err)
		assert.Equal(t, "Florianópolis", consumer.Address.City)
	})

	t.Run("updates status", func(t *testing.T) {
		inv.SetPayload("<nfse/>")
		inv.MarkAsEmitted("2026/1", "ABC", "", "<retorno/>", time.Now())
		require.NoError(t, repo.Update(ctx, inv))

		got, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusEmitted, got.Status)
		require.NotNil(t, got.ExternalInvoiceID)
		assert.Equal(t, "2026/1", *got.ExternalInvoiceID)
		require.NotNil(t, got.XMLPayload)
		assert.Equal(t, "<nfse/>", *got.XMLPayload)
	})

	t.Run("lists by status", func(t *testing.T) {
		pending := newInvoice(t)
		require.NoError(t, repo.Create(ctx, pending))

		list, err := repo.ListByStatus(ctx, model.InvoiceStatusPending, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, pending.ID, list[0].ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})
}

func TestMunicipalityRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewMunicipalityRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, []model.Municipality{
		{IbgeCode: "4204301", Name: "Concórdia", Uf: "SC", TomCode: "8083"},
		{IbgeCode: "4205407", Name: "Florianópolis", Uf: "SC", TomCode: "8105"},
		{IbgeCode: "4106902", Name: "Curitiba", Uf: "PR", TomCode: "7535"},
	}))

	t.Run("by city and uf is case insensitive", func(t *testing.T) {
		m, err := repo.FindByCityAndUf(ctx, "florianópolis", "sc")
		require.NoError(t, err)
		assert.Equal(t, "8105", m.TomCode)

		m, err = repo.FindByCityAndUf(ctx, "CURITIBA", "PR")
		require.NoError(t, err)
		assert.Equal(t, "7535", m.TomCode)
	})

	t.Run("accented names fold outside ascii", func(t *testing.T) {
		m, err := repo.FindByCityAndUf(ctx, "FLORIANÓPOLIS", "sc")
		require.NoError(t, err)
		assert.Equal(t, "8105", m.TomCode)

		m, err = repo.FindByCityAndUf(ctx, " CONCÓRDIA ", "SC")
		require.NoError(t, err)
		assert.Equal(t, "8083", m.TomCode)
	})

	t.Run("state must match", func(t *testing.T) {
		_, err := repo.FindByCityAndUf(ctx, "Curitiba", "SC")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("by codes", func(t *testing.T) {
		m, err := repo.FindByIbgeCode(ctx, "4204301")
		require.NoError(t, err)
		assert.Equal(t, "Concórdia", m.Name)

		m, err = repo.FindByTomCode(ctx, "8105")
		require.NoError(t, err)
		assert.Equal(t, "4205407", m.IbgeCode)

		_, err = repo.FindByTomCode(ctx, "0000")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("list by uf", func(t *testing.T) {
		list, err := repo.ListByUf(ctx, "sc")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Concórdia", list[0].Name)
	})

	t.Run("upsert replaces by ibge code", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, []model.Municipality{
			{IbgeCode: "4204301", Name: "Concórdia", Uf: "SC", TomCode: "8084", ExtinguishedAt: strPtr("2030-01-01")},
		}))
		m, err := repo.FindByIbgeCode(ctx, "4204301")
		require.NoError(t, err)
		assert.Equal(t, "8084", m.TomCode)
		require.NotNil(t, m.ExtinguishedAt)
		assert.Equal(t, "concórdia", m.NameKey)

		var count int64
		require.NoError(t, db.Model(&model.Municipality{}).Count(&count).Error)
		assert.Equal(t, int64(3), count)
	})
}

func TestServiceTypeTaxMappingRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewServiceTypeTaxMappingRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.ServiceTypeTaxMapping{
		ID: uuid.New(), ServiceTypeKey: "vehicle-wash-45200-05", CnaeCode: "4520-0/05",
		Description: "Lavagem", NbsCode: "149.01.00", ServiceListCode: "14.01",
		OperationIndicator: "140101", TaxSituationCode: "200", TaxClassificationCode: "140001",
		IsActive: true,
	}))
	require.NoError(t, repo.Create(ctx, &model.ServiceTypeTaxMapping{
		ID: uuid.New(), ServiceTypeKey: "retired", CnaeCode: "9602-5/01",
		Description: "Old", NbsCode: "1", ServiceListCode: "6.01",
		OperationIndicator: "060101", TaxSituationCode: "000", TaxClassificationCode: "000001",
		IsActive: false,
	}))

	m, err := repo.FindByServiceTypeKey(ctx, "vehicle-wash-45200-05")
	require.NoError(t, err)
	assert.Equal(t, "149.01.00", m.Bundle().NbsCode)

	m, err = repo.FindByCnaeCode(ctx, "4520-0/05")
	require.NoError(t, err)
	assert.Equal(t, "140001", m.TaxClassificationCode)

	_, err = repo.FindByServiceTypeKey(ctx, "retired")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = repo.FindByCnaeCode(ctx, "9602-5/01")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "vehicle-wash-45200-05", active[0].ServiceTypeKey)
}

func TestTransactionManager_Rollback(t *testing.T) {
	db := setupTestDB(t)
	tm := repository.NewTransactionManager(db)
	repo := repository.NewMunicipalityRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := repo.Upsert(txCtx, []model.Municipality{{IbgeCode: "4204202", Name: "Chapecó", Uf: "SC", TomCode: "8081"}}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.FindByIbgeCode(ctx, "4204202")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
