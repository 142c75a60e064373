package reference_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/reference"
	"github.com/rezonia/nfse-emitter/internal/repository"
)

const sample = `ibge_code,name,uf,tom_code,created_at,extinguished_at
4204301,Concórdia,SC,8083,,
4205407,Florianópolis,sc,8105,1726-03-23,
4200150,Extinta,SC,9999,1990-01-01,2001-12-31
`

func TestParse(t *testing.T) {
	rows, err := reference.Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "4204301", rows[0].IbgeCode)
	assert.Equal(t, "Concórdia", rows[0].Name)
	assert.Equal(t, "concórdia", rows[0].NameKey)
	assert.Nil(t, rows[0].CreatedAt)
	assert.Equal(t, "SC", rows[1].Uf)
	require.NotNil(t, rows[1].CreatedAt)
	assert.Equal(t, "1726-03-23", *rows[1].CreatedAt)
	require.NotNil(t, rows[2].ExtinguishedAt)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong header", "code,name,uf,tom,created,extinct\n"},
		{"missing column", "ibge_code,name,uf,tom_code,created_at,extinguished_at\n4204301,Concórdia,SC,8083,\n"},
		{"short ibge code", "ibge_code,name,uf,tom_code,created_at,extinguished_at\n42,Concórdia,SC,8083,,\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reference.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}
}

func TestImporter_Import(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Municipality{}))

	repo := repository.NewMunicipalityRepository(db)
	importer := reference.NewImporter(repo, repository.NewTransactionManager(db), nil)
	ctx := context.Background()

	n, err := importer.Import(ctx, strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// re-import is idempotent
	_, err = importer.Import(ctx, strings.NewReader(sample))
	require.NoError(t, err)

	m, err := repo.FindByCityAndUf(ctx, "Florianópolis", "SC")
	require.NoError(t, err)
	assert.Equal(t, "8105", m.TomCode)

	var count int64
	require.NoError(t, db.Model(&model.Municipality{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestImporter_InvalidFileWritesNothing(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Municipality{}))

	importer := reference.NewImporter(repository.NewMunicipalityRepository(db), repository.NewTransactionManager(db), nil)

	_, err = importer.Import(context.Background(), strings.NewReader("bad,header\n"))
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.Municipality{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
