package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaxCodeBundle is the set of classification codes a document needs
type TaxCodeBundle struct {
	NbsCode               string
	ServiceListCode       string
	OperationIndicator    string
	TaxSituationCode      string
	TaxClassificationCode string
}

// DefaultTaxCodeBundle is used when neither the service type key nor the CNAE match a mapping
var DefaultTaxCodeBundle = TaxCodeBundle{
	NbsCode:               "123456789",
	ServiceListCode:       "0024",
	OperationIndicator:    "030102",
	TaxSituationCode:      "200",
	TaxClassificationCode: "200028",
}

// Municipality maps an IBGE code and a name/state pair to the gateway TOM code.
// NameKey is the lookup form of Name; call Normalize before saving.
type Municipality struct {
	IbgeCode       string  `gorm:"type:varchar(7);primaryKey" json:"ibge_code"`
	Name           string  `gorm:"type:varchar(200);not null" json:"name"`
	NameKey        string  `gorm:"column:name_lower;type:varchar(200);not null;index:idx_municipality_name_uf" json:"-"`
	Uf             string  `gorm:"type:char(2);not null;index:idx_municipality_name_uf" json:"uf"`
	TomCode        string  `gorm:"type:varchar(4);not null;index" json:"tom_code"`
	CreatedAt      *string `gorm:"type:varchar(10)" json:"created_at,omitempty"`
	ExtinguishedAt *string `gorm:"type:varchar(10)" json:"extinguished_at,omitempty"`
}

// TableName overrides the gorm table name
func (Municipality) TableName() string {
	return "municipalities"
}

// Normalize fills NameKey and upper-cases Uf
func (m *Municipality) Normalize() {
	m.NameKey = MunicipalityNameKey(m.Name)
	m.Uf = strings.ToUpper(strings.TrimSpace(m.Uf))
}

// MunicipalityNameKey is the case-folded form municipality names are matched on.
// SQLite's LOWER folds ASCII only, so folding is never left to the database.
func MunicipalityNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ServiceTypeTaxMapping maps a service type key (or a CNAE) to its tax codes
type ServiceTypeTaxMapping struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ServiceTypeKey        string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"service_type_key"`
	CnaeCode              string     `gorm:"type:varchar(20);not null;index" json:"cnae_code"`
	Description           string     `gorm:"type:varchar(500);not null" json:"description"`
	NbsCode               string     `gorm:"type:varchar(20);not null" json:"nbs_code"`
	ServiceListCode       string     `gorm:"type:varchar(10);not null" json:"service_list_code"`
	OperationIndicator    string     `gorm:"type:varchar(6);not null" json:"operation_indicator"`
	TaxSituationCode      string     `gorm:"type:varchar(3);not null" json:"tax_situation_code"`
	TaxClassificationCode string     `gorm:"type:varchar(6);not null" json:"tax_classification_code"`
	IsActive              bool       `gorm:"not null;index" json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
}

// TableName overrides the gorm table name
func (ServiceTypeTaxMapping) TableName() string {
	return "service_type_tax_mappings"
}

// Bundle extracts the tax codes of the mapping
func (m *ServiceTypeTaxMapping) Bundle() TaxCodeBundle {
	return TaxCodeBundle{
		NbsCode:               m.NbsCode,
		ServiceListCode:       m.ServiceListCode,
		OperationIndicator:    m.OperationIndicator,
		TaxSituationCode:      m.TaxSituationCode,
		TaxClassificationCode: m.TaxClassificationCode,
	}
}
