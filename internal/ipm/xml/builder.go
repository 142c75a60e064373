// Package xml assembles the NFS-e document accepted by the IPM gateway.
package xml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	money "github.com/rezonia/nfse-emitter/internal/decimal"
	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/taxrate"
)

const dateLayout = "02/01/2006"

// Fixed gateway values
const (
	pisCofinsCST       = "01"
	pisCofinsRetention = "2"
	taxedAtProvider    = "S"
	unitCode           = "1"
	unitQuantity       = "1"
	itemTaxSituation   = "0000"
	operationFinality  = "0"
	finalConsumer      = "1"
	paymentCash        = "1"
	testModeMarker     = "1"
	defaultTimezone    = "America/Sao_Paulo"
)

// TaxCodeResolver resolves the classification codes of a service
type TaxCodeResolver interface {
	Resolve(ctx context.Context, serviceTypeKey *string, cnaeCode string) (model.TaxCodeBundle, error)
}

// MunicipalityResolver resolves the gateway TOM code of a city
type MunicipalityResolver interface {
	Resolve(ctx context.Context, city, uf string) (string, error)
}

// ItemRateSource selects which rate fills aliquota_item_lista_servico
type ItemRateSource string

const (
	// ItemRateIssuer uses the rate stated by the issuer on the invoice
	ItemRateIssuer ItemRateSource = "issuer"
	// ItemRateStateIBS uses the configured state IBS rate
	ItemRateStateIBS ItemRateSource = "state_ibs"
)

// ParseItemRateSource parses a configured item rate source
func ParseItemRateSource(s string) (ItemRateSource, error) {
	switch src := ItemRateSource(strings.ToLower(strings.TrimSpace(s))); src {
	case ItemRateIssuer, ItemRateStateIBS:
		return src, nil
	default:
		return "", fmt.Errorf("unknown item rate source %q (want %q or %q)", s, ItemRateIssuer, ItemRateStateIBS)
	}
}

// BuildOptions controls a single build
type BuildOptions struct {
	// TestMode adds the nfse_teste marker so the gateway validates without issuing
	TestMode bool
	// Observation fills the observacao field
	Observation string
}

// BuilderConfig holds the collaborators of a Builder
type BuilderConfig struct {
	TaxCodes       TaxCodeResolver
	Municipalities MunicipalityResolver
	Rates          taxrate.Rates
	ItemRateSource ItemRateSource
	Clock          clockwork.Clock
	Location       *time.Location
	Logger         *zap.Logger
}

// Builder turns invoices into gateway documents. It holds no per-build state
// and is safe for concurrent use.
type Builder struct {
	taxCodes       TaxCodeResolver
	municipalities MunicipalityResolver
	rates          taxrate.Rates
	itemRateSource ItemRateSource
	clock          clockwork.Clock
	location       *time.Location
	logger         *zap.Logger
}

// NewBuilder creates a new document builder
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.TaxCodes == nil {
		return nil, errors.New("tax code resolver is required")
	}
	if cfg.Municipalities == nil {
		return nil, errors.New("municipality resolver is required")
	}
	if _, err := ParseItemRateSource(string(cfg.ItemRateSource)); err != nil {
		return nil, model.NewConfigError("xml.item_rate_source", "invalid item rate source", err)
	}

	b := &Builder{
		taxCodes:       cfg.TaxCodes,
		municipalities: cfg.Municipalities,
		rates:          cfg.Rates,
		itemRateSource: cfg.ItemRateSource,
		clock:          cfg.Clock,
		location:       cfg.Location,
		logger:         cfg.Logger,
	}
	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}
	if b.location == nil {
		loc, err := time.LoadLocation(defaultTimezone)
		if err != nil {
			return nil, model.NewConfigError("xml.timezone", "cannot load default timezone", err)
		}
		b.location = loc
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.logger = b.logger.Named("xml_builder")
	return b, nil
}

// resolved is the reference data a build needs
type resolved struct {
	codes       model.TaxCodeBundle
	issuerTom   string
	consumerTom string
}

// Build renders the gateway document for inv.
// It fails with *model.InvalidInvoiceDataError when the stored issuer or consumer
// data cannot be decoded, and with the resolver error on data access failures.
func (b *Builder) Build(ctx context.Context, inv *model.Invoice, opts BuildOptions) (string, error) {
	issuer, err := inv.DecodeIssuer()
	if err != nil {
		return "", err
	}
	consumer, err := inv.DecodeConsumer()
	if err != nil {
		return "", err
	}

	ref, err := b.resolve(ctx, inv, issuer, consumer)
	if err != nil {
		return "", err
	}

	doc := b.assemble(inv, consumer, ref, opts)

	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal invoice %s: %w", inv.ID, err)
	}

	b.logger.Debug("document built",
		zap.String("invoice_id", inv.ID.String()),
		zap.Bool("test_mode", opts.TestMode),
		zap.String("issuer_tom", ref.issuerTom),
		zap.String("consumer_tom", ref.consumerTom),
	)

	return xml.Header + string(out), nil
}

// resolve looks up tax codes and both municipalities concurrently
func (b *Builder) resolve(ctx context.Context, inv *model.Invoice, issuer *model.Issuer, consumer *model.Consumer) (resolved, error) {
	var ref resolved
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		codes, err := b.taxCodes.Resolve(gctx, inv.ServiceTypeKey, issuer.Cnae)
		if err != nil {
			return fmt.Errorf("resolve tax codes: %w", err)
		}
		ref.codes = codes
		return nil
	})
	g.Go(func() error {
		tom, err := b.municipalities.Resolve(gctx, issuer.Address.City, issuer.Address.Uf)
		if err != nil {
			return fmt.Errorf("resolve issuer municipality: %w", err)
		}
		ref.issuerTom = tom
		return nil
	})
	g.Go(func() error {
		tom, err := b.municipalities.Resolve(gctx, consumer.Address.City, consumer.Address.Uf)
		if err != nil {
			return fmt.Errorf("resolve consumer municipality: %w", err)
		}
		ref.consumerTom = tom
		return nil
	})

	if err := g.Wait(); err != nil {
		return resolved{}, err
	}
	return ref, nil
}

func (b *Builder) assemble(inv *model.Invoice, consumer *model.Consumer, ref resolved, opts BuildOptions) document {
	amount := inv.Amount
	total := money.FormatMonetary(amount)
	zero := money.FormatMonetary(decimal.Zero)
	tax := b.rates.Breakdown(amount)

	doc := document{
		Identificador: strings.ReplaceAll(inv.ID.String(), "-", ""),
		NF: nf{
			DataFatoGerador:         b.clock.Now().In(b.location).Format(dateLayout),
			ValorTotal:              total,
			ValorDesconto:           zero,
			ValorIR:                 zero,
			ValorINSS:               zero,
			ValorContribuicaoSocial: zero,
			ValorRPS:                zero,
			PisCofins: pisCofins{
				CST:            pisCofinsCST,
				TipoRetencao:   pisCofinsRetention,
				BaseCalculo:    total,
				AliquotaPIS:    money.FormatRate(b.rates.PIS),
				AliquotaCOFINS: money.FormatRate(b.rates.COFINS),
			},
			ValorPIS:    money.FormatMonetary(tax.PIS),
			ValorCOFINS: money.FormatMonetary(tax.COFINS),
			Observacao:  EscapeContent(opts.Observation),
			IBSCBS: ibscbsNF{
				AliquotaIBSUF:         money.FormatRate(tax.State.Rate),
				ReducaoAliquotaIBSUF:  money.FormatRate(tax.State.Reduction),
				AliquotaEfetivaIBSUF:  money.FormatRate(tax.State.EffectiveRate),
				AliquotaIBSMun:        money.FormatRate(tax.Municipal.Rate),
				ReducaoAliquotaIBSMun: money.FormatRate(tax.Municipal.Reduction),
				AliquotaEfetivaIBSMun: money.FormatRate(tax.Municipal.EffectiveRate),
				AliquotaCBS:           money.FormatRate(tax.Federal.Rate),
				ReducaoAliquotaCBS:    money.FormatRate(tax.Federal.Reduction),
				AliquotaEfetivaCBS:    money.FormatRate(tax.Federal.EffectiveRate),
				ValorTotalNF:          total,
				TribRegular: tribRegular{
					PAliqEfeRegIBSUF:  money.FormatRate(tax.State.EffectiveRate),
					VTribRegIBSUF:     money.FormatMonetary(tax.State.Value),
					PAliqEfeRegIBSMun: money.FormatRate(tax.Municipal.EffectiveRate),
					VTribRegIBSMun:    money.FormatMonetary(tax.Municipal.Value),
					PAliqEfeRegCBS:    money.FormatRate(tax.Federal.EffectiveRate),
					VTribRegCBS:       money.FormatMonetary(tax.Federal.Value),
				},
				IBS: gIBS{
					ValorIBS:               money.FormatMonetary(tax.IBSTotal()),
					ValorIBSUF:             money.FormatMonetary(tax.State.Value),
					ValorDiferimentoIBSUF:  zero,
					ValorIBSMun:            money.FormatMonetary(tax.Municipal.Value),
					ValorDiferimentoIBSMun: zero,
				},
				CBS: gCBS{
					ValorCBS:            money.FormatMonetary(tax.Federal.Value),
					ValorDiferimentoCBS: zero,
				},
			},
		},
		Prestador: prestador{
			CpfCnpj: OnlyDigits(inv.IssuerCNPJ.String()),
			Cidade:  ref.issuerTom,
		},
		Tomador: b.tomador(consumer, ref.consumerTom),
		Itens: itens{Lista: []item{{
			TributaMunicipioPrestador:   taxedAtProvider,
			CodigoLocalPrestacaoServico: ref.issuerTom,
			UnidadeCodigo:               unitCode,
			UnidadeQuantidade:           unitQuantity,
			UnidadeValorUnitario:        total,
			CodigoItemListaServico:      StripDots(ref.codes.ServiceListCode),
			CodigoNBS:                   StripDots(ref.codes.NbsCode),
			Descritivo:                  EscapeContent(inv.ServiceDescription),
			AliquotaItemListaServico:    money.FormatRate(b.itemRate(inv)),
			SituacaoTributaria:          itemTaxSituation,
			ValorTributavel:             total,
			ValorDeducao:                zero,
			ValorISSRF:                  zero,
		}}},
		IBSCBS: ibscbsDocument{
			FinNFSe:  operationFinality,
			IndFinal: finalConsumer,
			CIndOp:   ref.codes.OperationIndicator,
			Valores: ibscbsValores{Trib: ibscbsTrib{GIBSCBS: gIBSCBS{
				CST:        ref.codes.TaxSituationCode,
				CClassTrib: ref.codes.TaxClassificationCode,
			}}},
		},
		FormaPagamento: formaPagamento{TipoPagamento: paymentCash},
	}

	if opts.TestMode {
		marker := testModeMarker
		doc.TestMode = &marker
	}
	return doc
}

func (b *Builder) tomador(consumer *model.Consumer, tom string) tomador {
	areaCode, phone := ParsePhone(deref(consumer.Phone))
	return tomador{
		Tipo:             TomadorType(consumer.CpfCnpj),
		CpfCnpj:          OnlyDigits(consumer.CpfCnpj),
		NomeRazaoSocial:  EscapeContent(consumer.Name),
		Logradouro:       EscapeContent(consumer.Address.Street),
		NumeroResidencia: EscapeContent(consumer.Address.Number),
		Complemento:      EscapeContent(deref(consumer.Address.Complement)),
		Bairro:           EscapeContent(consumer.Address.Neighborhood),
		Cidade:           tom,
		Cep:              OnlyDigits(consumer.Address.ZipCode),
		Email:            EscapeContent(deref(consumer.Email)),
		DDDFoneComercial: areaCode,
		FoneComercial:    phone,
	}
}

func (b *Builder) itemRate(inv *model.Invoice) decimal.Decimal {
	if b.itemRateSource == ItemRateStateIBS {
		return b.rates.IBSState
	}
	return inv.IssRate
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
