package ipm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-emitter/internal/ipm"
)

func TestParseResponse_Success(t *testing.T) {
	raw := `<?xml version="1.0" encoding="UTF-8"?>
<retorno>
  <sucesso>True</sucesso>
  <mensagem>NFS-e emitida com sucesso</mensagem>
  <numero_nfse>2026/15</numero_nfse>
  <cod_verificador_autenticidade>ABC123XYZ</cod_verificador_autenticidade>
  <link_pdf>https://concordia.atende.net/nfse/2026-15.pdf</link_pdf>
</retorno>`

	result := ipm.ParseResponse(raw)

	assert.True(t, result.Success)
	assert.Equal(t, "2026/15", result.Protocol)
	assert.Equal(t, "2026/15", result.InvoiceNumber)
	assert.Equal(t, "ABC123XYZ", result.VerificationCode)
	assert.Equal(t, "https://concordia.atende.net/nfse/2026-15.pdf", result.PdfURL)
	assert.Equal(t, []string{"NFS-e emitida com sucesso"}, result.Messages)
	assert.Equal(t, raw, result.RawResponse)
}

func TestParseResponse_ErrorsAndWarnings(t *testing.T) {
	raw := `<retorno>
  <sucesso>false</sucesso>
  <mensagem>Falha na validação</mensagem>
  <mensagens>
    <aviso><codigo>10</codigo><descricao>Campo observacao truncado</descricao></aviso>
    <erro><codigo>205</codigo><descricao>CNPJ do prestador inválido</descricao></erro>
    <erro>Tomador sem endereço</erro>
  </mensagens>
</retorno>`

	result := ipm.ParseResponse(raw)

	assert.False(t, result.Success)
	assert.Empty(t, result.InvoiceNumber)
	assert.Equal(t, []string{
		"Falha na validação",
		"[205] CNPJ do prestador inválido",
		"[] Tomador sem endereço",
		"[10] Campo observacao truncado",
	}, result.Messages)
}

func TestParseResponse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated", "<retorno><sucesso>true</sucesso"},
		{"not xml", "service unavailable <"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ipm.ParseResponse(tt.raw)
			assert.False(t, result.Success)
			require.Len(t, result.Messages, 1)
			assert.Equal(t, tt.raw, result.RawResponse)
		})
	}
}

func TestParseResponse_MissingSucessoIsFailure(t *testing.T) {
	result := ipm.ParseResponse(`<retorno><numero_nfse>1</numero_nfse></retorno>`)
	assert.False(t, result.Success)
	assert.Equal(t, "1", result.InvoiceNumber)
	assert.Empty(t, result.Messages)
}
