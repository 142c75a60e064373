package xml

import "encoding/xml"

// IPM gateway document layout. Field order is part of the contract.
type document struct {
	XMLName        xml.Name       `xml:"nfse"`
	TestMode       *string        `xml:"nfse_teste,omitempty"`
	Identificador  string         `xml:"identificador"`
	NF             nf             `xml:"nf"`
	Prestador      prestador      `xml:"prestador"`
	Tomador        tomador        `xml:"tomador"`
	Itens          itens          `xml:"itens"`
	IBSCBS         ibscbsDocument `xml:"IBSCBS"`
	FormaPagamento formaPagamento `xml:"forma_pagamento"`
}

type nf struct {
	DataFatoGerador         string    `xml:"data_fato_gerador"`
	ValorTotal              string    `xml:"valor_total"`
	ValorDesconto           string    `xml:"valor_desconto"`
	ValorIR                 string    `xml:"valor_ir"`
	ValorINSS               string    `xml:"valor_inss"`
	ValorContribuicaoSocial string    `xml:"valor_contribuicao_social"`
	ValorRPS                string    `xml:"valor_rps"`
	PisCofins               pisCofins `xml:"pis_cofins"`
	ValorPIS                string    `xml:"valor_pis"`
	ValorCOFINS             string    `xml:"valor_cofins"`
	Observacao              string    `xml:"observacao"`
	IBSCBS                  ibscbsNF  `xml:"IBSCBS"`
}

type pisCofins struct {
	CST            string `xml:"cst"`
	TipoRetencao   string `xml:"tipo_retencao"`
	BaseCalculo    string `xml:"base_calculo"`
	AliquotaPIS    string `xml:"aliquota_pis"`
	AliquotaCOFINS string `xml:"aliquota_cofins"`
}

type ibscbsNF struct {
	AliquotaIBSUF         string      `xml:"aliquota_ibs_uf"`
	ReducaoAliquotaIBSUF  string      `xml:"reducao_aliquota_ibs_uf"`
	AliquotaEfetivaIBSUF  string      `xml:"aliquota_efetiva_ibs_uf"`
	AliquotaIBSMun        string      `xml:"aliquota_ibs_mun"`
	ReducaoAliquotaIBSMun string      `xml:"reducao_aliquota_ibs_mun"`
	AliquotaEfetivaIBSMun string      `xml:"aliquota_efetiva_ibs_mun"`
	AliquotaCBS           string      `xml:"aliquota_cbs"`
	ReducaoAliquotaCBS    string      `xml:"reducao_aliquota_cbs"`
	AliquotaEfetivaCBS    string      `xml:"aliquota_efetiva_cbs"`
	ValorTotalNF          string      `xml:"valor_total_nf"`
	TribRegular           tribRegular `xml:"gTribRegular"`
	IBS                   gIBS        `xml:"gIBS"`
	CBS                   gCBS        `xml:"gCBS"`
}

type tribRegular struct {
	PAliqEfeRegIBSUF  string `xml:"pAliqEfeRegIBSUF"`
	VTribRegIBSUF     string `xml:"vTribRegIBSUF"`
	PAliqEfeRegIBSMun string `xml:"pAliqEfeRegIBSMun"`
	VTribRegIBSMun    string `xml:"vTribRegIBSMun"`
	PAliqEfeRegCBS    string `xml:"pAliqEfeRegCBS"`
	VTribRegCBS       string `xml:"vTribRegCBS"`
}

type gIBS struct {
	ValorIBS               string `xml:"valor_ibs"`
	ValorIBSUF             string `xml:"valor_ibs_uf"`
	ValorDiferimentoIBSUF  string `xml:"valor_diferimento_ibs_uf"`
	ValorIBSMun            string `xml:"valor_ibs_mun"`
	ValorDiferimentoIBSMun string `xml:"valor_diferimento_ibs_mun"`
}

type gCBS struct {
	ValorCBS            string `xml:"valor_cbs"`
	ValorDiferimentoCBS string `xml:"valor_diferimento_cbs"`
}

type prestador struct {
	CpfCnpj string `xml:"cpfcnpj"`
	Cidade  string `xml:"cidade"`
}

type tomador struct {
	Tipo             string `xml:"tipo"`
	CpfCnpj          string `xml:"cpfcnpj"`
	NomeRazaoSocial  string `xml:"nome_razao_social"`
	Logradouro       string `xml:"logradouro"`
	NumeroResidencia string `xml:"numero_residencia"`
	Complemento      string `xml:"complemento"`
	Bairro           string `xml:"bairro"`
	Cidade           string `xml:"cidade"`
	Cep              string `xml:"cep"`
	Email            string `xml:"email"`
	DDDFoneComercial string `xml:"ddd_fone_comercial"`
	FoneComercial    string `xml:"fone_comercial"`
}

type itens struct {
	Lista []item `xml:"lista"`
}

type item struct {
	TributaMunicipioPrestador   string `xml:"tributa_municipio_prestador"`
	CodigoLocalPrestacaoServico string `xml:"codigo_local_prestacao_servico"`
	UnidadeCodigo               string `xml:"unidade_codigo"`
	UnidadeQuantidade           string `xml:"unidade_quantidade"`
	UnidadeValorUnitario        string `xml:"unidade_valor_unitario"`
	CodigoItemListaServico      string `xml:"codigo_item_lista_servico"`
	CodigoNBS                   string `xml:"codigo_nbs"`
	Descritivo                  string `xml:"descritivo"`
	AliquotaItemListaServico    string `xml:"aliquota_item_lista_servico"`
	SituacaoTributaria          string `xml:"situacao_tributaria"`
	ValorTributavel             string `xml:"valor_tributavel"`
	ValorDeducao                string `xml:"valor_deducao"`
	ValorISSRF                  string `xml:"valor_issrf"`
}

type ibscbsDocument struct {
	FinNFSe  string        `xml:"finNFSe"`
	IndFinal string        `xml:"indFinal"`
	CIndOp   string        `xml:"cIndOp"`
	Valores  ibscbsValores `xml:"valores"`
}

type ibscbsValores struct {
	Trib ibscbsTrib `xml:"trib"`
}

type ibscbsTrib struct {
	GIBSCBS gIBSCBS `xml:"gIBSCBS"`
}

type gIBSCBS struct {
	CST        string `xml:"CST"`
	CClassTrib string `xml:"cClassTrib"`
}

type formaPagamento struct {
	TipoPagamento string `xml:"tipo_pagamento"`
}
