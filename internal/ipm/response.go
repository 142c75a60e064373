package ipm

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ParseResponse reads the gateway's <retorno> document. Success is decided by the
// sucesso element, never by the HTTP status. A body that cannot be parsed yields
// an unsuccessful result describing the problem.
func ParseResponse(raw string) *SubmitResult {
	result := &SubmitResult{RawResponse: raw}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		result.Messages = []string{fmt.Sprintf("Response parsing error: %v", err)}
		return result
	}
	root := doc.Root()
	if root == nil {
		result.Messages = []string{"Empty response from IPM"}
		return result
	}

	result.Success = strings.EqualFold(strings.TrimSpace(childText(root, "sucesso")), "true")
	result.InvoiceNumber = childText(root, "numero_nfse")
	result.Protocol = result.InvoiceNumber
	result.VerificationCode = childText(root, "cod_verificador_autenticidade")
	result.PdfURL = childText(root, "link_pdf")

	if msg := childText(root, "mensagem"); msg != "" {
		result.Messages = append(result.Messages, msg)
	}
	items := append(root.FindElements(".//erro"), root.FindElements(".//aviso")...)
	for _, item := range items {
		desc := innerText(item)
		if d := item.SelectElement("descricao"); d != nil {
			desc = innerText(d)
		}
		result.Messages = append(result.Messages, fmt.Sprintf("[%s] %s", childText(item, "codigo"), desc))
	}
	return result
}

func childText(el *etree.Element, tag string) string {
	child := el.SelectElement(tag)
	if child == nil {
		return ""
	}
	return innerText(child)
}

// innerText concatenates every text node under el
func innerText(el *etree.Element) string {
	var b strings.Builder
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			b.WriteString(innerText(t))
		}
	}
	return b.String()
}
