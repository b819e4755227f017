// Package extractor classifies the text of a payment slip PDF. A printed
// 47-digit linha digitável always wins; otherwise PIX and traditional slips are
// recognised by keywords and their fields are read heuristically.
package extractor

import (
	"regexp"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/codec"
	"github.com/FACorreiaa/boleto-drafts/pkg/money"
)

// Kind tags the variant held by a Result.
type Kind string

const (
	KindLinhaDigitavel Kind = "linha_digitavel"
	KindHeuristic      Kind = "heuristic"
	KindUnrecognized   Kind = "unrecognized"
)

// DocumentType is the slip family detected by keyword classification.
type DocumentType string

const (
	DocumentPix               DocumentType = "pix"
	DocumentBoletoTradicional DocumentType = "boleto_tradicional"
)

// HeuristicBoletoData holds whatever could be read from a slip without a
// linha digitável. Every field except Tipo may be missing.
type HeuristicBoletoData struct {
	Tipo                DocumentType     `json:"tipo"`
	Valor               *decimal.Decimal `json:"valor"`
	Beneficiario        *string          `json:"beneficiario"`
	Pagador             *string          `json:"pagador"`
	CNPJCPFBeneficiario *string          `json:"cnpj_cpf_beneficiario"`
	CNPJCPFPagador      *string          `json:"cnpj_cpf_pagador"`
}

// Result is the outcome of Extract. LinhaDigitavel is set for
// KindLinhaDigitavel and Heuristic for KindHeuristic.
type Result struct {
	Kind           Kind
	LinhaDigitavel string
	Heuristic      *HeuristicBoletoData
}

// keyword indexes, in the order passed to the matcher
const (
	kwPagador = iota
	kwBeneficiario
	kwPix
)

var keywords = []string{"pagador", "beneficiario", "pix"}

// valorPattern takes the whole amount after "R$" and leaves the separator
// reading ("1.234" vs "12.34") to money.ParseBRL.
var valorPattern = regexp.MustCompile(`R\$\s*(\d[\d.,]*\d|\d)`)

// Extractor is safe for concurrent use.
type Extractor struct {
	linhaPatterns []*regexp.Regexp

	mu      sync.Mutex // the Aho-Corasick matcher keeps per-call state
	matcher *ahocorasick.Matcher
}

// New builds an Extractor with the FEBRABAN digit patterns and the keyword
// automaton.
func New() *Extractor {
	return &Extractor{
		linhaPatterns: []*regexp.Regexp{
			// 23790.12343 56789.012343 56789.012343 5 35000000010050
			regexp.MustCompile(`\d{5}\.\d{5}\d{5}\.\d{6}\d{5}\.\d{6}\d\d{14}`),
			regexp.MustCompile(`(?:^|\D)(\d{47})(?:\D|$)`),
			regexp.MustCompile(`\d{5}[.\-]\d{5}[.\-]?\d{5}[.\-]\d{6}[.\-]?\d{5}[.\-]\d{6}[.\-]?\d[.\-]?\d{14}`),
		},
		matcher: ahocorasick.NewStringMatcher(keywords),
	}
}

// Extract never fails. Callers must reject KindUnrecognized.
func (e *Extractor) Extract(text string) Result {
	if linha, ok := e.findLinhaDigitavel(text); ok {
		return Result{Kind: KindLinhaDigitavel, LinhaDigitavel: linha}
	}

	found := e.keywordsIn(Fold(text))
	if !found[kwPagador] && !found[kwBeneficiario] && !found[kwPix] {
		return Result{Kind: KindUnrecognized}
	}

	data := &HeuristicBoletoData{Tipo: DocumentBoletoTradicional}
	if found[kwPix] {
		data.Tipo = DocumentPix
	}

	fields := parseLabels(text)
	data.Valor = findValor(text, fields)
	data.Beneficiario = fields.lookup(labelBeneficiario, labelBeneficiarioFinal)
	data.Pagador = fields.lookup(labelPagador, labelPagadorFinal)
	data.CNPJCPFBeneficiario = fields.document(partyBeneficiario)
	data.CNPJCPFPagador = fields.document(partyPagador)

	return Result{Kind: KindHeuristic, Heuristic: data}
}

func (e *Extractor) findLinhaDigitavel(text string) (string, bool) {
	collapsed := strings.Join(strings.Fields(text), "")
	for _, re := range e.linhaPatterns {
		for _, m := range re.FindAllStringSubmatch(collapsed, -1) {
			candidate := m[len(m)-1]
			if digits := codec.OnlyDigits(candidate); len(digits) == codec.LinhaDigitavelLength {
				return digits, true
			}
		}
	}
	return "", false
}

func (e *Extractor) keywordsIn(folded string) [3]bool {
	e.mu.Lock()
	hits := e.matcher.Match([]byte(folded))
	e.mu.Unlock()

	var found [3]bool
	for _, idx := range hits {
		if idx >= 0 && idx < len(found) {
			found[idx] = true
		}
	}
	return found
}

// findValor takes the first "R$ <amount>" in the text, falling back to the
// labelled "Valor do Documento" field.
func findValor(text string, fields labeledFields) *decimal.Decimal {
	if m := valorPattern.FindStringSubmatch(text); m != nil {
		if v, err := money.ParseBRL(m[1]); err == nil {
			return &v
		}
	}
	if raw, ok := fields.values[labelValorDocumento]; ok {
		if v, err := money.ParseBRL(raw); err == nil {
			return &v
		}
	}
	return nil
}
