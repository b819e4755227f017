// Package codec converts between the 47-digit linha digitável printed on a
// boleto and the 44-digit FEBRABAN barcode it encodes.
//
// Layout of the 47-digit form:
//
//	campo1 [0:9]   dv1 [9]
//	campo2 [10:20] dv2 [20]
//	campo3 [21:31] dv3 [31]
//	dv geral [32]  fator [33:37]  valor [37:47]
//
// The barcode is bank(3) + currency(1) + dv geral(1) + fator(4) + valor(10) +
// free field(25), where the free field is campo1[4:] + campo2 + campo3.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/boleto-drafts/pkg/money"
)

const (
	LinhaDigitavelLength = 47
	BarcodeLength        = 44
)

var (
	ErrInvalidLength = errors.New("linha digitável must have exactly 47 digits")
	ErrInvalidValue  = errors.New("invalid numeric field")
	ErrAssembly      = errors.New("barcode assembly produced wrong length")
)

// dueDateEpoch is the FEBRABAN reference date for fator de vencimento.
var dueDateEpoch = time.Date(1997, time.October, 7, 0, 0, 0, 0, time.UTC)

// BoletoMeta is the decoded content of a linha digitável. It is never mutated
// after Decode returns it.
type BoletoMeta struct {
	BankCode        string          `json:"bank_code"`
	CurrencyCode    string          `json:"currency_code"`
	DVBarcode       string          `json:"dv_barcode"`
	FatorVencimento string          `json:"fator_vencimento"`
	Valor           decimal.Decimal `json:"valor"`
	DataVencimento  *civil.Date     `json:"data_vencimento"`
	Barcode         string          `json:"barcode"`
	LinhaDigitavel  string          `json:"linha_digitavel"`

	// free field, kept so Encode does not depend on LinhaDigitavel
	freeField string
}

// field offsets inside the 47-digit form
type fields struct {
	campo1, campo2, campo3 string
	dv1, dv2, dv3          string
	dvGeral                string
	fator                  string
	valor                  string
}

func split(digits string) fields {
	return fields{
		campo1:  digits[0:9],
		dv1:     digits[9:10],
		campo2:  digits[10:20],
		dv2:     digits[20:21],
		campo3:  digits[21:31],
		dv3:     digits[31:32],
		dvGeral: digits[32:33],
		fator:   digits[33:37],
		valor:   digits[37:47],
	}
}

// OnlyDigits drops every non-digit character.
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Decode parses a linha digitável. Punctuation and spaces are ignored.
// Check digits are passed through as printed and never validated here; use
// Verify for diagnostics.
func Decode(raw string) (*BoletoMeta, error) {
	digits := OnlyDigits(raw)
	if len(digits) != LinhaDigitavelLength {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, len(digits))
	}

	f := split(digits)
	free := f.campo1[4:] + f.campo2 + f.campo3
	meta := &BoletoMeta{
		BankCode:        f.campo1[0:3],
		CurrencyCode:    f.campo1[3:4],
		DVBarcode:       f.dvGeral,
		FatorVencimento: f.fator,
		LinhaDigitavel:  digits,
		freeField:       free,
	}

	barcode, err := meta.Encode()
	if err != nil {
		return nil, err
	}
	meta.Barcode = barcode

	cents, err := strconv.ParseInt(f.valor, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: valor %q", ErrInvalidValue, f.valor)
	}
	meta.Valor = money.CentsToDecimal(cents)
	meta.DataVencimento = DueDate(f.fator)

	return meta, nil
}

// DueDate resolves a fator de vencimento. Non-positive or unparsable factors
// mean the slip has no due date.
func DueDate(fator string) *civil.Date {
	n, err := strconv.Atoi(fator)
	if err != nil || n <= 0 {
		return nil
	}
	d := civil.DateOf(dueDateEpoch.AddDate(0, 0, n))
	return &d
}

// Encode assembles the 44-digit barcode from the decoded fields.
func (m *BoletoMeta) Encode() (string, error) {
	free := m.freeField
	if free == "" && len(m.Barcode) == BarcodeLength {
		free = m.Barcode[19:]
	}

	barcode := m.BankCode + m.CurrencyCode + m.DVBarcode + m.FatorVencimento + m.valorField() + free
	if len(barcode) != BarcodeLength {
		return "", fmt.Errorf("%w: %d digits", ErrAssembly, len(barcode))
	}
	return barcode, nil
}

// valorField renders the amount as the 10-digit cents field. For decoded
// metas it is read back from the linha digitável so the digits are preserved
// exactly.
func (m *BoletoMeta) valorField() string {
	if len(m.LinhaDigitavel) == LinhaDigitavelLength {
		return m.LinhaDigitavel[37:47]
	}
	cents := money.NewFromDecimal(m.Valor, money.BRL).Amount()
	return fmt.Sprintf("%010d", cents)
}

// ValorCents returns the amount in centavos.
func (m *BoletoMeta) ValorCents() int64 {
	return money.NewFromDecimal(m.Valor, money.BRL).Amount()
}
