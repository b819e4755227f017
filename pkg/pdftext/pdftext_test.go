package pdftext

import (
	"context"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/boleto-drafts/pkg/pdftext/pdftexttest"
)

func TestReader_Text(t *testing.T) {
	r := New(nil)

	text, err := r.Text(context.Background(), pdftexttest.MinimalPDF("Pagador: Ana Lima", "Boleto PIX"))
	require.NoError(t, err)
	assert.Contains(t, text, "Pagador: Ana Lima")
	assert.Contains(t, text, "Boleto PIX")
}

func TestReader_TextKeepsRows(t *testing.T) {
	r := New(nil)

	text, err := r.Text(context.Background(), pdftexttest.MinimalPDF(
		"Beneficiario: ACME LTDA",
		"CNPJ: 12.345.678/0001-90",
		"Pagador: Joao Silva",
	))
	require.NoError(t, err)
	assert.Equal(t, "Beneficiario: ACME LTDA\nCNPJ: 12.345.678/0001-90\nPagador: Joao Silva\n", text)
}

func TestLayoutRows(t *testing.T) {
	glyph := func(s string, x, y float64) pdf.Text {
		return pdf.Text{FontSize: 10, X: x, Y: y, W: 5 * float64(len(s)), S: s}
	}

	tests := []struct {
		name   string
		glyphs []pdf.Text
		want   string
	}{
		{name: "empty", want: ""},
		{
			name: "rows top to bottom",
			glyphs: []pdf.Text{
				glyph("Pagador", 10, 600),
				glyph("Cedente", 10, 700),
			},
			want: "Cedente\nPagador",
		},
		{
			name: "same baseline sorted left to right",
			glyphs: []pdf.Text{
				glyph("Loja", 200, 700),
				glyph("Nome:", 100, 700.5),
			},
			want: "Nome: Loja",
		},
		{
			name: "adjacent glyphs stay joined",
			glyphs: []pdf.Text{
				glyph("L", 100, 700),
				glyph("T", 105, 700),
				glyph("DA", 110, 700),
			},
			want: "LTDA",
		},
		{
			name: "explicit spaces are not doubled",
			glyphs: []pdf.Text{
				glyph("R$ ", 100, 700),
				glyph("10,00", 140, 700),
			},
			want: "R$ 10,00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, layoutRows(tt.glyphs))
		})
	}
}

func TestReader_Errors(t *testing.T) {
	r := New(nil)

	_, err := r.Text(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = r.Text(context.Background(), []byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrMalformed)

	truncated := pdftexttest.MinimalPDF("Pagador: Ana")[:60]
	_, err = r.Text(context.Background(), truncated)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Text(ctx, pdftexttest.MinimalPDF("Pagador: Ana"))
	assert.ErrorIs(t, err, context.Canceled)
}
