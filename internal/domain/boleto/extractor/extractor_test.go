package extractor

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bradescoLinha = "23790123435678901234356789012343535000000010050"

func TestExtract_LinhaDigitavel(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "dotted display format",
			text: "Banco Bradesco\n23790.12343 56789.012343 56789.012343 5 35000000010050\nLocal de pagamento",
		},
		{
			name: "bare digit run",
			text: "Linha digitável: " + bradescoLinha + " vencimento 08/05/2007",
		},
		{
			name: "dashed grouping",
			text: "23790-12343 56789-012343 56789-012343 5 35000000010050",
		},
		{
			name: "digits beat pix keywords",
			text: "Pague com PIX ou boleto\nBeneficiário: ACME LTDA\nPagador: Fulano\n" +
				"23790.12343 56789.012343 56789.012343 5 35000000010050",
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract(tt.text)
			require.Equal(t, KindLinhaDigitavel, res.Kind)
			assert.Equal(t, bradescoLinha, res.LinhaDigitavel)
			assert.Nil(t, res.Heuristic)
		})
	}
}

func TestExtract_RejectsLongerDigitRuns(t *testing.T) {
	res := New().Extract("Protocolo " + bradescoLinha + "99 sem rótulos")
	assert.Equal(t, KindUnrecognized, res.Kind)
}

func TestExtract_BoletoTradicional(t *testing.T) {
	text := `BOLETO BANCÁRIO
Beneficiário Final: Empresa Exemplo LTDA
CNPJ: 12.345.678/0001-90
Pagador: João da Silva
CPF: 123.456.789-09
Valor do Documento: R$ 1.234,56`

	res := New().Extract(text)
	require.Equal(t, KindHeuristic, res.Kind)
	data := res.Heuristic
	require.NotNil(t, data)

	assert.Equal(t, DocumentBoletoTradicional, data.Tipo)
	require.NotNil(t, data.Beneficiario)
	assert.Equal(t, "Empresa Exemplo LTDA", *data.Beneficiario)
	require.NotNil(t, data.Pagador)
	assert.Equal(t, "João da Silva", *data.Pagador)
	require.NotNil(t, data.CNPJCPFBeneficiario)
	assert.Equal(t, "12.345.678/0001-90", *data.CNPJCPFBeneficiario)
	require.NotNil(t, data.CNPJCPFPagador)
	assert.Equal(t, "123.456.789-09", *data.CNPJCPFPagador)
	require.NotNil(t, data.Valor)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(*data.Valor))
}

func TestExtract_Pix(t *testing.T) {
	text := "Boleto PIX\nRecebedor: Loja Online\nValor R$ 89,90"

	res := New().Extract(text)
	require.Equal(t, KindHeuristic, res.Kind)
	assert.Equal(t, DocumentPix, res.Heuristic.Tipo)
	require.NotNil(t, res.Heuristic.Beneficiario)
	assert.Equal(t, "Loja Online", *res.Heuristic.Beneficiario)
	assert.Nil(t, res.Heuristic.Pagador)
	require.NotNil(t, res.Heuristic.Valor)
	assert.True(t, decimal.RequireFromString("89.90").Equal(*res.Heuristic.Valor))
}

func TestExtract_Unrecognized(t *testing.T) {
	for _, text := range []string{
		"",
		"Relatório anual de atividades. Nenhuma cobrança anexada.",
		"Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
	} {
		res := New().Extract(text)
		assert.Equal(t, KindUnrecognized, res.Kind, "text %q", text)
		assert.Nil(t, res.Heuristic)
		assert.Empty(t, res.LinhaDigitavel)
	}
}

func TestExtract_DocumentAttribution(t *testing.T) {
	tests := []struct {
		name                 string
		text                 string
		wantBeneficiarioDoc  *string
		wantPagadorDoc       *string
		wantBeneficiarioName string
		wantPagadorName      string
	}{
		{
			name:                 "pagador listed first",
			text:                 "Pagador: Maria Souza\nCPF: 987.654.321-00\nBeneficiário: Loja X\nCNPJ: 11.222.333/0001-81",
			wantBeneficiarioDoc:  ptr("11.222.333/0001-81"),
			wantPagadorDoc:       ptr("987.654.321-00"),
			wantBeneficiarioName: "Loja X",
			wantPagadorName:      "Maria Souza",
		},
		{
			name:                 "document on the label line",
			text:                 "Beneficiário: Loja X - CNPJ: 11.222.333/0001-81\nPagador: Maria Souza CPF 98765432100",
			wantBeneficiarioDoc:  ptr("11.222.333/0001-81"),
			wantPagadorDoc:       ptr("98765432100"),
			wantBeneficiarioName: "Loja X",
			wantPagadorName:      "Maria Souza",
		},
		{
			name:                 "orphan document goes to the missing party",
			text:                 "CNPJ: 11.222.333/0001-81\nBeneficiário: Loja X\nPagador: Maria Souza\nCPF: 987.654.321-00",
			wantBeneficiarioDoc:  ptr("11.222.333/0001-81"),
			wantPagadorDoc:       ptr("987.654.321-00"),
			wantBeneficiarioName: "Loja X",
			wantPagadorName:      "Maria Souza",
		},
		{
			name:                 "sacador avalista is not a party",
			text:                 "Beneficiário: Loja X\nSacador/Avalista: Banco Y CNPJ: 00.000.000/0001-91\nPagador: Maria Souza",
			wantBeneficiarioDoc:  nil,
			wantPagadorDoc:       nil,
			wantBeneficiarioName: "Loja X",
			wantPagadorName:      "Maria Souza",
		},
		{
			name:                 "party named after the document label",
			text:                 "Pagador: Maria Souza\nBeneficiário: Loja X\nCPF/CNPJ do Pagador: 987.654.321-00",
			wantBeneficiarioDoc:  nil,
			wantPagadorDoc:       ptr("987.654.321-00"),
			wantBeneficiarioName: "Loja X",
			wantPagadorName:      "Maria Souza",
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract(tt.text)
			require.Equal(t, KindHeuristic, res.Kind)
			data := res.Heuristic

			assert.Equal(t, tt.wantBeneficiarioDoc, data.CNPJCPFBeneficiario)
			assert.Equal(t, tt.wantPagadorDoc, data.CNPJCPFPagador)
			require.NotNil(t, data.Beneficiario)
			assert.Equal(t, tt.wantBeneficiarioName, *data.Beneficiario)
			require.NotNil(t, data.Pagador)
			assert.Equal(t, tt.wantPagadorName, *data.Pagador)
		})
	}
}

func TestExtract_LabelTolerance(t *testing.T) {
	t.Run("typo in label", func(t *testing.T) {
		res := New().Extract("Benefciario: ACME SA\nPagador: Ana Lima")
		require.Equal(t, KindHeuristic, res.Kind)
		require.NotNil(t, res.Heuristic.Beneficiario)
		assert.Equal(t, "ACME SA", *res.Heuristic.Beneficiario)
		require.NotNil(t, res.Heuristic.Pagador)
		assert.Equal(t, "Ana Lima", *res.Heuristic.Pagador)
	})

	t.Run("value on the next line", func(t *testing.T) {
		res := New().Extract("Beneficiário\nACME SA\nPagador\nAna Lima")
		require.Equal(t, KindHeuristic, res.Kind)
		require.NotNil(t, res.Heuristic.Beneficiario)
		assert.Equal(t, "ACME SA", *res.Heuristic.Beneficiario)
		require.NotNil(t, res.Heuristic.Pagador)
		assert.Equal(t, "Ana Lima", *res.Heuristic.Pagador)
	})

	t.Run("valor from the labelled field", func(t *testing.T) {
		res := New().Extract("Pagador: Ana Lima\nValor do Documento 150,00")
		require.Equal(t, KindHeuristic, res.Kind)
		require.NotNil(t, res.Heuristic.Valor)
		assert.True(t, decimal.RequireFromString("150").Equal(*res.Heuristic.Valor))
	})
}

func TestExtract_Valor(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "Pagador: Ana\nValor R$ 1.234", want: "1234"},
		{text: "Pagador: Ana\nValor R$ 1.234,56", want: "1234.56"},
		{text: "Pagador: Ana\nValor R$1.234.567,89", want: "1234567.89"},
		{text: "Pagador: Ana\nTotal: R$ 150,00.", want: "150"},
		{text: "Pagador: Ana\nR$ 89.90", want: "89.9"},
		{text: "Pagador: Ana\nR$ 7", want: "7"},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := e.Extract(tt.text)
			require.Equal(t, KindHeuristic, res.Kind)
			require.NotNil(t, res.Heuristic.Valor)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(*res.Heuristic.Valor), "got %s", res.Heuristic.Valor)
		})
	}
}

func TestExtract_InlineLabels(t *testing.T) {
	t.Run("label after a heading on the same row", func(t *testing.T) {
		res := New().Extract("Recibo do Pagador Nome do Beneficiário: Loja Y\nPagador: Ana Lima")
		require.Equal(t, KindHeuristic, res.Kind)
		require.NotNil(t, res.Heuristic.Beneficiario)
		assert.Equal(t, "Loja Y", *res.Heuristic.Beneficiario)
		require.NotNil(t, res.Heuristic.Pagador)
		assert.Equal(t, "Ana Lima", *res.Heuristic.Pagador)
	})

	t.Run("two parties on one row", func(t *testing.T) {
		res := New().Extract("Beneficiário: Loja Y CNPJ: 11.222.333/0001-81   Pagador: Ana Lima CPF: 987.654.321-00")
		require.Equal(t, KindHeuristic, res.Kind)
		data := res.Heuristic
		require.NotNil(t, data.Beneficiario)
		assert.Equal(t, "Loja Y", *data.Beneficiario)
		require.NotNil(t, data.Pagador)
		assert.Equal(t, "Ana Lima", *data.Pagador)
		assert.Equal(t, ptr("11.222.333/0001-81"), data.CNPJCPFBeneficiario)
		assert.Equal(t, ptr("987.654.321-00"), data.CNPJCPFPagador)
	})

	t.Run("run together text without separators", func(t *testing.T) {
		res := New().Extract("Beneficiario: ACME LTDACNPJ: 12.345.678/0001-90Pagador: Joao SilvaCPF: 123.456.789-09Valor R$ 150,00")
		require.Equal(t, KindHeuristic, res.Kind)
		data := res.Heuristic
		require.NotNil(t, data.Beneficiario)
		assert.Equal(t, "ACME LTDA", *data.Beneficiario)
		require.NotNil(t, data.Pagador)
		assert.Equal(t, "Joao Silva", *data.Pagador)
		assert.Equal(t, ptr("12.345.678/0001-90"), data.CNPJCPFBeneficiario)
		assert.Equal(t, ptr("123.456.789-09"), data.CNPJCPFPagador)
		require.NotNil(t, data.Valor)
		assert.True(t, decimal.RequireFromString("150").Equal(*data.Valor))
	})

	t.Run("document label naming the party stays whole", func(t *testing.T) {
		res := New().Extract("Beneficiário: Loja Y CPF/CNPJ do Pagador: 987.654.321-00\nPagador: Ana Lima")
		require.Equal(t, KindHeuristic, res.Kind)
		data := res.Heuristic
		require.NotNil(t, data.Beneficiario)
		assert.Equal(t, "Loja Y", *data.Beneficiario)
		assert.Nil(t, data.CNPJCPFBeneficiario)
		assert.Equal(t, ptr("987.654.321-00"), data.CNPJCPFPagador)
	})
}

func TestLabelSegments(t *testing.T) {
	assert.Equal(t,
		[]string{"Recibo do Pagador ", "Nome do Beneficiário: Loja Y"},
		labelSegments("Recibo do Pagador Nome do Beneficiário: Loja Y"))
	assert.Equal(t,
		[]string{"Beneficiário Final: A ", "Sacador/Avalista: B"},
		labelSegments("Beneficiário Final: A Sacador/Avalista: B"))
	assert.Equal(t,
		[]string{"CPF/CNPJ do Pagador: 987.654.321-00"},
		labelSegments("CPF/CNPJ do Pagador: 987.654.321-00"))
	assert.Equal(t, []string{"  Pagador: Ana"}, labelSegments("  Pagador: Ana"))
}

func TestExtract_Concurrent(t *testing.T) {
	e := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := e.Extract("Boleto PIX\nPagador: Ana")
			assert.Equal(t, DocumentPix, res.Heuristic.Tipo)
		}()
	}
	wg.Wait()
}

func TestFold(t *testing.T) {
	assert.Equal(t, "beneficiario", Fold("Beneficiário"))
	assert.Equal(t, "joao acao", Fold("JOÃO AÇÃO"))

	folded, offsets := foldWithOffsets("Ação: x")
	assert.Equal(t, "acao: x", folded)
	assert.Len(t, offsets, len(folded)+1)
	assert.Equal(t, len("Ação"), offsets[4])
}

func ptr(s string) *string { return &s }
