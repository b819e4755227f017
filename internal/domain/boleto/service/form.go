package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/codec"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/extractor"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/ledger"
)

// FormularioTransacao is the staging copy of the ledger row a draft will
// become.
type FormularioTransacao struct {
	EmpresaID      *int64                 `json:"empresa_id"`
	Tipo           ledger.TransactionType `json:"tipo"`
	Valor          decimal.Decimal        `json:"valor"`
	Descricao      string                 `json:"descricao"`
	DataTransacao  civil.Date             `json:"data_transacao"`
	DataVencimento *civil.Date            `json:"data_vencimento"`
	Situacao       string                 `json:"situacao"`
	Anexo          *string                `json:"anexo,omitempty"`
	NomeArquivo    *string                `json:"nome_arquivo,omitempty"`
}

var bankNames = map[string]string{
	"001": "Banco do Brasil",
	"033": "Santander",
	"041": "Banrisul",
	"070": "BRB",
	"077": "Inter",
	"104": "Caixa",
	"208": "BTG Pactual",
	"237": "Bradesco",
	"260": "Nubank",
	"336": "C6 Bank",
	"341": "Itaú",
	"422": "Safra",
	"748": "Sicredi",
	"756": "Sicoob",
}

// parseTipo defaults to saida, the usual direction for a bill being paid.
func parseTipo(raw string) (ledger.TransactionType, error) {
	if raw == "" {
		return ledger.TypeSaida, nil
	}
	t := ledger.TransactionType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: tipo must be entrada or saida", ErrInvalidInput)
	}
	return t, nil
}

func formFromMeta(meta *codec.BoletoMeta, empresaID *int64, tipo ledger.TransactionType, today civil.Date, nomeArquivo *string) FormularioTransacao {
	descricao := "Boleto banco " + meta.BankCode
	if name, ok := bankNames[meta.BankCode]; ok {
		descricao = fmt.Sprintf("Boleto %s (%s)", name, meta.BankCode)
	}

	return FormularioTransacao{
		EmpresaID:      empresaID,
		Tipo:           tipo,
		Valor:          meta.Valor,
		Descricao:      descricao,
		DataTransacao:  today,
		DataVencimento: meta.DataVencimento,
		Situacao:       ledger.SituacaoEmAberto,
		NomeArquivo:    nomeArquivo,
	}
}

func formFromHeuristic(data *extractor.HeuristicBoletoData, empresaID *int64, tipo ledger.TransactionType, today civil.Date, nomeArquivo *string) FormularioTransacao {
	prefix := "Boleto"
	if data.Tipo == extractor.DocumentPix {
		prefix = "PIX"
	}
	descricao := prefix
	if data.Beneficiario != nil {
		descricao = prefix + " - " + *data.Beneficiario
	}

	valor := decimal.Zero
	if data.Valor != nil {
		valor = *data.Valor
	}

	return FormularioTransacao{
		EmpresaID:     empresaID,
		Tipo:          tipo,
		Valor:         valor,
		Descricao:     descricao,
		DataTransacao: today,
		Situacao:      ledger.SituacaoEmAberto,
		NomeArquivo:   nomeArquivo,
	}
}

// withNomeArquivo sets nome_arquivo on a client supplied form document,
// keeping every other key as sent.
func withNomeArquivo(form json.RawMessage, nome *string) (json.RawMessage, error) {
	if nome == nil || len(form) == 0 {
		return form, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(form, &doc); err != nil || doc == nil {
		return nil, fmt.Errorf("%w: form must be a JSON object", ErrInvalidInput)
	}
	encoded, err := json.Marshal(*nome)
	if err != nil {
		return nil, err
	}
	doc["nome_arquivo"] = encoded
	return json.Marshal(doc)
}

// entryFromForm maps a stored form onto the ledger row. Missing dates fall
// back to today and a missing company falls back to the draft's.
func entryFromForm(raw json.RawMessage, draftEmpresa *int64, linha string, today civil.Date) (ledger.Entry, error) {
	var form FormularioTransacao
	if len(raw) == 0 || string(raw) == "null" {
		return ledger.Entry{}, fmt.Errorf("%w: draft has no form", ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, &form); err != nil {
		return ledger.Entry{}, fmt.Errorf("%w: stored form is unreadable: %v", ErrInvalidInput, err)
	}

	empresa := form.EmpresaID
	if empresa == nil {
		empresa = draftEmpresa
	}
	if empresa == nil {
		return ledger.Entry{}, fmt.Errorf("%w: empresa_id is required to finalize", ErrInvalidInput)
	}

	tipo, err := parseTipo(string(form.Tipo))
	if err != nil {
		return ledger.Entry{}, err
	}

	dataTransacao := form.DataTransacao
	if !dataTransacao.IsValid() {
		dataTransacao = today
	}

	return ledger.Entry{
		EmpresaID:      *empresa,
		Tipo:           tipo,
		Valor:          form.Valor,
		Descricao:      form.Descricao,
		DataTransacao:  dataTransacao,
		DataVencimento: form.DataVencimento,
		Situacao:       ledger.SituacaoEmAberto,
		Anexo:          form.Anexo,
		NomeArquivo:    form.NomeArquivo,
		LinhaDigitavel: linha,
	}, nil
}
