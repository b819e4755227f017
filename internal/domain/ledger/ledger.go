// Package ledger writes rows into the external transacoes table. Only the
// single insert performed when a draft is finalized lives here.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger row.
type TransactionType string

const (
	TypeEntrada TransactionType = "entrada"
	TypeSaida   TransactionType = "saida"
)

// Valid reports whether t is a known direction.
func (t TransactionType) Valid() bool {
	return t == TypeEntrada || t == TypeSaida
}

// SituacaoEmAberto is the only situação a finalized draft is written with.
const SituacaoEmAberto = "em_aberto"

var ErrInvalidEntry = errors.New("invalid ledger entry")

// Entry is one transacoes row.
type Entry struct {
	EmpresaID      int64
	UsuarioID      *int64
	Tipo           TransactionType
	Valor          decimal.Decimal
	Descricao      string
	DataTransacao  civil.Date
	DataVencimento *civil.Date
	Situacao       string
	Anexo          *string
	NomeArquivo    *string
	LinhaDigitavel string
	DraftID        int64
}

// Querier is satisfied by pgx.Tx, *pgxpool.Pool and pgxmock.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const insertQuery = `
		INSERT INTO transacoes (
			empresa_id, usuario_id, tipo, valor, descricao, data_transacao, data_vencimento,
			situacao, anexo, nome_arquivo, linha_digitavel, boleto_draft_id
		)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

// Insert writes e and returns the new transacao id. It runs on whatever q is,
// so callers control the transaction.
func Insert(ctx context.Context, q Querier, e Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	situacao := e.Situacao
	if situacao == "" {
		situacao = SituacaoEmAberto
	}

	var id int64
	err := q.QueryRow(ctx, insertQuery,
		e.EmpresaID,
		e.UsuarioID,
		string(e.Tipo),
		e.Valor.StringFixed(2),
		e.Descricao,
		dateArg(&e.DataTransacao),
		dateArg(e.DataVencimento),
		situacao,
		e.Anexo,
		e.NomeArquivo,
		e.LinhaDigitavel,
		e.DraftID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transacao: %w", err)
	}
	return id, nil
}

// Validate reports the checks Insert runs before writing.
func (e Entry) Validate() error {
	switch {
	case e.EmpresaID <= 0:
		return fmt.Errorf("%w: empresa_id is required", ErrInvalidEntry)
	case !e.Tipo.Valid():
		return fmt.Errorf("%w: tipo %q", ErrInvalidEntry, e.Tipo)
	case e.Valor.IsNegative():
		return fmt.Errorf("%w: negative valor", ErrInvalidEntry)
	case !e.DataTransacao.IsValid():
		return fmt.Errorf("%w: data_transacao is required", ErrInvalidEntry)
	}
	return nil
}

// dateArg maps a civil date onto a UTC midnight for the DATE column.
func dateArg(d *civil.Date) *time.Time {
	if d == nil || !d.IsValid() {
		return nil
	}
	t := d.In(time.UTC)
	return &t
}
