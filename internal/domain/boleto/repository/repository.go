// Package repository provides database operations for boleto drafts.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/ledger"
)

var (
	ErrDraftNotFound = errors.New("draft not found")
	// ErrDraftConflict means the draft exists but is no longer a rascunho.
	ErrDraftConflict = errors.New("draft is not editable")
)

// DraftStatus is the lifecycle state of a draft
type DraftStatus string

const (
	StatusRascunho   DraftStatus = "rascunho"
	StatusFinalizado DraftStatus = "finalizado"
)

// Valid reports whether s is a known status.
func (s DraftStatus) Valid() bool {
	return s == StatusRascunho || s == StatusFinalizado
}

// Draft is a persisted, still editable result of a boleto decode or PDF import.
// BoletoMeta and Formulario hold JSON; unreadable stored values come back as
// JSON null.
type Draft struct {
	ID             int64
	UsuarioID      *int64
	EmpresaID      *int64
	LinhaDigitavel string
	BoletoMeta     json.RawMessage
	Formulario     json.RawMessage
	Status         DraftStatus
	CriadoEm       time.Time
	AtualizadoEm   time.Time
}

// DraftChanges lists the columns an update may touch. Nil fields keep the
// stored value.
type DraftChanges struct {
	LinhaDigitavel *string
	BoletoMeta     json.RawMessage
	Formulario     json.RawMessage
}

// ListFilter narrows List. EmpresaID is mandatory.
type ListFilter struct {
	EmpresaID int64
	UsuarioID *int64
	Status    *DraftStatus
	Limit     int
}

// EntryBuilder turns the locked draft into the ledger row written on finalize.
type EntryBuilder func(d *Draft) (ledger.Entry, error)

// DraftRepository defines the interface for draft persistence operations
type DraftRepository interface {
	Create(ctx context.Context, d *Draft) error
	Get(ctx context.Context, id int64) (*Draft, error)
	Update(ctx context.Context, id int64, changes DraftChanges) (*Draft, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]*Draft, error)
	// Latest returns the most recently updated rascunho. Nil filters match
	// any owner or company.
	Latest(ctx context.Context, usuarioID, empresaID *int64) (*Draft, error)

	// Finalize locks the draft, inserts the ledger row built from it and
	// flips the draft to finalizado, all in one transaction.
	Finalize(ctx context.Context, id int64, build EntryBuilder) (transacaoID int64, err error)

	// PurgeStale deletes rascunho drafts last updated before cutoff.
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pool is the subset of *pgxpool.Pool used by the repository; pgxmock pools
// satisfy it too.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
