package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/ledger"
)

const draftColumns = `id, usuario_id, empresa_id, linha_digitavel, boleto_meta, formulario, status, criado_em, atualizado_em`

const defaultListLimit = 100

// PostgresDraftRepository implements DraftRepository using PostgreSQL
type PostgresDraftRepository struct {
	pool Pool
}

// NewPostgresDraftRepository creates a new PostgreSQL draft repository
func NewPostgresDraftRepository(pool Pool) *PostgresDraftRepository {
	return &PostgresDraftRepository{pool: pool}
}

// Create inserts a new rascunho and fills in its id and timestamps
func (r *PostgresDraftRepository) Create(ctx context.Context, d *Draft) error {
	query := `
		INSERT INTO boleto_drafts (usuario_id, empresa_id, linha_digitavel, boleto_meta, formulario, status)
		VALUES ($1, $2, $3, $4, $5, 'rascunho')
		RETURNING id, criado_em, atualizado_em`

	err := r.pool.QueryRow(ctx, query,
		d.UsuarioID,
		d.EmpresaID,
		d.LinhaDigitavel,
		jsonText(d.BoletoMeta),
		jsonText(d.Formulario),
	).Scan(&d.ID, &d.CriadoEm, &d.AtualizadoEm)
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	d.Status = StatusRascunho
	return nil
}

// Get retrieves a draft by id
func (r *PostgresDraftRepository) Get(ctx context.Context, id int64) (*Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM boleto_drafts WHERE id = $1`

	d, err := scanDraft(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return d, nil
}

// Update applies changes to a rascunho. Finalized drafts are never touched.
func (r *PostgresDraftRepository) Update(ctx context.Context, id int64, changes DraftChanges) (*Draft, error) {
	query := `
		UPDATE boleto_drafts
		SET linha_digitavel = COALESCE($2, linha_digitavel),
			boleto_meta = COALESCE($3, boleto_meta),
			formulario = COALESCE($4, formulario),
			atualizado_em = NOW()
		WHERE id = $1 AND status = 'rascunho'
		RETURNING ` + draftColumns

	d, err := scanDraft(r.pool.QueryRow(ctx, query,
		id,
		changes.LinhaDigitavel,
		optionalJSONText(changes.BoletoMeta),
		optionalJSONText(changes.Formulario),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missingOrLocked(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	return d, nil
}

// Delete removes a rascunho
func (r *PostgresDraftRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM boleto_drafts WHERE id = $1 AND status = 'rascunho'`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missingOrLocked(ctx, id)
	}
	return nil
}

// List retrieves the drafts of a company, most recently updated first
func (r *PostgresDraftRepository) List(ctx context.Context, filter ListFilter) ([]*Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM boleto_drafts WHERE empresa_id = $1`

	args := []interface{}{filter.EmpresaID}
	if filter.UsuarioID != nil {
		args = append(args, *filter.UsuarioID)
		query += fmt.Sprintf(` AND usuario_id = $%d`, len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY atualizado_em DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]*Draft, 0)
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drafts: %w", err)
	}
	return drafts, nil
}

// Latest returns the most recently updated rascunho matching the filters
func (r *PostgresDraftRepository) Latest(ctx context.Context, usuarioID, empresaID *int64) (*Draft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM boleto_drafts
		WHERE status = 'rascunho'
			AND ($1::bigint IS NULL OR usuario_id = $1)
			AND ($2::bigint IS NULL OR empresa_id = $2)
		ORDER BY atualizado_em DESC, id DESC
		LIMIT 1`

	d, err := scanDraft(r.pool.QueryRow(ctx, query, usuarioID, empresaID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest draft: %w", err)
	}
	return d, nil
}

// Finalize promotes a rascunho into one transacoes row
func (r *PostgresDraftRepository) Finalize(ctx context.Context, id int64, build EntryBuilder) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockQuery := `SELECT ` + draftColumns + ` FROM boleto_drafts WHERE id = $1 FOR UPDATE`
	d, err := scanDraft(tx.QueryRow(ctx, lockQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrDraftNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock draft: %w", err)
	}
	if d.Status != StatusRascunho {
		return 0, ErrDraftConflict
	}

	entry, err := build(d)
	if err != nil {
		return 0, err
	}
	entry.DraftID = d.ID

	transacaoID, err := ledger.Insert(ctx, tx, entry)
	if err != nil {
		return 0, err
	}

	flipQuery := `
		UPDATE boleto_drafts
		SET status = 'finalizado', atualizado_em = NOW()
		WHERE id = $1 AND status = 'rascunho'`
	result, err := tx.Exec(ctx, flipQuery, id)
	if err != nil {
		return 0, fmt.Errorf("failed to finalize draft: %w", err)
	}
	if result.RowsAffected() == 0 {
		return 0, ErrDraftConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit finalize: %w", err)
	}
	return transacaoID, nil
}

// PurgeStale deletes abandoned rascunhos
func (r *PostgresDraftRepository) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM boleto_drafts WHERE status = 'rascunho' AND atualizado_em < $1`
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge drafts: %w", err)
	}
	return result.RowsAffected(), nil
}

// missingOrLocked tells apart the two reasons a guarded statement matched no
// row.
func (r *PostgresDraftRepository) missingOrLocked(ctx context.Context, id int64) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM boleto_drafts WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDraftNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check draft status: %w", err)
	}
	return ErrDraftConflict
}

func scanDraft(row pgx.Row) (*Draft, error) {
	var (
		d          Draft
		meta, form *string // JSONB columns are nullable
		status     string
	)
	err := row.Scan(
		&d.ID,
		&d.UsuarioID,
		&d.EmpresaID,
		&d.LinhaDigitavel,
		&meta,
		&form,
		&status,
		&d.CriadoEm,
		&d.AtualizadoEm,
	)
	if err != nil {
		return nil, err
	}
	d.BoletoMeta = parseStoredJSON(meta)
	d.Formulario = parseStoredJSON(form)
	d.Status = DraftStatus(status)
	return &d, nil
}

var jsonNull = json.RawMessage("null")

// parseStoredJSON returns the stored text when it is valid JSON and null
// otherwise, SQL NULL included.
func parseStoredJSON(s *string) json.RawMessage {
	if s == nil || *s == "" || !json.Valid([]byte(*s)) {
		return jsonNull
	}
	return json.RawMessage(*s)
}

func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return string(jsonNull)
	}
	return string(raw)
}

func optionalJSONText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}
