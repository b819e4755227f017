// Package repotest provides an in-memory DraftRepository for tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/repository"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/ledger"
)

// MemoryRepository mirrors the status guards of the Postgres repository.
// Finalized ledger entries are kept in Ledger.
type MemoryRepository struct {
	mu     sync.Mutex
	drafts map[int64]*repository.Draft
	nextID int64

	Ledger []ledger.Entry
	// FailLedger makes Finalize fail after the builder ran, as a failed
	// insert would.
	FailLedger error
}

var _ repository.DraftRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{drafts: make(map[int64]*repository.Draft)}
}

// Count returns the number of stored drafts.
func (m *MemoryRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drafts)
}

func (m *MemoryRepository) Create(_ context.Context, d *repository.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := time.Now()
	d.ID = m.nextID
	d.Status = repository.StatusRascunho
	d.CriadoEm, d.AtualizadoEm = now, now
	m.drafts[d.ID] = clone(d)
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id int64) (*repository.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return nil, repository.ErrDraftNotFound
	}
	return clone(d), nil
}

func (m *MemoryRepository) Update(_ context.Context, id int64, changes repository.DraftChanges) (*repository.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.editable(id)
	if err != nil {
		return nil, err
	}
	if changes.LinhaDigitavel != nil {
		d.LinhaDigitavel = *changes.LinhaDigitavel
	}
	if len(changes.BoletoMeta) > 0 {
		d.BoletoMeta = changes.BoletoMeta
	}
	if len(changes.Formulario) > 0 {
		d.Formulario = changes.Formulario
	}
	d.AtualizadoEm = time.Now()
	return clone(d), nil
}

func (m *MemoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.editable(id); err != nil {
		return err
	}
	delete(m.drafts, id)
	return nil
}

func (m *MemoryRepository) List(_ context.Context, filter repository.ListFilter) ([]*repository.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*repository.Draft, 0)
	for _, d := range m.drafts {
		if d.EmpresaID == nil || *d.EmpresaID != filter.EmpresaID {
			continue
		}
		if filter.UsuarioID != nil && (d.UsuarioID == nil || *d.UsuarioID != *filter.UsuarioID) {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		out = append(out, clone(d))
	}
	sortRecentFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryRepository) Latest(_ context.Context, usuarioID, empresaID *int64) (*repository.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*repository.Draft
	for _, d := range m.drafts {
		if d.Status != repository.StatusRascunho {
			continue
		}
		if usuarioID != nil && (d.UsuarioID == nil || *d.UsuarioID != *usuarioID) {
			continue
		}
		if empresaID != nil && (d.EmpresaID == nil || *d.EmpresaID != *empresaID) {
			continue
		}
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		return nil, repository.ErrDraftNotFound
	}
	sortRecentFirst(candidates)
	return clone(candidates[0]), nil
}

func (m *MemoryRepository) Finalize(_ context.Context, id int64, build repository.EntryBuilder) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.editable(id)
	if err != nil {
		return 0, err
	}
	entry, err := build(clone(d))
	if err != nil {
		return 0, err
	}
	if err := entry.Validate(); err != nil {
		return 0, err
	}
	if m.FailLedger != nil {
		return 0, m.FailLedger
	}

	entry.DraftID = id
	m.Ledger = append(m.Ledger, entry)
	d.Status = repository.StatusFinalizado
	d.AtualizadoEm = time.Now()
	return int64(len(m.Ledger)), nil
}

func (m *MemoryRepository) PurgeStale(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, d := range m.drafts {
		if d.Status == repository.StatusRascunho && d.AtualizadoEm.Before(cutoff) {
			delete(m.drafts, id)
			n++
		}
	}
	return n, nil
}

// Touch rewinds a draft's atualizado_em, for purge tests.
func (m *MemoryRepository) Touch(id int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drafts[id]; ok {
		d.AtualizadoEm = at
	}
}

func (m *MemoryRepository) editable(id int64) (*repository.Draft, error) {
	d, ok := m.drafts[id]
	if !ok {
		return nil, repository.ErrDraftNotFound
	}
	if d.Status != repository.StatusRascunho {
		return nil, repository.ErrDraftConflict
	}
	return d, nil
}

func sortRecentFirst(ds []*repository.Draft) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].AtualizadoEm.Equal(ds[j].AtualizadoEm) {
			return ds[i].AtualizadoEm.After(ds[j].AtualizadoEm)
		}
		return ds[i].ID > ds[j].ID
	})
}

func clone(d *repository.Draft) *repository.Draft {
	c := *d
	return &c
}
