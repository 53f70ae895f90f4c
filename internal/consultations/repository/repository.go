// Package repository stores consultations in Postgres. Updates are guarded by
// the version column: a write against a stale version fails with Conflict.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"consultation_backend/internal/consultations/domain"
	"consultation_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opGet    = "consultations.repository.get"
	opFind   = "consultations.repository.find"
	opInsert = "consultations.repository.insert"
	opUpdate = "consultations.repository.update"
	opDelete = "consultations.repository.delete"

	errRepoNotConfigured = "consultation repository not configured"
	errStorage           = "consultation storage unavailable"
	errNotFound          = "consultation not found"
)

const selectColumns = `
	id, client_id, expert_id, title, description, category, is_free, price_cents,
	is_paid, is_open_request, is_publicable, status, version, created_at, completed_at, updated_at`

// Repository is the Postgres consultation store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a repository over pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ready(op string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(op)
	}
	return nil
}

// GetByID returns one consultation or a NotFound error.
func (r *Repository) GetByID(ctx context.Context, id int64) (domain.Consultation, error) {
	if err := r.ready(opGet); err != nil {
		return domain.Consultation{}, err
	}

	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM consultations WHERE id = $1`, id)
	c, err := scanConsultation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Consultation{}, apperr.NotFound(errNotFound).WithOp(opGet)
	}
	if err != nil {
		return domain.Consultation{}, storageError(opGet, err)
	}
	return c, nil
}

// Find returns the consultations matching filter, newest first.
func (r *Repository) Find(ctx context.Context, filter domain.Filter) ([]domain.Consultation, error) {
	if err := r.ready(opFind); err != nil {
		return nil, err
	}
	filter = filter.Normalized()

	where, args := buildWhere(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM consultations %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		selectColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError(opFind, err)
	}
	defer rows.Close()

	out := make([]domain.Consultation, 0)
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, storageError(opFind, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(opFind, err)
	}
	return out, nil
}

// Insert persists a new consultation and returns it with its id and version.
func (r *Repository) Insert(ctx context.Context, c domain.Consultation) (domain.Consultation, error) {
	if err := r.ready(opInsert); err != nil {
		return domain.Consultation{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO consultations
		(client_id, expert_id, title, description, category, is_free, price_cents,
		 is_paid, is_open_request, is_publicable, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $12)
		RETURNING `+selectColumns,
		c.ClientID, c.ExpertID, c.Title, c.Description, c.Category, c.IsFree, c.PriceCents,
		c.IsPaid, c.IsOpenRequest, c.IsPublicable, string(c.Status), c.CreatedAt,
	)
	saved, err := scanConsultation(row)
	if err != nil {
		return domain.Consultation{}, storageError(opInsert, err)
	}
	return saved, nil
}

// Update writes every mutable field of c if the stored version still equals
// c.Version, and returns the record with its new version.
func (r *Repository) Update(ctx context.Context, c domain.Consultation) (domain.Consultation, error) {
	if err := r.ready(opUpdate); err != nil {
		return domain.Consultation{}, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE consultations
		SET expert_id = $3, category = $4, is_free = $5, price_cents = $6, is_paid = $7,
		    is_open_request = $8, is_publicable = $9, status = $10, completed_at = $11,
		    version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+selectColumns,
		c.ID, c.Version, c.ExpertID, c.Category, c.IsFree, c.PriceCents, c.IsPaid,
		c.IsOpenRequest, c.IsPublicable, string(c.Status), c.CompletedAt,
	)
	saved, err := scanConsultation(row)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Consultation{}, storageError(opUpdate, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM consultations WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
		return domain.Consultation{}, storageError(opUpdate, err)
	}
	if !exists {
		return domain.Consultation{}, apperr.NotFound(errNotFound).WithOp(opUpdate)
	}
	return domain.Consultation{}, apperr.Conflict("consultation was modified concurrently").WithOp(opUpdate)
}

// Delete removes the consultation and its messages and feedback in one transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if err := r.ready(opDelete); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storageError(opDelete, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM consultation_messages WHERE consultation_id = $1`, id); err != nil {
		return storageError(opDelete, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM consultation_feedback WHERE consultation_id = $1`, id); err != nil {
		return storageError(opDelete, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM consultations WHERE id = $1`, id)
	if err != nil {
		return storageError(opDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(errNotFound).WithOp(opDelete)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageError(opDelete, err)
	}
	return nil
}

func buildWhere(f domain.Filter) (string, []interface{}) {
	clauses := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.ClientID != "" {
		add("client_id = $%d", f.ClientID)
	}
	if f.ExpertID != "" {
		add("expert_id = $%d", f.ExpertID)
	}
	if f.OpenOnly {
		clauses = append(clauses, "lower(status) = 'pending' AND is_open_request AND expert_id IS NULL")
	}
	if len(f.Statuses) > 0 {
		lowered := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			lowered = append(lowered, strings.ToLower(string(s)))
		}
		add("lower(status) = ANY($%d)", lowered)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanConsultation(row pgx.Row) (domain.Consultation, error) {
	var (
		c      domain.Consultation
		status string
	)
	if err := row.Scan(
		&c.ID, &c.ClientID, &c.ExpertID, &c.Title, &c.Description, &c.Category, &c.IsFree, &c.PriceCents,
		&c.IsPaid, &c.IsOpenRequest, &c.IsPublicable, &status, &c.Version, &c.CreatedAt, &c.CompletedAt, &c.UpdatedAt,
	); err != nil {
		return domain.Consultation{}, err
	}

	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Consultation{}, err
	}
	c.Status = parsed
	return c, nil
}

func storageError(op string, err error) *apperr.Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return apperr.Validation("consultation references an unknown record").WithOp(op)
		case "23514":
			return apperr.Validation("consultation violates a storage constraint").WithOp(op)
		}
	}
	return apperr.Dependency(errStorage, err).WithOp(op)
}
