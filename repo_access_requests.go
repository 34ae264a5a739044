package access

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccessRequests is the store for posting access petitions
type AccessRequests interface {
	Create(ctx context.Context, record *AccessRequest) (*AccessRequest, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *AccessRequest) (*AccessRequest, error)

	GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*AccessRequest, error)

	HasPending(ctx context.Context, userID uuid.UUID) (bool, error)
	HasPendingTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (bool, error)

	// List returns requests joined with their users, pending first then newest
	List(ctx context.Context, status RequestStatus) ([]*AccessRequest, error)

	// MarkDecided flips a pending request to a terminal status. The UPDATE is
	// conditional on status=pending so concurrent decisions linearize: exactly
	// one caller wins, the rest get ErrRequestAlreadyDecided.
	MarkDecidedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status RequestStatus) (*AccessRequest, error)
}

type accessRequests struct {
	db *bun.DB
}

var _ AccessRequests = (*accessRequests)(nil)

func NewAccessRequestsRepository(db *bun.DB) AccessRequests {
	return &accessRequests{db: db}
}

func (r *accessRequests) Create(ctx context.Context, record *AccessRequest) (*AccessRequest, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *accessRequests) CreateTx(ctx context.Context, tx bun.IDB, record *AccessRequest) (*AccessRequest, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = RequestStatusPending
	}
	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isPendingUniqueViolation(err) {
			return nil, ErrPendingRequestExists
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create access request")
	}

	return record, nil
}

func (r *accessRequests) GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *accessRequests) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*AccessRequest, error) {
	record := &AccessRequest{}
	err := tx.NewSelect().Model(record).
		Relation("User").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerrors.New("access request not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load access request")
	}

	return record, nil
}

func (r *accessRequests) HasPending(ctx context.Context, userID uuid.UUID) (bool, error) {
	return r.HasPendingTx(ctx, r.db, userID)
}

func (r *accessRequests) HasPendingTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (bool, error) {
	count, err := tx.NewSelect().Model((*AccessRequest)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status = ?", RequestStatusPending).
		Count(ctx)

	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count pending requests")
	}

	return count > 0, nil
}

func (r *accessRequests) List(ctx context.Context, status RequestStatus) ([]*AccessRequest, error) {
	records := []*AccessRequest{}

	q := r.db.NewSelect().Model(&records).
		Relation("User").
		OrderExpr("CASE WHEN ?TableAlias.status = ? THEN 0 ELSE 1 END", RequestStatusPending).
		OrderExpr("?TableAlias.created_at DESC")

	if status != "" {
		q.Where("?TableAlias.status = ?", status)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list access requests")
	}

	return records, nil
}

func (r *accessRequests) MarkDecidedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status RequestStatus) (*AccessRequest, error) {
	if err := EnsureDecisionStatus(status); err != nil {
		return nil, err
	}

	res, err := tx.NewUpdate().Model((*AccessRequest)(nil)).
		Set("status = ?", status).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.status = ?", RequestStatusPending).
		Exec(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update access request")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read update result")
	}

	if affected == 0 {
		// Either the request does not exist or it was already decided;
		// re-read to tell the two apart.
		record, err := r.GetByIDTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if err := EnsureRequestTransition(record.Status, status); err != nil {
			return nil, err
		}
		// the row still reads pending yet the conditional update missed;
		// surface it as a lost race rather than succeed without a write
		return nil, ErrRequestAlreadyDecided.WithMetadata(map[string]any{
			"id": id.String(),
		})
	}

	return r.GetByIDTx(ctx, tx, id)
}

// isPendingUniqueViolation detects the partial unique index that allows at
// most one pending request per user. Message matching covers both the sqlite
// and postgres drivers.
func isPendingUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
