package access

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RequestAccessMessage struct {
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason"`

	OnResponse func(*AccessRequest)
}

func (e RequestAccessMessage) Type() string { return "access_request.create" }

type RequestAccessHandler struct {
	repo RepositoryManager
}

func NewRequestAccessHandler(repo RepositoryManager) *RequestAccessHandler {
	return &RequestAccessHandler{repo: repo}
}

func (h *RequestAccessHandler) Execute(ctx context.Context, event RequestAccessMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during access request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestAccessHandler) execute(ctx context.Context, event RequestAccessMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var record *AccessRequest

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIDTx(ctx, tx, event.UserID.String())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryNotFound, "user not found").
				WithCode(goerrors.CodeNotFound)
		}

		if user.HasPostingAccess {
			return goerrors.New("user already has posting access", goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict).
				WithMetadata(map[string]any{"user_id": user.ID.String()})
		}

		pending, err := h.repo.AccessRequests().HasPendingTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}
		if pending {
			return ErrPendingRequestExists.WithMetadata(map[string]any{
				"user_id": event.UserID.String(),
			})
		}

		record, err = h.repo.AccessRequests().CreateTx(ctx, tx, &AccessRequest{
			UserID: event.UserID,
			Reason: event.Reason,
		})

		// the partial unique index closes the race between two concurrent
		// submissions, both surface as the same conflict
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "access request transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(record)
	}

	return nil
}
