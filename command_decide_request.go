package access

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ApproveAccessMessage struct {
	RequestID uuid.UUID `json:"request_id"`

	OnResponse func(request *AccessRequest, user *User)
}

func (e ApproveAccessMessage) Type() string { return "access_request.approve" }

// ApproveAccessHandler flips a pending request to approved and grants the
// user's posting flag in the same transaction. Either both writes land or
// neither does.
type ApproveAccessHandler struct {
	repo     RepositoryManager
	activity ActivitySink
}

func NewApproveAccessHandler(repo RepositoryManager) *ApproveAccessHandler {
	return &ApproveAccessHandler{repo: repo, activity: noopActivitySink{}}
}

// WithActivitySink attaches an audit sink for approval decisions
func (h *ApproveAccessHandler) WithActivitySink(sink ActivitySink) *ApproveAccessHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ApproveAccessHandler) Execute(ctx context.Context, event ApproveAccessMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during access approval",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ApproveAccessHandler) execute(ctx context.Context, event ApproveAccessMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var request *AccessRequest
	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		request, err = h.repo.AccessRequests().MarkDecidedTx(ctx, tx, event.RequestID, RequestStatusApproved)
		if err != nil {
			return err
		}

		if err := h.repo.Users().GrantPostingAccessTx(ctx, tx, request.UserID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to grant posting access")
		}

		user, err = h.repo.Users().GetByIDTx(ctx, tx, request.UserID.String())
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "access approval transaction failed")
	}

	_ = h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventRequestApproved,
		UserID:     request.UserID.String(),
		RequestID:  request.ID.String(),
		OccurredAt: time.Now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(request, user)
	}

	return nil
}

type DenyAccessMessage struct {
	RequestID uuid.UUID `json:"request_id"`
	Reason    string    `json:"reason"`

	OnResponse func(request *AccessRequest)
}

func (e DenyAccessMessage) Type() string { return "access_request.deny" }

// DenyAccessHandler flips a pending request to denied. The user's posting
// flag is never touched, and the optional reason is echoed back to the
// caller, not persisted.
type DenyAccessHandler struct {
	repo     RepositoryManager
	activity ActivitySink
}

func NewDenyAccessHandler(repo RepositoryManager) *DenyAccessHandler {
	return &DenyAccessHandler{repo: repo, activity: noopActivitySink{}}
}

// WithActivitySink attaches an audit sink for denial decisions
func (h *DenyAccessHandler) WithActivitySink(sink ActivitySink) *DenyAccessHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *DenyAccessHandler) Execute(ctx context.Context, event DenyAccessMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during access denial",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DenyAccessHandler) execute(ctx context.Context, event DenyAccessMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var request *AccessRequest

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		request, err = h.repo.AccessRequests().MarkDecidedTx(ctx, tx, event.RequestID, RequestStatusDenied)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "access denial transaction failed")
	}

	_ = h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventRequestDenied,
		UserID:     request.UserID.String(),
		RequestID:  request.ID.String(),
		OccurredAt: time.Now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(request)
	}

	return nil
}
