package access

import (
	goerrors "github.com/goliatone/go-errors"
)

// requestTransitions is the approval workflow graph: pending is the only
// non-terminal status, approved and denied absorb.
var requestTransitions = map[RequestStatus]map[RequestStatus]struct{}{
	RequestStatusPending: {
		RequestStatusApproved: {},
		RequestStatusDenied:   {},
	},
}

// CanTransitionRequest reports whether a request status change is allowed
func CanTransitionRequest(from, to RequestStatus) bool {
	if allowed, ok := requestTransitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// EnsureDecisionStatus validates that the target status is a terminal decision
func EnsureDecisionStatus(status RequestStatus) error {
	switch status {
	case RequestStatusApproved, RequestStatusDenied:
		return nil
	default:
		return goerrors.New("invalid access request decision", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"status": status})
	}
}

// EnsureRequestTransition returns a conflict error when the transition is not
// part of the workflow graph.
func EnsureRequestTransition(from, to RequestStatus) error {
	if CanTransitionRequest(from, to) {
		return nil
	}
	return ErrRequestAlreadyDecided.WithMetadata(map[string]any{
		"from": from,
		"to":   to,
	})
}
