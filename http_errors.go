package access

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// WriteError renders any error as the API's JSON error envelope:
// {"error": message, "details": metadata?}. Rich errors pick their status
// from Code, then Category; everything else is a 500.
func WriteError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "internal server error").
			WithCode(goerrors.CodeInternal)
	}

	body := map[string]any{
		"error": richErr.Message,
	}

	if len(richErr.Metadata) > 0 {
		body["details"] = richErr.Metadata
	}

	return ctx.JSON(errorStatus(richErr), body)
}

func errorStatus(err *goerrors.Error) int {
	if err.Code > 0 {
		return int(err.Code)
	}

	switch err.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
