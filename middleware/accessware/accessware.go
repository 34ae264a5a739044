// Package accessware provides the request guard chain: bearer token
// authentication with a live user re-read, followed by capability checks.
// RequirePostingAccess and RequireAdmin assume New ran earlier in the chain
// and short-circuit with 401 when it did not.
package accessware

import (
	"context"
	"errors"
	"strings"

	"github.com/carecal/go-access"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup    = "header:" + router.HeaderAuthorization
	ErrMissingOrMalformed = errors.New("missing or malformed token")
)

// UserFinder re-reads the live user for every authenticated request so role
// and posting access reflect the database, not the claims snapshot.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*access.User, error)
}

// UserFinderFunc adapts a lookup function to the UserFinder interface
type UserFinderFunc func(ctx context.Context, id string) (*access.User, error)

func (f UserFinderFunc) GetByID(ctx context.Context, id string) (*access.User, error) {
	return f(ctx, id)
}

type Config struct {
	Filter          func(router.Context) bool
	SuccessHandler  router.HandlerFunc
	ErrorHandler    router.ErrorHandler
	ContextKey      string
	ClaimsKey       string
	TokenLookup     string
	AuthScheme      string
	// TokenValidator is required for token validation
	TokenValidator access.TokenValidator
	// UserFinder is required for the live user re-read
	UserFinder UserFinder
}

// New builds the authentication middleware. A request passes when it carries
// a valid access token AND the token's user still exists; the live user and
// the claims are stored in router locals and the request context.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			user, err := cfg.UserFinder.GetByID(ctx.Context(), claims.UserID())
			if err != nil {
				return cfg.ErrorHandler(ctx, access.ErrInvalidCredentials)
			}

			ctx.Locals(cfg.ContextKey, user)
			ctx.Locals(cfg.ClaimsKey, claims)

			stdCtx := access.WithContext(ctx.Context(), user)
			stdCtx = access.WithClaimsContext(stdCtx, claims)
			ctx.SetContext(stdCtx)

			return cfg.SuccessHandler(ctx)
		}
	}
}

// RequirePostingAccess rejects requests whose live user cannot post events
func RequirePostingAccess(config ...Config) router.MiddlewareFunc {
	cfg := guardConfig(config...)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			user, ok := access.GetRouterUser(ctx, cfg.ContextKey)
			if !ok {
				return cfg.ErrorHandler(ctx, ErrMissingOrMalformed)
			}

			if !user.HasPostingAccess {
				return cfg.ErrorHandler(ctx, access.ErrPostingAccessRequired)
			}

			return hf(ctx)
		}
	}
}

// RequireAdmin rejects requests whose live user role is not admin
func RequireAdmin(config ...Config) router.MiddlewareFunc {
	cfg := guardConfig(config...)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			user, ok := access.GetRouterUser(ctx, cfg.ContextKey)
			if !ok {
				return cfg.ErrorHandler(ctx, ErrMissingOrMalformed)
			}

			if !user.Role.IsAdmin() {
				return cfg.ErrorHandler(ctx, access.ErrAdminRequired)
			}

			return hf(ctx)
		}
	}
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.TokenValidator == nil {
		panic("ACCESS: auth middleware configuration: TokenValidator is required.")
	}

	if cfg.UserFinder == nil {
		panic("ACCESS: auth middleware configuration: UserFinder is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.ClaimsKey == "" {
		cfg.ClaimsKey = "claims"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func guardConfig(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	return cfg
}

func defaultErrorHandler(c router.Context, err error) error {
	if errors.Is(err, ErrMissingOrMalformed) {
		return access.WriteError(c, goerrors.New("authentication required", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized))
	}
	return access.WriteError(c, err)
}

func (cfg *Config) getExtractors() []TokenExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

// GetExtractors parses a lookup string such as
// "header:Authorization,query:auth_token" into extractor functions
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

type TokenExtractor func(c router.Context) (string, error)

// tokenFromHeader returns a function that extracts the token from the request header.
func tokenFromHeader(header string, authScheme string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		l := len(authScheme)
		if l == 0 {
			return "", ErrMissingOrMalformed
		}
		authScheme = strings.TrimSpace(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrMissingOrMalformed
	}
}

// tokenFromQuery returns a function that extracts the token from the query string.
func tokenFromQuery(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}

// tokenFromCookie returns a function that extracts the token from the named cookie.
func tokenFromCookie(name string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}
