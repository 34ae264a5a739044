package access

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey        []byte
	refreshSigningKey []byte
	tokenExpiration   int
	refreshExpiration int
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
}

// NewTokenService creates a new TokenService instance. Expirations are hours;
// refreshSigningKey must differ from signingKey so neither token flavor
// verifies under the other's secret.
func NewTokenService(signingKey, refreshSigningKey []byte, tokenExpiration, refreshExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:        signingKey,
		refreshSigningKey: refreshSigningKey,
		tokenExpiration:   tokenExpiration,
		refreshExpiration: refreshExpiration,
		issuer:            issuer,
		audience:          audience,
		logger:            logger,
	}
}

// Generate creates a short lived access token for the given identity
func (ts *TokenServiceImpl) Generate(identity Identity) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(ts.tokenExpiration) * time.Hour)
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:       identity.ID(),
		UserEmail: identity.Email(),
		UserRole:  identity.Role(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.signClaims(claims, ts.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// GenerateRefresh creates a long lived refresh token tagged with token_type=refresh
func (ts *TokenServiceImpl) GenerateRefresh(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(ts.refreshExpiration) * time.Hour)
	claims := &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   userID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:       userID,
		TokenType: RefreshTokenType,
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.signClaims(claims, ts.refreshSigningKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func (ts *TokenServiceImpl) signClaims(claims jwt.Claims, key []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates an access token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, ts.keyFunc(ts.signingKey), ts.parserOptions()...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// ValidateRefresh parses a refresh token and returns the user id it was
// issued to. Tokens without the token_type=refresh tag are rejected even when
// the signature verifies.
func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, ts.keyFunc(ts.refreshSigningKey), ts.parserOptions()...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrInvalidRefreshToken
		}
		return "", errors.Wrap(err, ErrInvalidRefreshToken.Category, ErrInvalidRefreshToken.Message).WithTextCode(ErrInvalidRefreshToken.TextCode)
	}

	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate refresh could not decode claims")
		return "", ErrInvalidRefreshToken
	}

	if !claims.IsRefresh() {
		ts.logger.Error("TokenService validate refresh rejected token_type", "token_type", claims.TokenType)
		return "", ErrInvalidRefreshToken
	}

	return claims.UserID(), nil
}

func (ts *TokenServiceImpl) keyFunc(key []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}
}

func (ts *TokenServiceImpl) parserOptions() []jwt.ParserOption {
	parserOptions := make([]jwt.ParserOption, 0, 1+len(ts.audience))
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	for _, aud := range ts.audience {
		parserOptions = append(parserOptions, jwt.WithAudience(aud))
	}
	return parserOptions
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
