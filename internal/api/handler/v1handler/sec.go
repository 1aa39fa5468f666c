package v1handler

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"a11yscan/internal/config"
	"a11yscan/pkg/domain"
	"a11yscan/pkg/serrors"
	"a11yscan/pkg/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CtxKey is the context key type used for authentication values.
type CtxKey string

const (
	// OrganizationKey is the context key holding the authenticated
	// organization.
	OrganizationKey CtxKey = "organization"
	// UserIDKey is the context key holding the authenticated user's ID.
	// Only set for bearer-token requests; API keys are not tied to a user.
	UserIDKey CtxKey = "userID"
)

// SecHandlerOptions configures authentication for the v1 endpoints.
type SecHandlerOptions struct {
	// PublicKey is the PEM-encoded RSA public key bearer tokens are
	// verified against. Empty disables bearer auth.
	PublicKey string
	// EngineToken gates the engine progress callback.
	EngineToken string
	// CronSecret gates the sweep trigger endpoints.
	CronSecret string
}

// NewSecHandlerOptions constructs SecHandlerOptions from the application
// config.
func NewSecHandlerOptions(cfg *config.Config) *SecHandlerOptions {
	return &SecHandlerOptions{
		PublicKey:   cfg.JWT.PublicKey,
		EngineToken: cfg.Engine.Token,
		CronSecret:  cfg.Cron.Secret,
	}
}

// SecHandler authenticates requests: RS256 bearer tokens resolving to a user
// and their organization, or API keys resolving to an organization directly.
type SecHandler struct {
	publicKey   *rsa.PublicKey
	engineToken string
	cronSecret  string
	storage     storage.Storage
}

// NewSecHandler creates a SecHandler. The public key must be valid PEM when
// provided.
func NewSecHandler(opts *SecHandlerOptions, strg storage.Storage) (*SecHandler, error) {
	sec := &SecHandler{
		engineToken: opts.EngineToken,
		cronSecret:  opts.CronSecret,
		storage:     strg,
	}

	if opts.PublicKey != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(opts.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("could not parse RSA public key: %w", err)
		}
		sec.publicKey = key
	}

	return sec, nil
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found {
		return ""
	}

	return token
}

// Authenticate resolves the request's credentials to an organization. API
// keys take precedence over bearer tokens when both are present.
func (s *SecHandler) Authenticate(ctx context.Context, r *http.Request) (context.Context, error) {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return s.authenticateAPIKey(ctx, key)
	}
	if token := bearerToken(r); token != "" {
		return s.authenticateBearer(ctx, token)
	}

	return ctx, serrors.With(serrors.ErrUnauthorized, "missing credentials")
}

func (s *SecHandler) authenticateBearer(ctx context.Context, token string) (context.Context, error) {
	if s.publicKey == nil {
		return ctx, serrors.With(serrors.ErrUnauthorized, "bearer auth is not configured")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return ctx, serrors.Wrap(serrors.ErrUnauthorized, err, "invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, serrors.Wrap(serrors.ErrUnauthorized, err, "invalid token subject")
	}

	user, err := s.storage.UserByID(ctx, domain.UserID(userID))
	if err != nil {
		return ctx, fmt.Errorf("could not get user: %w", err)
	}
	if user == nil {
		return ctx, serrors.With(serrors.ErrUnauthorized, "unknown user")
	}

	org, err := s.storage.OrganizationByID(ctx, user.OrganizationID)
	if err != nil {
		return ctx, fmt.Errorf("could not get organization: %w", err)
	}
	if org == nil {
		return ctx, serrors.With(serrors.ErrUnauthorized, "unknown organization")
	}

	ctx = context.WithValue(ctx, UserIDKey, user.ID)

	return context.WithValue(ctx, OrganizationKey, *org), nil
}

func (s *SecHandler) authenticateAPIKey(ctx context.Context, key string) (context.Context, error) {
	sum := sha256.Sum256([]byte(key))

	apiKey, err := s.storage.ApiKeyByTokenHash(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		return ctx, fmt.Errorf("could not get api key: %w", err)
	}
	if apiKey == nil {
		return ctx, serrors.With(serrors.ErrUnauthorized, "unknown api key")
	}

	org, err := s.storage.OrganizationByID(ctx, apiKey.OrganizationID)
	if err != nil {
		return ctx, fmt.Errorf("could not get organization: %w", err)
	}
	if org == nil {
		return ctx, serrors.With(serrors.ErrUnauthorized, "unknown organization")
	}

	// last-used bookkeeping is advisory
	_ = s.storage.TouchApiKey(ctx, apiKey.ID)

	return context.WithValue(ctx, OrganizationKey, *org), nil
}

// CheckEngineToken verifies the engine callback bearer token.
func (s *SecHandler) CheckEngineToken(r *http.Request) error {
	if s.engineToken == "" {
		return serrors.With(serrors.ErrUnauthorized, "engine token is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(bearerToken(r)), []byte(s.engineToken)) != 1 {
		return serrors.With(serrors.ErrUnauthorized, "invalid engine token")
	}

	return nil
}

// CheckCronSecret verifies the X-Cron-Secret header on sweep triggers.
func (s *SecHandler) CheckCronSecret(r *http.Request) error {
	if s.cronSecret == "" {
		return serrors.With(serrors.ErrUnauthorized, "cron secret is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Cron-Secret")), []byte(s.cronSecret)) != 1 {
		return serrors.With(serrors.ErrUnauthorized, "invalid cron secret")
	}

	return nil
}

// GetOrganizationFromContext returns the authenticated organization stored by
// the auth middleware.
func GetOrganizationFromContext(ctx context.Context) domain.Organization {
	org, _ := ctx.Value(OrganizationKey).(domain.Organization)

	return org
}

// GetUserIDFromContext returns the authenticated user ID, or the zero ID for
// API key requests.
func GetUserIDFromContext(ctx context.Context) domain.UserID {
	id, _ := ctx.Value(UserIDKey).(domain.UserID)

	return id
}
