package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/store"
	"github.com/groxaxo/chatmode/types"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller extracted from the JWT.
type Identity struct {
	Username string
	Role     string
}

// IdentityFrom returns the request's authenticated identity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// AuthHandler issues and validates admin JWTs.
type AuthHandler struct {
	store  *store.Store
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(s *store.Store, secret string, ttl time.Duration, logger *zap.Logger) *AuthHandler {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthHandler{
		store:  s,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.With(zap.String("component", "auth_handler")),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	user, err := h.store.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	expires := time.Now().Add(h.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   user.Username,
		Audience:  jwt.ClaimStrings{user.Role},
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to sign token").WithCause(err), h.logger)
		return
	}

	h.logger.Info("login", zap.String("username", user.Username))
	WriteSuccess(w, loginResponse{Token: token, ExpiresAt: expires, Role: user.Role})
}

// Middleware rejects requests without a valid bearer token and attaches the
// caller identity to the request context.
func (h *AuthHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, "missing bearer token", nil)
			return
		}

		claims := &jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.secret, nil
		})
		if err != nil || !parsed.Valid {
			WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, "invalid or expired token", nil)
			return
		}

		role := ""
		if len(claims.Audience) > 0 {
			role = claims.Audience[0]
		}
		ctx := context.WithValue(r.Context(), identityKey, Identity{
			Username: claims.Subject,
			Role:     role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Admin allows only callers carrying the admin role. Viewer tokens can read
// session state but never mutate it.
func (h *AuthHandler) Admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || id.Role != "admin" {
			WriteErrorMessage(w, http.StatusForbidden, types.ErrForbidden, "admin role required", nil)
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	// Browsers cannot set headers on websocket upgrades.
	return r.URL.Query().Get("token")
}
