package middlewares

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"civicsync/apperr"
	authUtils "civicsync/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthCookie is the cookie login sets for browser clients.
const AuthCookie = "auth_token"

const (
	userIDKey = "user_id"
	claimsKey = "claims"
)

// Authenticator verifies a raw token and returns its claims.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*authUtils.Claims, error)
}

// AuthMiddleware rejects requests without a valid, unrevoked token.
func AuthMiddleware(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			logger.WarnContext(c.Request.Context(), "unauthorized access - missing token",
				"request_id", RequestID(c))
			AbortWithError(c, apperr.E(apperr.Unauthenticated, "No authorization token provided"))
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "unauthorized access - invalid token",
				"error", err, "request_id", RequestID(c))
			AbortWithError(c, err)
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller's identity when a valid token is present
// and lets anonymous requests through otherwise.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := tokenFromRequest(c); token != "" {
			if claims, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if header := c.Request.Header.Get("Authorization"); header != "" {
		// Bare tokens are accepted as well as "Bearer <token>".
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return strings.TrimSpace(header)
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}
	return ""
}

func setClaims(c *gin.Context, claims *authUtils.Claims) {
	c.Set(userIDKey, claims.UserID)
	c.Set(claimsKey, claims)
}

// CurrentUser returns the authenticated user's id, or the zero id for
// anonymous requests.
func CurrentUser(c *gin.Context) primitive.ObjectID {
	raw := c.GetString(userIDKey)
	if raw == "" {
		return primitive.NilObjectID
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

// CurrentClaims returns the verified token claims, if any.
func CurrentClaims(c *gin.Context) (*authUtils.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*authUtils.Claims)
	return claims, ok
}

// AbortWithError writes the standard error body and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status == http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, gin.H{"error": "Something went wrong", "code": kind})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err), "code": kind})
}
