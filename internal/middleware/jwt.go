package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
	// ContextKeyAttemptID is the Gin context key for the authorized attempt.
	ContextKeyAttemptID = "attempt_id"
)

var errTokenMissing = errors.New("authorization header or token query required")

// RequireAdminJWT validates an admin JWT from the Authorization header.
func RequireAdminJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, authService)
		if !ok {
			return
		}

		if claims.TokenType != service.TokenTypeAdmin {
			response.AbortFail(c, http.StatusForbidden, response.ErrAdminAccessOnly)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireAttemptToken validates an attempt JWT from the Authorization header
// or the ?token= query param (WebSocket upgrades cannot send headers). The
// token must belong to the :attempt_id path parameter.
func RequireAttemptToken(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		attemptID, err := uuid.Parse(c.Param("attempt_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		claims, ok := authenticate(c, authService)
		if !ok {
			return
		}

		if claims.TokenType != service.TokenTypeAttempt {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		if claims.AttemptID != attemptID {
			response.AbortFail(c, http.StatusForbidden, response.ErrAttemptMismatch)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyAttemptID, attemptID)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetAttemptID returns the attempt authorized by RequireAttemptToken.
func GetAttemptID(c *gin.Context) uuid.UUID {
	val, _ := c.Get(ContextKeyAttemptID)
	id, _ := val.(uuid.UUID)
	return id
}

// authenticate aborts the request with the matching error code when no
// valid token is present.
func authenticate(c *gin.Context, authService *service.AuthService) (*service.Claims, bool) {
	claims, err := extractAndValidateClaims(c, authService)
	switch {
	case errors.Is(err, errTokenMissing):
		response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	case errors.Is(err, jwt.ErrTokenExpired):
		response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
		return nil, false
	case err != nil:
		response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return nil, false
	}
	return claims, true
}

func extractAndValidateClaims(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	tokenStr := ""

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			tokenStr = parts[1]
		}
	}

	if tokenStr == "" {
		tokenStr = c.Query("token")
	}

	if tokenStr == "" {
		return nil, errTokenMissing
	}

	return authService.ValidateToken(tokenStr)
}
