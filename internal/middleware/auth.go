package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	pkgAuth "arena-ace/pkg/auth"
	"arena-ace/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey  = "userID"
	ContextAdminIDKey = "adminID"
)

// AdminVerifier confirms that a token subject is still an admin.
type AdminVerifier interface {
	Verify(ctx context.Context, adminID string) error
}

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, http.StatusUnauthorized, err.Error())
			c.Abort()
			return
		}

		claims, err := pkgAuth.ParseUserToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.SubjectID)
		c.Next()
	}
}

func AdminAuthRequired(verifier AdminVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, http.StatusUnauthorized, err.Error())
			c.Abort()
			return
		}

		claims, err := pkgAuth.ParseAdminToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}
		if verifier != nil {
			if err := verifier.Verify(c.Request.Context(), claims.SubjectID); err != nil {
				response.Error(c, http.StatusForbidden, "admin access revoked")
				c.Abort()
				return
			}
		}

		c.Set(ContextAdminIDKey, claims.SubjectID)
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

func AdminID(c *gin.Context) string {
	return c.GetString(ContextAdminIDKey)
}

func extractBearerToken(authHeader string) (string, error) {
	if strings.TrimSpace(authHeader) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
