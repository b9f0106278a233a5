package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/worklane/worklane-backend/internal/users"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxUserDBID    = "user_db_id"
	CtxUserRole    = "user_role"
)

// WithUser ensures a user row exists for the authenticated identity and
// stashes its database id and role in the gin context. Falls back to the
// X-User-Id header when no Firebase token was verified (development).
func WithUser(userRepo *users.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		fuid := strings.TrimSpace(c.GetString(CtxFirebaseUID))
		if fuid == "" {
			fuid = strings.TrimSpace(c.GetHeader("X-User-Id"))
		}
		if fuid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "not authenticated"})
			c.Abort()
			return
		}

		u, err := userRepo.EnsureUser(c.Request.Context(), users.UpsertUser{
			FirebaseUID: fuid,
			Email:       c.GetString("email"),
			DisplayName: c.GetHeader("X-User-Name"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
			c.Abort()
			return
		}

		c.Set(CtxFirebaseUID, fuid)
		c.Set(CtxUserDBID, u.ID)
		c.Set(CtxUserRole, u.Role)
		c.Next()
	}
}

func UserDBID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserDBID))
}

func UserRole(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserRole))
}

// RequireRole aborts with 403 unless the acting user carries the role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserRole(c) != role {
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "insufficient role"})
			c.Abort()
			return
		}
		c.Next()
	}
}
