package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	userrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/user"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/platform/requestdata"
	"github.com/learnsphere/learnsphere-backend/internal/tenant"
)

// TenantDBKey is where RequireAuth stores the caller's tenant database
// handle for downstream handlers.
const TenantDBKey = "tenant_db"

// identityClaims is the token shape issued by the identity service. The
// tenant claim picks the database; the email claim picks the user row.
type identityClaims struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	log      *logger.Logger
	registry *tenant.Registry
	users    userrepo.UserRepo
	secret   []byte
}

func NewAuthMiddleware(log *logger.Logger, registry *tenant.Registry, users userrepo.UserRepo) *AuthMiddleware {
	return &AuthMiddleware{
		log:      log.With("middleware", "AuthMiddleware"),
		registry: registry,
		users:    users,
		secret:   []byte(envutil.String("AUTH_JWT_SECRET", "")),
	}
}

// RequireAuth verifies the bearer token, resolves the tenant database and
// the user row, and attaches both to the request.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}

		claims := &identityClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return am.secret, nil
		})
		if err != nil || !token.Valid {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		if claims.Email == "" || claims.Tenant == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "token missing identity claims")
			return
		}

		db, err := am.registry.Handle(claims.Tenant)
		if err != nil {
			abort(c, http.StatusForbidden, "forbidden", "unknown tenant")
			return
		}
		u, err := am.users.GetByEmail(dbctx.Context{Ctx: c.Request.Context(), Tx: db}, claims.Email)
		if err != nil {
			am.log.Error("user lookup failed", "tenant", claims.Tenant, "error", err)
			abort(c, http.StatusInternalServerError, "internal_error", "user lookup failed")
			return
		}
		if u == nil {
			abort(c, http.StatusForbidden, "forbidden", "user not registered with tenant")
			return
		}

		rd := &requestdata.RequestData{
			UserID:    u.ID,
			UserEmail: u.Email,
			UserName:  u.FullName(),
			Role:      claims.Role,
			Tenant:    claims.Tenant,
		}
		c.Request = c.Request.WithContext(requestdata.With(c.Request.Context(), rd))
		c.Set(TenantDBKey, db)
		c.Next()
	}
}

// RequireAdmin allows only tenant or super admins past. It assumes
// RequireAuth already ran.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := requestdata.Get(c.Request.Context())
		if !rd.IsAdmin() {
			abort(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"message": msg, "code": code},
	})
}
