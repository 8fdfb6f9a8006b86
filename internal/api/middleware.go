package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"business-directory/internal/common/config"
	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/metrics"
	"business-directory/internal/common/observability"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
)

const adminIDKey = "admin_id"

// RequestLogger traces and logs every request, then records its metrics.
func RequestLogger(log logger.Logger, obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if obs != nil {
			ctx, span := obs.StartSpan(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.target", c.Request.URL.Path),
			)
			defer span.End()
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())
		if obs != nil {
			obs.RecordOperation(c.Request.Context(), route, strconv.Itoa(status), elapsed)
		}

		fields := observability.TraceFields(c.Request.Context())
		fields["method"] = c.Request.Method
		fields["path"] = c.Request.URL.Path
		fields["status"] = status
		fields["duration_ms"] = elapsed.Milliseconds()
		fields["client_ip"] = c.ClientIP()

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Request failed", fields)
		case status >= http.StatusBadRequest:
			log.Warn("Request rejected", fields)
		default:
			log.Info("Request served", fields)
		}
	}
}

// AdminAuth accepts HMAC-signed bearer tokens carrying the admin role in the
// roles claim. The subject becomes the acting admin id.
func AdminAuth(cfg config.AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	role := cfg.AdminRole
	if role == "" {
		role = "admin"
	}
	methods := cfg.SigningMethods
	if len(methods) == 0 {
		methods = []string{jwt.SigningMethodHS256.Alg()}
	}
	parser := jwt.NewParser(jwt.WithValidMethods(methods), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abort(c, errors.NewAuthenticationError("missing bearer token"))
			return
		}

		token, err := parser.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abort(c, errors.NewAuthenticationError("invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, errors.NewAuthenticationError("invalid claims"))
			return
		}
		if !hasRole(claims["roles"], role) {
			abort(c, errors.NewForbiddenError("missing role "+role))
			return
		}

		sub, _ := claims.GetSubject()
		c.Set(adminIDKey, sub)
		c.Next()
	}
}

func hasRole(raw interface{}, role string) bool {
	switch roles := raw.(type) {
	case []interface{}:
		for _, r := range roles {
			if s, ok := r.(string); ok && strings.EqualFold(s, role) {
				return true
			}
		}
	case string:
		return strings.EqualFold(roles, role)
	}
	return false
}

func abort(c *gin.Context, stdErr *errors.StandardError) {
	c.AbortWithStatusJSON(errors.HTTPStatus(stdErr.Code), errors.ToBody(stdErr))
}

// writeError maps any service error onto the JSON error envelope.
func writeError(c *gin.Context, err error) {
	stdErr := errors.Normalize(err)
	if stdErr.Code == errors.ErrCodeRateLimited {
		if secs, ok := stdErr.Metadata["retryAfterSeconds"].(int); ok {
			c.Header("Retry-After", strconv.Itoa(secs))
		}
	}
	c.JSON(errors.HTTPStatus(stdErr.Code), errors.ToBody(stdErr))
}
