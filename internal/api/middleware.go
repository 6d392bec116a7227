package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/identity"
	"github.com/zulandar/punchlist/internal/logger"
)

const (
	actorKey     = "actor"
	requestIDKey = "request_id"
	headerReqID  = "X-Request-ID"
)

// requestID tags every request with an id, reusing the caller's when given.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerReqID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(headerReqID, id)
		c.Next()
	}
}

// requestLogger logs one line per request at a level chosen by status.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"request_id", c.GetString(requestIDKey),
		}
		if a, ok := c.Get(actorKey); ok {
			kv = append(kv, "actor_id", a.(access.Actor).ID)
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request", kv...)
		case status >= 400:
			log.Warn("request", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}

// requireAuth resolves the bearer token to an actor and stores it on the
// context. Requests without a valid token stop here.
func requireAuth(resolver identity.Resolver, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortError(c, log, apperr.New(apperr.Unauthorized, "missing or invalid token"))
			return
		}
		actor, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			abortError(c, log, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// actorFrom returns the actor stored by requireAuth.
func actorFrom(c *gin.Context) access.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return access.Actor{}
	}
	return v.(access.Actor)
}
