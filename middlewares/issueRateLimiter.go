package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"civicsync/apperr"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// IssueLimitWindow is how long a user's creation count lives.
const IssueLimitWindow = 24 * time.Hour

// IssueRateLimiter caps how many issues one user may report per window.
// It must run after AuthMiddleware.
func IssueRateLimiter(client redis.Cmdable, prefix string, limit int, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(userIDKey)
		if userID == "" {
			AbortWithError(c, apperr.ErrAuthRequired)
			return
		}

		ctx := c.Request.Context()
		userKey := prefix + ":" + userID

		count, err := client.Incr(ctx, userKey).Result()
		if err != nil {
			logger.ErrorContext(ctx, "redis error incrementing count", "error", err, "request_id", RequestID(c))
			AbortWithError(c, apperr.Wrap(apperr.Internal, "redis error incrementing count", err))
			return
		}

		// The window starts with the first creation.
		if count == 1 {
			if err := client.Expire(ctx, userKey, IssueLimitWindow).Err(); err != nil {
				logger.ErrorContext(ctx, "redis error setting TTL", "error", err, "request_id", RequestID(c))
				AbortWithError(c, apperr.Wrap(apperr.Internal, "redis error setting TTL", err))
				return
			}
		}

		if count > int64(limit) {
			body := gin.H{
				"error": "rate limit exceeded",
				"code":  apperr.RateLimited,
			}
			// The request is refused either way; only the hint depends on the TTL.
			if retryAfter, err := client.TTL(ctx, userKey).Result(); err != nil {
				logger.WarnContext(ctx, "redis error reading TTL", "error", err, "request_id", RequestID(c))
			} else {
				body["retry_after"] = retryAfter.Seconds()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, body)
			return
		}

		c.Next()
	}
}
