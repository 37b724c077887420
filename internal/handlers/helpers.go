package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// parseLimit reads the limit query parameter and clamps it to [1, max],
// falling back to def when absent or unparsable.
func parseLimit(c *gin.Context, def, max int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

// parseBefore reads the before_time cursor, if present.
func parseBefore(c *gin.Context) (*time.Time, error) {
	raw := c.Query("before_time")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func requestIDFromContext(c *gin.Context) string {
	return c.GetHeader("X-Request-Id")
}

func userIDPtr(id int) *int64 {
	v := int64(id)
	return &v
}
