package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSOptions defines how cross-origin requests are handled.
type CORSOptions struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       time.Duration
}

// CORS attaches the Access-Control headers and answers preflight requests
// with 204 before routing, so OPTIONS works on every path.
func CORS(opts CORSOptions) gin.HandlerFunc {
	allowOrigins := normalizeWithFallback(opts.AllowOrigins, []string{"*"})
	allowMethods := strings.Join(normalizeWithFallback(opts.AllowMethods, []string{"GET", "POST", "OPTIONS"}), ", ")
	allowHeaders := strings.Join(normalizeWithFallback(opts.AllowHeaders, []string{"Content-Type"}), ", ")
	allowAll := hasItem(allowOrigins, "*")

	maxAge := ""
	if opts.MaxAge > 0 {
		maxAge = strconv.Itoa(int(opts.MaxAge / time.Second))
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		h := c.Writer.Header()

		switch {
		case allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && originAllowed(origin, allowOrigins):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		default:
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
			return
		}

		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		if maxAge != "" {
			h.Set("Access-Control-Max-Age", maxAge)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, origin) {
			return true
		}
	}
	return false
}

func hasItem(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func normalizeWithFallback(values, fallback []string) []string {
	var out []string
	for _, v := range values {
		if item := strings.TrimSpace(v); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
