package middleware

import (
	"github.com/gin-gonic/gin"
	"net"
)

// AllowPrivateIP bypasses the rate limiter for loopback and RFC 1918
// addresses, keeping health checks and in-cluster callers unmetered.
func AllowPrivateIP() AllowFunc {
	return func(c *gin.Context) bool {
		ip := ipFromCtx(c)
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return false
		}
		// 10.0.0.0/8, 172.16/12, 192.168/16, loopback
		private := parsed.IsLoopback() ||
			parsed.IsPrivate()
		return private
	}
}
