package helpers

import (
	"github.com/redis/go-redis/v9"
)

// NewRedisClient initializes a redis client.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Redis key builders for the volatile tokens the auth flows store.

// KeyVerifyToken maps an email-verification token to a user id.
func KeyVerifyToken(token string) string { return "email:verify:token:" + token }

// KeyResetToken maps a password-reset token to a user id.
func KeyResetToken(token string) string { return "pwd:reset:token:" + token }

// KeyVerified caches the verified flag for a user id.
func KeyVerified(uid string) string { return "user:verified:" + uid }
