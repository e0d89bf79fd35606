package middleware

import (
	"crypto/subtle"

	"github.com/cetra-finance/chamber/internal/config"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAPIKey     = "X-API-Key"
	ContextCallerKey = "caller"
	anonymousCaller  = "anonymous"
)

// callerID names a caller by a fingerprint of its key, never the key itself.
func callerID(apiKey string) string {
	return "key:" + hexutil.Encode(crypto.Keccak256([]byte(apiKey)))[2:18]
}

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			if cfg == nil || !cfg.Auth.RequireAPIKey {
				c.Set(ContextCallerKey, anonymousCaller)
				c.Next()
				return
			}
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing API key", nil))
			c.Abort()
			return
		}

		if cfg == nil || cfg.Auth.APIKey == "" ||
			subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.Auth.APIKey)) != 1 {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "invalid API key", nil))
			c.Abort()
			return
		}

		c.Set(ContextCallerKey, callerID(apiKey))
		c.Next()
	}
}

// Caller returns the caller set by AuthMiddleware.
func Caller(c *gin.Context) string {
	if v := c.GetString(ContextCallerKey); v != "" {
		return v
	}
	return anonymousCaller
}
