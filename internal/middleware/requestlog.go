package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/cetra-finance/chamber/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID   = "X-Request-ID"
	ContextRequestLog = "request_log"

	maxLoggedBody = 4096
)

// RequestLog is the access log entry for one request. Handlers may attach
// fields through AddLogContext.
type RequestLog struct {
	ID        string
	Caller    string
	Method    string
	Route     string
	Path      string
	IP        string
	Status    int
	LatencyMs int64
	Body      string
	Fields    map[string]any
}

func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(HeaderRequestID, reqID)

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		entry := &RequestLog{
			ID:     reqID,
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
			IP:     c.ClientIP(),
			Fields: make(map[string]any),
		}
		c.Set(ContextRequestLog, entry)

		c.Next()

		entry.Caller = Caller(c)
		entry.Route = c.FullPath()
		entry.Status = c.Writer.Status()
		entry.LatencyMs = time.Since(start).Milliseconds()
		entry.Body = redactBody(c.Request.URL.Path, body)

		args := []any{
			"request_id", entry.ID,
			"caller", entry.Caller,
			"method", entry.Method,
			"route", entry.Route,
			"status", entry.Status,
			"latency_ms", entry.LatencyMs,
			"ip", entry.IP,
		}
		if entry.Body != "" {
			args = append(args, "body", entry.Body)
		}
		for k, v := range entry.Fields {
			args = append(args, k, v)
		}
		if entry.Status >= 500 {
			logger.Warn("request failed", args...)
			return
		}
		logger.Info("request", args...)
	}
}

// AddLogContext attaches a field to the access log entry of the request.
func AddLogContext(c *gin.Context, key string, value any) {
	if val, exists := c.Get(ContextRequestLog); exists {
		if entry, ok := val.(*RequestLog); ok {
			entry.Fields[key] = value
		}
	}
}

func redactBody(path string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > maxLoggedBody {
		return "[truncated]"
	}
	if !isSensitivePath(path) {
		return string(body)
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[redacted]"
	}
	return string(redacted)
}

func isSensitivePath(path string) bool {
	switch {
	case strings.HasPrefix(path, "/v1/chambers"):
		return true
	case strings.HasPrefix(path, "/v1/ledger"):
		return true
	default:
		return false
	}
}

func redactJSON(body []byte) ([]byte, bool) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *any) {
	switch raw := (*v).(type) {
	case map[string]any:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []any:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "api_key",
		"payer_key",
		"private_key",
		"secret_key",
		"signature",
		"signer_seeds":
		return true
	default:
		return false
	}
}
