package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cetra-finance/chamber/internal/service"
	"github.com/gin-gonic/gin"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

type IdempotencyRecord struct {
	Status    int
	Body      []byte
	CreatedAt time.Time
	// Set while the first request holding the key is still running.
	Processing bool
}

type IdempotencyStore interface {
	// GetOrLock returns (record, true) if the key exists and (nil, false) if the caller now holds it.
	GetOrLock(key string) (*IdempotencyRecord, bool)
	Save(key string, status int, body []byte)
	Unlock(key string)
}

// InMemIdempotencyStore backs single-instance deployments and tests.
type InMemIdempotencyStore struct {
	mu      sync.RWMutex
	records map[string]*IdempotencyRecord
}

func NewInMemIdempotencyStore() *InMemIdempotencyStore {
	return &InMemIdempotencyStore{
		records: make(map[string]*IdempotencyRecord),
	}
}

func (s *InMemIdempotencyStore) GetOrLock(key string) (*IdempotencyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok {
		return rec, true
	}

	s.records[key] = &IdempotencyRecord{
		Processing: true,
		CreatedAt:  time.Now(),
	}
	return nil, false
}

func (s *InMemIdempotencyStore) Save(key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = &IdempotencyRecord{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now(),
	}
}

func (s *InMemIdempotencyStore) Unlock(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

// IdempotencyMiddleware replays the stored response for a repeated
// X-Idempotency-Key on the same route. Must run after AuthMiddleware.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		idemKey := c.GetHeader(HeaderIdempotencyKey)
		if idemKey == "" || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		fullKey := Caller(c) + ":" + c.Request.Method + " " + c.Request.URL.Path + ":" + idemKey

		record, hit := store.GetOrLock(fullKey)
		if hit {
			if record.Processing {
				c.JSON(http.StatusConflict, gin.H{"error": "request in progress"})
				c.Abort()
				return
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(record.Status, "application/json; charset=utf-8", record.Body)
			c.Abort()
			return
		}

		w := &responseBodyWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status, body := c.Writer.Status(), w.body
		if len(c.Errors) > 0 && !c.Writer.Written() {
			// ErrorHandler renders this after we return; store what it will send.
			appErr := errorBody(c.Errors.Last().Err)
			if appErr.Retry == service.Transient.String() {
				store.Unlock(fullKey)
				return
			}
			rendered, err := json.Marshal(appErr)
			if err != nil {
				store.Unlock(fullKey)
				return
			}
			status, body = appErr.HTTPStatus, rendered
		}

		// Server errors and unresolved outcomes (202) stay retryable.
		if status < 500 && status != http.StatusAccepted {
			store.Save(fullKey, status, body)
		} else {
			store.Unlock(fullKey)
		}
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}
