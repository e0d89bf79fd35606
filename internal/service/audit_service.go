package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/logger"
)

// AuditService records every submitted unit: a ring buffer for recent
// queries, a JSONL file, and an optional database repo.
type AuditService struct {
	logChan chan *model.UnitRecord
	logFile *os.File
	buffer  *auditBuffer
	repo    UnitRepo
	done    chan struct{}
	once    sync.Once
}

type UnitRepo interface {
	Insert(ctx context.Context, rec *model.UnitRecord) error
	List(ctx context.Context, chamber string, limit int) ([]*model.UnitRecord, error)
}

// NewAuditService appends to path. An empty path keeps records in memory and the repo only.
func NewAuditService(path string, bufferSize int, repo UnitRepo) (*AuditService, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	var f *os.File
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		var err error
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
	}

	svc := &AuditService{
		logChan: make(chan *model.UnitRecord, bufferSize),
		logFile: f,
		buffer:  newAuditBuffer(bufferSize),
		repo:    repo,
		done:    make(chan struct{}),
	}
	go svc.processLogs()
	return svc, nil
}

func (s *AuditService) Record(rec *model.UnitRecord) {
	s.buffer.Add(rec)
	select {
	case s.logChan <- rec:
	default:
		logger.Warn("audit queue full, dropping unit record", "unit_id", rec.ID, "op", rec.Op)
	}
}

// List prefers the repo and falls back to the in-memory buffer.
func (s *AuditService) List(ctx context.Context, chamber string, limit int) ([]*model.UnitRecord, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, chamber, limit)
		if err == nil {
			return records, nil
		}
		logger.Warn("unit repo list failed, serving buffer", "error", err)
	}
	return s.buffer.List(chamber, limit), nil
}

func (s *AuditService) processLogs() {
	defer close(s.done)
	var encoder *json.Encoder
	if s.logFile != nil {
		encoder = json.NewEncoder(s.logFile)
	}
	for rec := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), rec); err != nil {
				logger.Error("failed to store unit record", "unit_id", rec.ID, "error", err)
			}
		}
		if encoder != nil {
			if err := encoder.Encode(rec); err != nil {
				logger.Error("failed to write unit record", "unit_id", rec.ID, "error", err)
			}
		}
	}
}

// Close drains queued records before closing the file.
func (s *AuditService) Close() {
	s.once.Do(func() {
		close(s.logChan)
		<-s.done
		if s.logFile != nil {
			s.logFile.Close()
		}
	})
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.UnitRecord
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.UnitRecord, 0, maxSize),
	}
}

func (b *auditBuffer) Add(rec *model.UnitRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, rec)
		return
	}
	b.records[b.nextIndex] = rec
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

// List returns newest first.
func (b *auditBuffer) List(chamber string, limit int) []*model.UnitRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.UnitRecord, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		rec := b.records[idx]
		if chamber != "" && rec.Chamber != chamber {
			continue
		}
		results = append(results, rec)
		if len(results) >= limit {
			break
		}
	}
	return results
}
