package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/gagliardetto/solana-go"
)

// ChamberStore persists chamber and user position records.
type ChamberStore interface {
	GetChamber(ctx context.Context, address solana.PublicKey) (*model.Chamber, error)
	SaveChamber(ctx context.Context, c *model.Chamber) error
	GetPosition(ctx context.Context, address solana.PublicKey) (*model.UserPosition, error)
	// SaveTransition writes the chamber and, when pos is non-nil, the position together.
	SaveTransition(ctx context.Context, c *model.Chamber, pos *model.UserPosition) error
}

// Locker serializes mutating operations per chamber.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), err error)
}

// MemoryChamberStore keeps records in process memory. Reads return copies.
type MemoryChamberStore struct {
	mu        sync.RWMutex
	chambers  map[solana.PublicKey]*model.Chamber
	positions map[solana.PublicKey]model.UserPosition
}

func NewMemoryChamberStore() *MemoryChamberStore {
	return &MemoryChamberStore{
		chambers:  make(map[solana.PublicKey]*model.Chamber),
		positions: make(map[solana.PublicKey]model.UserPosition),
	}
}

func (s *MemoryChamberStore) GetChamber(_ context.Context, address solana.PublicKey) (*model.Chamber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chambers[address]
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("chamber %s not found", address))
	}
	return c.Clone(), nil
}

func (s *MemoryChamberStore) SaveChamber(_ context.Context, c *model.Chamber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chambers[c.Address] = c.Clone()
	return nil
}

func (s *MemoryChamberStore) GetPosition(_ context.Context, address solana.PublicKey) (*model.UserPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[address]
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("user position %s not found", address))
	}
	return &p, nil
}

func (s *MemoryChamberStore) SaveTransition(_ context.Context, c *model.Chamber, pos *model.UserPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chambers[c.Address] = c.Clone()
	if pos != nil {
		s.positions[pos.Address] = *pos
	}
	return nil
}
