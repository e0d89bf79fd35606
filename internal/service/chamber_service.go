package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cetra-finance/chamber/internal/adapter"
	"github.com/cetra-finance/chamber/internal/ledger"
	"github.com/cetra-finance/chamber/internal/leverage"
	"github.com/cetra-finance/chamber/internal/manager"
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/cetra-finance/chamber/internal/pkg/logger"
	"github.com/cetra-finance/chamber/internal/pkg/metrics"
	"github.com/cetra-finance/chamber/internal/signer"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// PriceSource returns live oracle prices for a farm's two assets.
type PriceSource interface {
	Prices(ctx context.Context, baseOracle, quoteOracle solana.PublicKey) (leverage.Prices, error)
}

type UnitRecorder interface {
	Record(rec *model.UnitRecord)
}

type Publisher interface {
	Publish(ev model.Event)
}

// Event types published after each step.
const (
	EventTransition = "transition"
	EventReconciled = "reconciled"
	EventFailed     = "failed"
)

type Deps struct {
	Deriver  *signer.Deriver
	Farms    *FarmRegistry
	Adapters *adapter.Registry
	Executor ledger.Executor
	Prices   PriceSource
	Engine   *leverage.Engine
	Store    ChamberStore
	Locks    Locker
	// Payer funds account creation and co-signs every unit.
	Payer  solana.PublicKey
	Audit  UnitRecorder
	Events Publisher
	Now    func() time.Time
}

// ChamberService drives the chamber lifecycle. Each step runs as one atomic
// unit under a per-chamber lock, with the in-flight unit recorded on the
// chamber so an interrupted step is reconciled by the next call.
type ChamberService struct {
	deriver  *signer.Deriver
	farms    *FarmRegistry
	adapters *adapter.Registry
	exec     ledger.Executor
	prices   PriceSource
	engine   *leverage.Engine
	store    ChamberStore
	locks    Locker
	payer    solana.PublicKey
	audit    UnitRecorder
	events   Publisher
	now      func() time.Time
}

type noopRecorder struct{}

func (noopRecorder) Record(*model.UnitRecord) {}

type noopPublisher struct{}

func (noopPublisher) Publish(model.Event) {}

func NewChamberService(d Deps) (*ChamberService, error) {
	if d.Deriver == nil || d.Farms == nil || d.Executor == nil || d.Store == nil || d.Prices == nil {
		return nil, errors.New("chamber service: missing required dependency")
	}
	if d.Payer.IsZero() {
		return nil, errors.New("chamber service: payer is required")
	}
	s := &ChamberService{
		deriver:  d.Deriver,
		farms:    d.Farms,
		adapters: d.Adapters,
		exec:     d.Executor,
		prices:   d.Prices,
		engine:   d.Engine,
		store:    d.Store,
		locks:    d.Locks,
		payer:    d.Payer,
		audit:    d.Audit,
		events:   d.Events,
		now:      d.Now,
	}
	if s.adapters == nil {
		s.adapters = adapter.NewRegistry()
	}
	if s.engine == nil {
		s.engine = leverage.NewEngine()
	}
	if s.locks == nil {
		s.locks = manager.NewChamberLocks()
	}
	if s.audit == nil {
		s.audit = noopRecorder{}
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// step is one lifecycle transition ready to submit.
type step struct {
	pending model.PendingStep
	// signers co-sign the unit next to the payer.
	signers []solana.PublicKey
	legs    []model.LegPlan
	invoke  func(ctx context.Context, unit ledger.Unit) error
}

// chamberCtx is an initialized chamber with every address re-derived from its seeds.
type chamberCtx struct {
	chamber  *model.Chamber
	farm     *model.Farm
	services adapter.Services
	scope    *adapter.Scope
}

type stepBuilder func(ctx context.Context, cc *chamberCtx) (*step, error)

// onChamber runs a step against an initialized chamber.
func (s *ChamberService) onChamber(ctx context.Context, address solana.PublicKey, op string, build stepBuilder) (*model.StepResponse, error) {
	policy, ok := StepPolicy(op)
	if !ok {
		return nil, fmt.Errorf("no policy for %s", op)
	}
	unlock, err := s.locks.TryLock(ctx, address.String())
	if err != nil {
		return nil, s.reject(op, address, err)
	}
	defer unlock()

	c, err := s.store.GetChamber(ctx, address)
	if err != nil {
		return nil, s.reject(op, address, err)
	}
	if err := s.reconcile(ctx, c); err != nil {
		return nil, s.reject(op, address, err)
	}
	if c.Stage == model.StageUninitialized {
		return nil, s.reject(op, address, apperrors.NewNotFound(fmt.Sprintf("chamber %s not found", address)))
	}
	services, err := s.adapters.For(c.ProtocolType)
	if err != nil {
		return nil, s.reject(op, address, err)
	}
	if policy.Idempotent() {
		if err := c.CanAdvance(policy.Advances); err != nil {
			return nil, s.reject(op, address, apperrors.NewInvalidTransition(err.Error()))
		}
	}
	cc, err := s.chamberCtx(c, services)
	if err != nil {
		return nil, s.reject(op, address, err)
	}
	st, err := build(ctx, cc)
	if err != nil {
		return nil, s.reject(op, address, err)
	}
	st.pending.Op = op
	st.pending.Target = policy.Advances
	return s.run(ctx, c, st)
}

func (s *ChamberService) chamberCtx(c *model.Chamber, services adapter.Services) (*chamberCtx, error) {
	address, _, err := s.deriver.Chamber(c.LeveragedFarm)
	if err != nil {
		return nil, err
	}
	if !address.Equals(c.Address) {
		return nil, apperrors.New(apperrors.ErrDerivationFailed,
			fmt.Sprintf("chamber %s is not derived from farm %s", c.Address, c.LeveragedFarm), nil)
	}
	if err := s.deriver.VerifyAuthority(c); err != nil {
		return nil, err
	}
	farm, err := s.farms.Get(c.LeveragedFarm)
	if err != nil {
		return nil, err
	}
	accounts, err := s.deriver.Accounts(c, farm)
	if err != nil {
		return nil, err
	}
	return &chamberCtx{
		chamber:  c,
		farm:     farm,
		services: services,
		scope:    &adapter.Scope{Chamber: c, Farm: farm, Accounts: accounts, Payer: s.payer},
	}, nil
}

// run records the pending marker, submits the unit and applies the outcome.
func (s *ChamberService) run(ctx context.Context, c *model.Chamber, st *step) (*model.StepResponse, error) {
	start := time.Now()
	p := st.pending
	p.UnitID = uuid.NewString()
	p.Since = s.now()
	c.Pending = &p
	if err := s.store.SaveChamber(ctx, c); err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "record pending step", err)
	}

	unit, err := s.exec.Begin(ctx, ledger.BeginOptions{
		ID:      p.UnitID,
		Label:   p.Op,
		Signers: append([]solana.PublicKey{s.payer}, st.signers...),
	})
	if err != nil {
		s.clearPending(ctx, c)
		return nil, s.failed(c, &p, nil, start, apperrors.New(apperrors.ErrUpstream, "begin unit", err))
	}

	if err := st.invoke(ctx, unit); err != nil {
		unit.Abort()
		s.clearPending(ctx, c)
		return nil, s.failed(c, &p, unit.Calls(), start, upstream(p.Op, err))
	}

	calls := unit.Calls()
	if err := unit.Commit(ctx); err != nil {
		if ledger.IsAborted(err) {
			s.clearPending(ctx, c)
			return nil, s.failed(c, &p, calls, start, upstream(p.Op, err))
		}
		s.recordUnit(c, &p, calls, model.UnitUnknown, err, start)
		logger.Warn("unit outcome unknown", "op", p.Op, "chamber", c.Address.String(), "unit_id", p.UnitID, "error", err)
		return nil, apperrors.New(apperrors.ErrOutcomeUnknown,
			fmt.Sprintf("%s submitted as unit %s, outcome unknown", p.Op, p.UnitID), err)
	}

	if err := s.finish(ctx, c); err != nil {
		logger.Error("unit committed but transition not recorded", "op", p.Op, "chamber", c.Address.String(), "unit_id", p.UnitID, "error", err)
		s.recordUnit(c, &p, calls, model.UnitCommitted, err, start)
		return nil, err
	}
	s.recordUnit(c, &p, calls, model.UnitCommitted, nil, start)
	s.publish(EventTransition, c, &p, nil)
	logger.Info("lifecycle step committed", "op", p.Op, "chamber", c.Address.String(), "unit_id", p.UnitID, "stage", c.Stage.String())

	return &model.StepResponse{
		Chamber:  c.Address.String(),
		Op:       p.Op,
		UnitID:   p.UnitID,
		Stage:    c.Stage,
		NextStep: c.NextStep(),
		Legs:     st.legs,
	}, nil
}

// finish applies a committed pending step: stage, position deltas, marker cleared.
func (s *ChamberService) finish(ctx context.Context, c *model.Chamber) error {
	p := c.Pending
	now := s.now()
	switch {
	case p.Target == model.StageChamberInitialized:
		if err := c.Init(seedsOf(c), now); err != nil {
			return apperrors.New(apperrors.ErrInternal, "initialize chamber record", err)
		}
	case p.Target.PerLeg():
		for i := range c.Legs {
			if err := c.AdvanceLeg(i, p.Target, now); err != nil {
				return apperrors.New(apperrors.ErrInternal, "advance leg", err)
			}
		}
	case p.Target != model.StageUninitialized:
		if err := c.Advance(p.Target, now); err != nil {
			return apperrors.New(apperrors.ErrInternal, "advance chamber", err)
		}
	}

	var pos *model.UserPosition
	if !p.PositionOwner.IsZero() {
		var err error
		pos, _, err = s.loadPosition(ctx, p.PositionOwner, c.Address)
		if err != nil {
			return err
		}
		if err := pos.Apply(p.CreditBase, p.CreditQuote, p.DebitBase, p.DebitQuote); err != nil {
			return err
		}
	}
	c.Pending = nil
	c.UpdatedAt = now
	if err := s.store.SaveTransition(ctx, c, pos); err != nil {
		return apperrors.New(apperrors.ErrInternal, "record transition", err)
	}
	return nil
}

func seedsOf(c *model.Chamber) model.ChamberSeeds {
	return model.ChamberSeeds{
		Address:       c.Address,
		LeveragedFarm: c.LeveragedFarm,
		Authority:     c.Authority,
		BaseATA:       c.BaseATA,
		QuoteATA:      c.QuoteATA,
		BaseMint:      c.BaseMint,
		QuoteMint:     c.QuoteMint,
		ProtocolType:  c.ProtocolType,
		Bump:          c.Bump,
		AuthorityBump: c.AuthorityBump,
	}
}

// reconcile resolves a unit left pending by an earlier call.
// A committed unit is applied and an aborted or unknown one is forgotten.
// A unit still in flight keeps the marker and fails with OUTCOME_UNKNOWN.
func (s *ChamberService) reconcile(ctx context.Context, c *model.Chamber) error {
	if c.Pending == nil {
		return nil
	}
	p := *c.Pending
	status, err := s.exec.UnitStatus(ctx, p.UnitID)
	if err != nil {
		return apperrors.New(apperrors.ErrOutcomeUnknown, fmt.Sprintf("query unit %s", p.UnitID), err)
	}

	switch status {
	case model.UnitCommitted:
		if err := s.finish(ctx, c); err != nil {
			return err
		}
		logger.Info("reconciled committed unit", "op", p.Op, "chamber", c.Address.String(), "unit_id", p.UnitID, "stage", c.Stage.String())
	case model.UnitPending:
		return apperrors.New(apperrors.ErrOutcomeUnknown, fmt.Sprintf("unit %s is still in flight", p.UnitID), nil)
	default:
		c.Pending = nil
		if err := s.store.SaveChamber(ctx, c); err != nil {
			return apperrors.New(apperrors.ErrInternal, "clear pending step", err)
		}
		logger.Info("reconciled unit that never applied", "op", p.Op, "chamber", c.Address.String(), "unit_id", p.UnitID, "status", string(status))
	}
	s.audit.Record(&model.UnitRecord{
		ID:        p.UnitID,
		Op:        p.Op,
		Chamber:   c.Address.String(),
		Status:    status,
		CreatedAt: s.now(),
	})
	s.publish(EventReconciled, c, &p, nil)
	return nil
}

func (s *ChamberService) clearPending(ctx context.Context, c *model.Chamber) {
	c.Pending = nil
	if err := s.store.SaveChamber(ctx, c); err != nil {
		logger.Error("failed to clear pending step", "chamber", c.Address.String(), "error", err)
	}
}

func upstream(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.New(apperrors.ErrUpstream, fmt.Sprintf("%s aborted", op), err)
}

// reject counts a step refused before any unit was submitted.
func (s *ChamberService) reject(op string, chamber solana.PublicKey, err error) error {
	code := apperrors.TypeOf(err)
	metrics.Rejections.WithLabelValues(string(code)).Inc()
	metrics.Transitions.WithLabelValues(op, "rejected").Inc()
	logger.Info("lifecycle step rejected", "op", op, "chamber", chamber.String(), "code", string(code),
		"retry", Classify(err).String(), "error", err)
	return err
}

func (s *ChamberService) failed(c *model.Chamber, p *model.PendingStep, calls []ledger.Call, start time.Time, err error) error {
	s.recordUnit(c, p, calls, model.UnitAborted, err, start)
	s.publish(EventFailed, c, p, err)
	logger.Warn("lifecycle step aborted", "op", p.Op, "chamber", c.Address.String(), "unit_id", p.UnitID,
		"stage", c.Stage.String(), "code", string(apperrors.TypeOf(err)), "retry", Classify(err).String(), "error", err)
	return err
}

func (s *ChamberService) recordUnit(c *model.Chamber, p *model.PendingStep, calls []ledger.Call, status model.UnitStatus, err error, start time.Time) {
	latency := time.Since(start)
	rec := &model.UnitRecord{
		ID:        p.UnitID,
		Op:        p.Op,
		Chamber:   c.Address.String(),
		Calls:     make([]model.CallSummary, 0, len(calls)),
		Status:    status,
		LatencyMs: latency.Milliseconds(),
		CreatedAt: s.now(),
	}
	for _, call := range calls {
		rec.Calls = append(rec.Calls, model.CallSummary{Service: string(call.Service), Name: call.Name, Leg: call.Leg})
		metrics.ExternalCalls.WithLabelValues(call.Name, string(status)).Inc()
	}
	if digest, derr := ledger.Digest(calls); derr == nil {
		rec.Digest = hexutil.Encode(digest)
	}
	if err != nil {
		rec.Error = err.Error()
	}
	s.audit.Record(rec)
	metrics.UnitLatency.WithLabelValues(p.Op).Observe(latency.Seconds())
	metrics.Transitions.WithLabelValues(p.Op, string(status)).Inc()
}

func (s *ChamberService) publish(typ string, c *model.Chamber, p *model.PendingStep, err error) {
	ev := model.Event{
		Type:      typ,
		Op:        p.Op,
		Chamber:   c.Address.String(),
		UnitID:    p.UnitID,
		Stage:     c.Stage,
		Timestamp: s.now(),
	}
	if err != nil {
		ev.Error = err.Error()
		ev.Retryable = Retryable(err)
	}
	s.events.Publish(ev)
}
