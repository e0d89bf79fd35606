package service

import (
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
)

// Class tells a caller what to do with a failed step.
type Class int

const (
	// Fatal failures will fail the same way on every resubmission.
	Fatal Class = iota
	// UserCorrectable failures succeed once the caller fixes the request or waits for the right stage.
	UserCorrectable
	// Transient failures may succeed when resubmitted unchanged.
	Transient
)

func (c Class) String() string {
	switch c {
	case Fatal:
		return "fatal"
	case UserCorrectable:
		return "user_correctable"
	default:
		return "transient"
	}
}

func Classify(err error) Class {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrUnsupportedProtocol, apperrors.ErrDerivationFailed, apperrors.ErrAlreadyExists:
		return Fatal
	case apperrors.ErrMathOverflow, apperrors.ErrInsufficientUserPositionFunds,
		apperrors.ErrInvalidRequest, apperrors.ErrNotFound, apperrors.ErrInvalidTransition, apperrors.ErrAuthFailed:
		return UserCorrectable
	default:
		return Transient
	}
}

func Retryable(err error) bool {
	return err != nil && Classify(err) == Transient
}

// Policy describes whether resubmitting a step can repeat its external effects.
type Policy struct {
	Op string
	// Advances is the stage the step moves every leg into. Zero for steps
	// that only move depositor funds and leave the stage alone.
	Advances model.Stage
}

// Idempotent steps are gated by the stage they advance, so a duplicate
// submission fails with INVALID_TRANSITION instead of running twice.
func (p Policy) Idempotent() bool {
	return p.Advances != model.StageUninitialized
}

var policies = map[string]Policy{
	model.OpInitializeChamber:         {Op: model.OpInitializeChamber, Advances: model.StageChamberInitialized},
	model.OpInitializeChamberStrategy: {Op: model.OpInitializeChamberStrategy, Advances: model.StageStrategyInitialized},
	model.OpInitializeUserPosition:    {Op: model.OpInitializeUserPosition},
	model.OpWithdrawUserPosition:      {Op: model.OpWithdrawUserPosition},
	model.OpDepositChamber:            {Op: model.OpDepositChamber, Advances: model.StageFunded},
	model.OpSettleChamberPosition:     {Op: model.OpSettleChamberPosition, Advances: model.StageSettled},
	model.OpSettleChamberPosition2:    {Op: model.OpSettleChamberPosition2, Advances: model.StageStaked},
}

func StepPolicy(op string) (Policy, bool) {
	p, ok := policies[op]
	return p, ok
}
