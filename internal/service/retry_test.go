package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{apperrors.UnsupportedProtocol(), Fatal},
		{apperrors.New(apperrors.ErrDerivationFailed, "bad seeds", nil), Fatal},
		{apperrors.New(apperrors.ErrAlreadyExists, "exists", nil), Fatal},
		{apperrors.MathOverflow(), UserCorrectable},
		{apperrors.InsufficientUserPositionFunds(), UserCorrectable},
		{apperrors.NewInvalidTransition("early"), UserCorrectable},
		{apperrors.NewNotFound("missing"), UserCorrectable},
		{apperrors.New(apperrors.ErrChamberBusy, "busy", nil), Transient},
		{apperrors.New(apperrors.ErrStaleOracle, "stale", nil), Transient},
		{apperrors.New(apperrors.ErrUpstream, "aborted", nil), Transient},
		{apperrors.New(apperrors.ErrOutcomeUnknown, "lost", nil), Transient},
		{errors.New("connection reset"), Transient},
		{fmt.Errorf("leg 1: %w", apperrors.MathOverflow()), UserCorrectable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
	assert.False(t, Retryable(nil))
	assert.Equal(t, "user_correctable", UserCorrectable.String())
}

func TestStepPolicies(t *testing.T) {
	for _, op := range []string{
		model.OpInitializeChamber, model.OpInitializeChamberStrategy, model.OpDepositChamber,
		model.OpSettleChamberPosition, model.OpSettleChamberPosition2,
	} {
		p, ok := StepPolicy(op)
		require.True(t, ok, op)
		assert.True(t, p.Idempotent(), op)
		assert.Equal(t, op, model.StepFor(p.Advances))
	}

	for _, op := range []string{model.OpInitializeUserPosition, model.OpWithdrawUserPosition} {
		p, ok := StepPolicy(op)
		require.True(t, ok, op)
		assert.False(t, p.Idempotent(), op)
		assert.Equal(t, model.StageUninitialized, p.Advances)
	}

	_, ok := StepPolicy("close_chamber")
	assert.False(t, ok)
}
