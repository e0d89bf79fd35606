package model

import "fmt"

// Stage is a point in the strictly forward chamber lifecycle.
type Stage uint8

const (
	StageUninitialized Stage = iota
	StageChamberInitialized
	StageStrategyInitialized
	StageFunded
	StageSettled
	StageStaked
)

// LegCount is fixed at two: one leg borrows quote, the other borrows base.
const LegCount = 2

// Lifecycle operation names, shared by the controller, audit trail and HTTP layer.
const (
	OpInitializeChamber         = "initialize_chamber"
	OpInitializeChamberStrategy = "initialize_chamber_strategy"
	OpInitializeUserPosition    = "initialize_user_position"
	OpWithdrawUserPosition      = "withdraw_user_position"
	OpDepositChamber            = "deposit_chamber"
	OpSettleChamberPosition     = "settle_chamber_position"
	OpSettleChamberPosition2    = "settle_chamber_position2"
)

var stageNames = map[Stage]string{
	StageUninitialized:       "uninitialized",
	StageChamberInitialized:  "chamber_initialized",
	StageStrategyInitialized: "strategy_initialized",
	StageFunded:              "funded",
	StageSettled:             "settled",
	StageStaked:              "staked",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	for k, v := range stageNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(b))
}

// PerLeg reports whether the stage is tracked per leg rather than per chamber.
func (s Stage) PerLeg() bool {
	return s >= StageFunded
}

// StepFor returns the operation that moves a chamber into stage s.
func StepFor(s Stage) string {
	switch s {
	case StageChamberInitialized:
		return OpInitializeChamber
	case StageStrategyInitialized:
		return OpInitializeChamberStrategy
	case StageFunded:
		return OpDepositChamber
	case StageSettled:
		return OpSettleChamberPosition
	case StageStaked:
		return OpSettleChamberPosition2
	default:
		return ""
	}
}

// NextStep is the operation a chamber at stage s accepts next, or "" when terminal.
func NextStep(s Stage) string {
	if s >= StageStaked {
		return ""
	}
	return StepFor(s + 1)
}
