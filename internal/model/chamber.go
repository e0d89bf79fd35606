package model

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// LegState tracks one of the two external obligations owned by a chamber.
type LegState struct {
	Index uint8 `json:"index"`
	Stage Stage `json:"stage"`
}

// PendingStep marks a unit that was submitted but whose outcome is not yet recorded.
// The position deltas are applied when the unit is confirmed committed.
type PendingStep struct {
	Op            string           `json:"op"`
	UnitID        string           `json:"unit_id"`
	Target        Stage            `json:"target"`
	Since         time.Time        `json:"since"`
	PositionOwner solana.PublicKey `json:"position_owner,omitempty"`
	CreditBase    uint64           `json:"credit_base,omitempty"`
	CreditQuote   uint64           `json:"credit_quote,omitempty"`
	DebitBase     uint64           `json:"debit_base,omitempty"`
	DebitQuote    uint64           `json:"debit_quote,omitempty"`
}

// Chamber is the record of one leveraged strategy instance.
type Chamber struct {
	Address       solana.PublicKey   `json:"address"`
	LeveragedFarm solana.PublicKey   `json:"leveraged_farm"`
	Authority     solana.PublicKey   `json:"authority"`
	BaseATA       solana.PublicKey   `json:"base_ata"`
	QuoteATA      solana.PublicKey   `json:"quote_ata"`
	BaseMint      solana.PublicKey   `json:"base_mint"`
	QuoteMint     solana.PublicKey   `json:"quote_mint"`
	ProtocolType  ProtocolType       `json:"protocol_type"`
	Bump          uint8              `json:"bump"`
	AuthorityBump uint8              `json:"authority_bump"`
	Stage         Stage              `json:"stage"`
	Legs          [LegCount]LegState `json:"legs"`
	Pending       *PendingStep       `json:"pending,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ChamberSeeds are the derived values written once by Init.
type ChamberSeeds struct {
	Address       solana.PublicKey
	LeveragedFarm solana.PublicKey
	Authority     solana.PublicKey
	BaseATA       solana.PublicKey
	QuoteATA      solana.PublicKey
	BaseMint      solana.PublicKey
	QuoteMint     solana.PublicKey
	ProtocolType  ProtocolType
	Bump          uint8
	AuthorityBump uint8
}

// Init writes the one-time chamber fields. A chamber can only be initialized once.
func (c *Chamber) Init(s ChamberSeeds, now time.Time) error {
	if c.Stage != StageUninitialized {
		return fmt.Errorf("chamber %s already initialized", c.Address)
	}
	c.Address = s.Address
	c.LeveragedFarm = s.LeveragedFarm
	c.Authority = s.Authority
	c.BaseATA = s.BaseATA
	c.QuoteATA = s.QuoteATA
	c.BaseMint = s.BaseMint
	c.QuoteMint = s.QuoteMint
	c.ProtocolType = s.ProtocolType
	c.Bump = s.Bump
	c.AuthorityBump = s.AuthorityBump
	c.Stage = StageChamberInitialized
	for i := range c.Legs {
		c.Legs[i] = LegState{Index: uint8(i), Stage: StageChamberInitialized}
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// CanAdvance checks that every leg sits exactly one stage before target.
func (c *Chamber) CanAdvance(target Stage) error {
	if target == StageUninitialized || target > StageStaked {
		return fmt.Errorf("invalid target stage %s", target)
	}
	for _, leg := range c.Legs {
		if leg.Stage+1 != target {
			return fmt.Errorf("leg %d is %s, %s requires %s", leg.Index, leg.Stage, StepFor(target), target-1)
		}
	}
	return nil
}

// Advance moves every leg to target. Stages never move backwards.
func (c *Chamber) Advance(target Stage, now time.Time) error {
	if err := c.CanAdvance(target); err != nil {
		return err
	}
	for i := range c.Legs {
		c.Legs[i].Stage = target
	}
	c.Stage = c.overallStage()
	c.UpdatedAt = now
	return nil
}

// AdvanceLeg moves a single leg forward by exactly one stage.
func (c *Chamber) AdvanceLeg(index int, target Stage, now time.Time) error {
	if index < 0 || index >= LegCount {
		return fmt.Errorf("leg index %d out of range", index)
	}
	if !target.PerLeg() {
		return fmt.Errorf("stage %s is not tracked per leg", target)
	}
	if c.Legs[index].Stage+1 != target {
		return fmt.Errorf("leg %d is %s, cannot move to %s", index, c.Legs[index].Stage, target)
	}
	c.Legs[index].Stage = target
	c.Stage = c.overallStage()
	c.UpdatedAt = now
	return nil
}

// overallStage is the stage every leg has reached.
func (c *Chamber) overallStage() Stage {
	lowest := c.Legs[0].Stage
	for _, leg := range c.Legs[1:] {
		if leg.Stage < lowest {
			lowest = leg.Stage
		}
	}
	return lowest
}

// NextStep is the lifecycle operation the chamber accepts next.
func (c *Chamber) NextStep() string {
	return NextStep(c.Stage)
}

func (c *Chamber) Clone() *Chamber {
	if c == nil {
		return nil
	}
	out := *c
	if c.Pending != nil {
		p := *c.Pending
		out.Pending = &p
	}
	return &out
}
