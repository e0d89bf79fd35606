package model

import "time"

type UnitStatus string

const (
	UnitPending   UnitStatus = "pending"
	UnitCommitted UnitStatus = "committed"
	UnitAborted   UnitStatus = "aborted"
	UnitUnknown   UnitStatus = "unknown"
)

// CallSummary is the audit view of one external call inside a unit.
type CallSummary struct {
	Service string `json:"service"` // lending, amm, vault, token, system
	Name    string `json:"name"`    // e.g. deposit_borrow
	Leg     *uint8 `json:"leg,omitempty"`
}

// UnitRecord is the audit trail entry of one submitted atomic execution unit.
type UnitRecord struct {
	ID        string        `json:"id"`
	Op        string        `json:"op"`
	Chamber   string        `json:"chamber"`
	Calls     []CallSummary `json:"calls"`
	Digest    string        `json:"digest"` // keccak256 of the call envelope
	Status    UnitStatus    `json:"status"`
	Error     string        `json:"error,omitempty"`
	LatencyMs int64         `json:"latency_ms"`
	CreatedAt time.Time     `json:"created_at"`
}

// Event is broadcast to stream subscribers after every recorded transition.
type Event struct {
	Type      string    `json:"type"` // transition, reconciled, failed
	Op        string    `json:"op"`
	Chamber   string    `json:"chamber"`
	UnitID    string    `json:"unit_id,omitempty"`
	Stage     Stage     `json:"stage"`
	Error     string    `json:"error,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
