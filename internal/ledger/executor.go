package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/gagliardetto/solana-go"
)

// ErrUnitAborted marks a definitive abort: nothing staged in the unit took effect.
// Any other commit error leaves the outcome unknown.
var ErrUnitAborted = errors.New("unit aborted")

// CallError is an external call rejected by its service.
type CallError struct {
	Call   string
	Reason string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Call, e.Reason)
}

func rejected(call, format string, args ...any) error {
	return &CallError{Call: call, Reason: fmt.Sprintf(format, args...)}
}

type BeginOptions struct {
	// ID defaults to a random uuid.
	ID    string
	Label string
	// Signers are external keys that co-sign the unit, e.g. a depositor.
	Signers []solana.PublicKey
}

// Executor submits atomic execution units and reads ledger state.
type Executor interface {
	Begin(ctx context.Context, opts BeginOptions) (Unit, error)
	Account(ctx context.Context, key solana.PublicKey) ([]byte, error)
	Slot(ctx context.Context) (uint64, error)
	UnitStatus(ctx context.Context, id string) (model.UnitStatus, error)
}

// Unit groups calls that commit or abort together. Calls run in the order invoked.
type Unit interface {
	ID() string
	Invoke(ctx context.Context, call Call) error
	Commit(ctx context.Context) error
	Abort()
	Calls() []Call
}

// IsAborted reports whether err proves the unit did not commit.
func IsAborted(err error) bool {
	return errors.Is(err, ErrUnitAborted)
}

func abortedBy(cause error) error {
	return fmt.Errorf("%w: %w", ErrUnitAborted, cause)
}
