package ledger

import (
	"context"
	"fmt"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
)

// GatewayService serves the execution gateway protocol on top of any Executor.
// Paired with Memory it acts as a local ledger simulator for RPCExecutor clients.
type GatewayService struct {
	exec Executor
}

// NewGatewayServer registers the service under the chamber namespace.
func NewGatewayServer(exec Executor) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(Namespace, &GatewayService{exec: exec}); err != nil {
		return nil, err
	}
	return server, nil
}

func (g *GatewayService) SubmitUnit(ctx context.Context, env Envelope) (*SubmitResult, error) {
	if err := env.Verify(); err != nil {
		return nil, fmt.Errorf("unit %s: %w", env.ID, err)
	}
	calls := make([]Call, 0, len(env.Calls))
	for _, w := range env.Calls {
		c, err := w.Call()
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}

	signers := append([]solana.PublicKey{env.Payer}, env.Signers...)
	unit, err := g.exec.Begin(ctx, BeginOptions{ID: env.ID, Label: env.Label, Signers: signers})
	if err != nil {
		return nil, err
	}
	for _, c := range calls {
		if err := unit.Invoke(ctx, c); err != nil {
			unit.Abort()
			logger.Info("unit rejected", "unit_id", env.ID, "call", c.Name, "error", err.Error())
			return &SubmitResult{Status: model.UnitAborted, Error: err.Error()}, nil
		}
	}
	if err := unit.Commit(ctx); err != nil {
		if IsAborted(err) {
			return &SubmitResult{Status: model.UnitAborted, Error: err.Error()}, nil
		}
		return &SubmitResult{Status: model.UnitUnknown, Error: err.Error()}, nil
	}
	return &SubmitResult{Status: model.UnitCommitted}, nil
}

func (g *GatewayService) GetAccount(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	return g.exec.Account(ctx, key)
}

func (g *GatewayService) GetSlot(ctx context.Context) (hexutil.Uint64, error) {
	slot, err := g.exec.Slot(ctx)
	return hexutil.Uint64(slot), err
}

func (g *GatewayService) GetUnitStatus(ctx context.Context, id string) (model.UnitStatus, error) {
	return g.exec.UnitStatus(ctx, id)
}
