package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/signer"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// RPC namespace served by an execution gateway.
const Namespace = "chamber"

// WireCall is Call with its arguments left encoded.
type WireCall struct {
	Service     Service          `json:"service"`
	Program     solana.PublicKey `json:"program"`
	Name        string           `json:"name"`
	Leg         *uint8           `json:"leg,omitempty"`
	Accounts    []AccountMeta    `json:"accounts"`
	Args        json.RawMessage  `json:"args"`
	SignerSeeds [][]byte         `json:"signer_seeds,omitempty"`
}

// Envelope is one unit as submitted to the gateway, signed by the fee payer.
type Envelope struct {
	ID        string             `json:"id"`
	Label     string             `json:"label"`
	Payer     solana.PublicKey   `json:"payer"`
	Signers   []solana.PublicKey `json:"signers"`
	Calls     []WireCall         `json:"calls"`
	Digest    string             `json:"digest"`
	Signature string             `json:"signature"`
}

type SubmitResult struct {
	Status model.UnitStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

func toWire(c Call) (WireCall, error) {
	args, err := json.Marshal(c.Args)
	if err != nil {
		return WireCall{}, fmt.Errorf("encode %s args: %w", c.Name, err)
	}
	return WireCall{
		Service:     c.Service,
		Program:     c.Program,
		Name:        c.Name,
		Leg:         c.Leg,
		Accounts:    c.Accounts,
		Args:        args,
		SignerSeeds: c.SignerSeeds,
	}, nil
}

// Call decodes the arguments into the typed struct for the call name.
func (w WireCall) Call() (Call, error) {
	var args any
	var err error
	switch w.Name {
	case CallTransferNative:
		args, err = decodeArgs[TransferNativeArgs](w.Args)
	case CallCreateHoldingAccount:
		args, err = decodeArgs[CreateHoldingAccountArgs](w.Args)
	case CallTransfer:
		args, err = decodeArgs[TransferArgs](w.Args)
	case CallCreateFarm:
		args, err = decodeArgs[CreateFarmArgs](w.Args)
	case CallCreateObligation:
		args, err = decodeArgs[CreateObligationArgs](w.Args)
	case CallDepositBorrow:
		args, err = decodeArgs[DepositBorrowArgs](w.Args)
	case CallSwap:
		args, err = decodeArgs[SwapArgs](w.Args)
	case CallAddLiquidity:
		args, err = decodeArgs[AddLiquidityArgs](w.Args)
	case CallVaultDeposit:
		args, err = decodeArgs[VaultDepositArgs](w.Args)
	default:
		return Call{}, fmt.Errorf("unknown call %q", w.Name)
	}
	if err != nil {
		return Call{}, fmt.Errorf("decode %s args: %w", w.Name, err)
	}
	return Call{
		Service:     w.Service,
		Program:     w.Program,
		Name:        w.Name,
		Leg:         w.Leg,
		Accounts:    w.Accounts,
		Args:        args,
		SignerSeeds: w.SignerSeeds,
	}, nil
}

func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func wireDigest(calls []WireCall) ([]byte, error) {
	b, err := json.Marshal(calls)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(b), nil
}

// Verify recomputes the digest and checks the payer signature.
func (e *Envelope) Verify() error {
	digest, err := wireDigest(e.Calls)
	if err != nil {
		return err
	}
	if hexutil.Encode(digest) != e.Digest {
		return errors.New("digest mismatch")
	}
	sig, err := solana.SignatureFromBase58(e.Signature)
	if err != nil {
		return fmt.Errorf("bad signature: %w", err)
	}
	if !sig.Verify(e.Payer, digest) {
		return errors.New("payer signature does not verify")
	}
	return nil
}

// RPCExecutor submits units to a remote execution gateway over JSON-RPC.
type RPCExecutor struct {
	client  *rpc.Client
	payer   *signer.Payer
	timeout time.Duration
}

func DialRPC(ctx context.Context, url string, payer *signer.Payer, timeout time.Duration) (*RPCExecutor, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial execution gateway: %w", err)
	}
	return NewRPCExecutor(client, payer, timeout), nil
}

func NewRPCExecutor(client *rpc.Client, payer *signer.Payer, timeout time.Duration) *RPCExecutor {
	return &RPCExecutor{client: client, payer: payer, timeout: timeout}
}

func (e *RPCExecutor) Close() {
	e.client.Close()
}

func (e *RPCExecutor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *RPCExecutor) Begin(_ context.Context, opts BeginOptions) (Unit, error) {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &rpcUnit{e: e, id: id, label: opts.Label, signers: opts.Signers}, nil
}

func (e *RPCExecutor) Account(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	var data []byte
	if err := e.client.CallContext(ctx, &data, Namespace+"_getAccount", key); err != nil {
		return nil, err
	}
	return data, nil
}

func (e *RPCExecutor) Slot(ctx context.Context) (uint64, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	var slot hexutil.Uint64
	if err := e.client.CallContext(ctx, &slot, Namespace+"_getSlot"); err != nil {
		return 0, err
	}
	return uint64(slot), nil
}

func (e *RPCExecutor) UnitStatus(ctx context.Context, id string) (model.UnitStatus, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	var status model.UnitStatus
	if err := e.client.CallContext(ctx, &status, Namespace+"_getUnitStatus", id); err != nil {
		return model.UnitUnknown, err
	}
	return status, nil
}

type rpcUnit struct {
	e       *RPCExecutor
	id      string
	label   string
	signers []solana.PublicKey
	calls   []Call
	done    bool
}

func (u *rpcUnit) ID() string { return u.id }

func (u *rpcUnit) Calls() []Call {
	return append([]Call(nil), u.calls...)
}

// Invoke stages the call. The gateway executes it on commit.
func (u *rpcUnit) Invoke(_ context.Context, call Call) error {
	if u.done {
		return fmt.Errorf("unit %s already finished", u.id)
	}
	if len(call.Accounts) == 0 {
		return rejected(call.Name, "no accounts")
	}
	u.calls = append(u.calls, call)
	return nil
}

func (u *rpcUnit) Abort() {
	u.done = true
}

func (u *rpcUnit) envelope() (*Envelope, error) {
	env := &Envelope{
		ID:      u.id,
		Label:   u.label,
		Payer:   u.e.payer.PublicKey(),
		Signers: u.signers,
		Calls:   make([]WireCall, 0, len(u.calls)),
	}
	for _, c := range u.calls {
		w, err := toWire(c)
		if err != nil {
			return nil, err
		}
		env.Calls = append(env.Calls, w)
	}
	digest, err := wireDigest(env.Calls)
	if err != nil {
		return nil, err
	}
	sig, err := u.e.payer.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("sign unit: %w", err)
	}
	env.Digest = hexutil.Encode(digest)
	env.Signature = sig.String()
	return env, nil
}

// Commit submits the unit. A JSON-RPC error response means the gateway
// rejected the unit without applying it. Transport failures leave the outcome unknown.
func (u *rpcUnit) Commit(ctx context.Context) error {
	if u.done {
		return fmt.Errorf("unit %s already finished", u.id)
	}
	u.done = true

	env, err := u.envelope()
	if err != nil {
		return abortedBy(err)
	}

	ctx, cancel := u.e.withTimeout(ctx)
	defer cancel()

	var res SubmitResult
	if err := u.e.client.CallContext(ctx, &res, Namespace+"_submitUnit", env); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return abortedBy(rejected("submit", "%s (code %d)", rpcErr.Error(), rpcErr.ErrorCode()))
		}
		return fmt.Errorf("submit unit %s: %w", u.id, err)
	}
	switch res.Status {
	case model.UnitCommitted:
		return nil
	case model.UnitAborted:
		return abortedBy(errors.New(res.Error))
	default:
		return fmt.Errorf("submit unit %s: gateway reported %q", u.id, res.Status)
	}
}
