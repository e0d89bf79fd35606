package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Rent charged by the fake for each record kind, in lamports.
const (
	RentFarm         uint64 = 2_610_000
	RentObligation   uint64 = 2_999_760
	RentTokenAccount uint64 = 4_565_760
)

type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

type FarmRecord struct {
	Authority     solana.PublicKey
	LeveragedFarm solana.PublicKey
}

// Obligation is the lending service's record of one leg.
type Obligation struct {
	Farm      solana.PublicKey
	Authority solana.PublicKey
	Vault     solana.PublicKey
	Index     uint8

	CoinDeposited uint64
	PcDeposited   uint64
	CoinBorrowed  uint64
	PcBorrowed    uint64

	// Working balances held by the obligation between deposit and add-liquidity.
	CoinBalance uint64
	PcBalance   uint64

	Swapped  bool
	LPAmount uint64
	Staked   uint64
}

type VaultBalance struct {
	ObligationVault solana.PublicKey
	Shares          uint64
}

type Pool struct {
	CoinMint    solana.PublicKey
	PcMint      solana.PublicKey
	LPMint      solana.PublicKey
	CoinReserve uint64
	PcReserve   uint64
	LPSupply    uint64
}

type state struct {
	lamports      map[solana.PublicKey]uint64
	tokens        map[solana.PublicKey]TokenAccount
	data          map[solana.PublicKey][]byte
	farms         map[solana.PublicKey]FarmRecord
	obligations   map[solana.PublicKey]Obligation
	vaultBalances map[solana.PublicKey]VaultBalance
	vaultMeta     map[solana.PublicKey]solana.PublicKey
	pools         map[solana.PublicKey]Pool
}

func newState() *state {
	return &state{
		lamports:      make(map[solana.PublicKey]uint64),
		tokens:        make(map[solana.PublicKey]TokenAccount),
		data:          make(map[solana.PublicKey][]byte),
		farms:         make(map[solana.PublicKey]FarmRecord),
		obligations:   make(map[solana.PublicKey]Obligation),
		vaultBalances: make(map[solana.PublicKey]VaultBalance),
		vaultMeta:     make(map[solana.PublicKey]solana.PublicKey),
		pools:         make(map[solana.PublicKey]Pool),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		lamports:      cloneMap(s.lamports),
		tokens:        cloneMap(s.tokens),
		data:          cloneMap(s.data),
		farms:         cloneMap(s.farms),
		obligations:   cloneMap(s.obligations),
		vaultBalances: cloneMap(s.vaultBalances),
		vaultMeta:     cloneMap(s.vaultMeta),
		pools:         cloneMap(s.pools),
	}
}

// Memory is an in-process ledger. Units are serialized; each unit runs its
// calls against a private copy of the state that replaces the live state on commit.
type Memory struct {
	program solana.PublicKey

	unitMu sync.Mutex

	mu        sync.RWMutex
	st        *state
	slot      uint64
	units     map[string]model.UnitStatus
	committed []Call

	failNext     map[string]string
	loseResponse bool
	dropCommit   bool
}

// NewMemory returns an empty ledger that accepts signer seeds derived under program.
func NewMemory(program solana.PublicKey) *Memory {
	return &Memory{
		program:  program,
		st:       newState(),
		slot:     1,
		units:    make(map[string]model.UnitStatus),
		failNext: make(map[string]string),
	}
}

func (m *Memory) Begin(ctx context.Context, opts BeginOptions) (Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.unitMu.Lock()

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	signers := make(map[solana.PublicKey]bool, len(opts.Signers))
	for _, s := range opts.Signers {
		signers[s] = true
	}

	m.mu.Lock()
	if _, dup := m.units[id]; dup {
		m.mu.Unlock()
		m.unitMu.Unlock()
		return nil, fmt.Errorf("unit %s already submitted", id)
	}
	m.units[id] = model.UnitPending
	staged := m.st.clone()
	m.mu.Unlock()

	return &memUnit{m: m, id: id, signers: signers, st: staged}, nil
}

func (m *Memory) Account(_ context.Context, key solana.PublicKey) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.st.data[key]
	if !ok {
		return nil, fmt.Errorf("account %s not found", key)
	}
	return append([]byte(nil), d...), nil
}

func (m *Memory) Slot(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slot, nil
}

// UnitStatus reports Pending for a unit that has begun but not finished.
// Unknown is reserved for ids the ledger has never seen or has dropped.
func (m *Memory) UnitStatus(_ context.Context, id string) (model.UnitStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.units[id]
	if !ok {
		return model.UnitUnknown, nil
	}
	return s, nil
}

type memUnit struct {
	m       *Memory
	id      string
	signers map[solana.PublicKey]bool
	st      *state
	calls   []Call
	err     error
	done    bool
}

func (u *memUnit) ID() string { return u.id }

func (u *memUnit) Calls() []Call {
	return append([]Call(nil), u.calls...)
}

func (u *memUnit) Invoke(ctx context.Context, call Call) error {
	if u.done {
		return fmt.Errorf("unit %s already finished", u.id)
	}
	if u.err != nil {
		return u.err
	}
	if err := ctx.Err(); err != nil {
		u.err = err
		return err
	}
	u.calls = append(u.calls, call)

	if reason, ok := u.m.takeFailure(call.Name); ok {
		u.err = rejected(call.Name, "%s", reason)
		return u.err
	}
	if err := u.m.verifySigners(call, u.signers); err != nil {
		u.err = err
		return err
	}
	if err := execute(u.st, call); err != nil {
		u.err = err
		return err
	}
	return nil
}

func (u *memUnit) Commit(ctx context.Context) error {
	if u.done {
		return fmt.Errorf("unit %s already finished", u.id)
	}
	u.done = true
	defer u.m.unitMu.Unlock()

	m := u.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.err == nil {
		u.err = ctx.Err()
	}
	if u.err != nil {
		m.units[u.id] = model.UnitAborted
		return abortedBy(u.err)
	}
	if m.dropCommit {
		m.dropCommit = false
		delete(m.units, u.id)
		return errors.New("submit unit: connection reset by peer")
	}

	m.st = u.st
	m.slot++
	m.units[u.id] = model.UnitCommitted
	m.committed = append(m.committed, u.calls...)

	if m.loseResponse {
		m.loseResponse = false
		return errors.New("submit unit: response lost")
	}
	return nil
}

func (u *memUnit) Abort() {
	if u.done {
		return
	}
	u.done = true
	u.m.mu.Lock()
	u.m.units[u.id] = model.UnitAborted
	u.m.mu.Unlock()
	u.m.unitMu.Unlock()
}

func (m *Memory) takeFailure(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason, ok := m.failNext[name]
	if ok {
		delete(m.failNext, name)
	}
	return reason, ok
}

func (m *Memory) verifySigners(call Call, external map[solana.PublicKey]bool) error {
	var derived solana.PublicKey
	hasDerived := false
	if len(call.SignerSeeds) > 0 {
		addr, err := solana.CreateProgramAddress(call.SignerSeeds, m.program)
		if err != nil {
			return rejected(call.Name, "invalid signer seeds: %v", err)
		}
		derived, hasDerived = addr, true
	}
	for _, a := range call.Accounts {
		if !a.Signer {
			continue
		}
		if external[a.Key] || (hasDerived && a.Key.Equals(derived)) {
			continue
		}
		return rejected(call.Name, "missing signature for %s %s", a.Role, a.Key)
	}
	return nil
}

// Test and bootstrap helpers. They bypass units and mutate the live state.

func (m *Memory) Airdrop(key solana.PublicKey, lamports uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.lamports[key] += lamports
}

// MintTo creates the token account if needed and credits it.
func (m *Memory) MintTo(account, mint, owner solana.PublicKey, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ta, ok := m.st.tokens[account]
	if !ok {
		ta = TokenAccount{Mint: mint, Owner: owner}
	}
	ta.Amount += amount
	m.st.tokens[account] = ta
}

func (m *Memory) SetAccountData(key solana.PublicKey, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.data[key] = append([]byte(nil), data...)
}

func (m *Memory) SetSlot(slot uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot = slot
}

func (m *Memory) SeedPool(amm solana.PublicKey, p Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.pools[amm] = p
}

// FailNext makes the next call with this name be rejected.
func (m *Memory) FailNext(callName, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[callName] = reason
}

// LoseNextCommitResponse commits the next unit but reports a transport error.
func (m *Memory) LoseNextCommitResponse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loseResponse = true
}

// DropNextCommit discards the next unit and reports a transport error.
func (m *Memory) DropNextCommit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropCommit = true
}

func (m *Memory) Lamports(key solana.PublicKey) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.lamports[key]
}

func (m *Memory) TokenAccount(key solana.PublicKey) (TokenAccount, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ta, ok := m.st.tokens[key]
	return ta, ok
}

func (m *Memory) Farm(key solana.PublicKey) (FarmRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.st.farms[key]
	return f, ok
}

func (m *Memory) Obligation(key solana.PublicKey) (Obligation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.st.obligations[key]
	return o, ok
}

func (m *Memory) VaultBalance(key solana.PublicKey) (VaultBalance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.st.vaultBalances[key]
	return v, ok
}

func (m *Memory) VaultMeta(key solana.PublicKey) (solana.PublicKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.st.vaultMeta[key]
	return v, ok
}

func (m *Memory) Pool(amm solana.PublicKey) (Pool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.st.pools[amm]
	return p, ok
}

// CommittedCalls lists every call of every committed unit, in order.
func (m *Memory) CommittedCalls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Call(nil), m.committed...)
}

// mulDiv computes a*b/c without intermediate overflow.
func mulDiv(a, b, c uint64) (uint64, bool) {
	if c == 0 {
		return 0, false
	}
	var x uint256.Int
	x.Mul(uint256.NewInt(a), uint256.NewInt(b))
	x.Div(&x, uint256.NewInt(c))
	if !x.IsUint64() {
		return 0, false
	}
	return x.Uint64(), true
}
