package ledger

import (
	"github.com/gagliardetto/solana-go"
)

// execute applies one call to the staged state of a memory unit.
func execute(st *state, call Call) error {
	switch call.Name {
	case CallTransferNative:
		return execTransferNative(st, call)
	case CallCreateHoldingAccount:
		return execCreateHoldingAccount(st, call)
	case CallTransfer:
		return execTransfer(st, call)
	case CallCreateFarm:
		return execCreateFarm(st, call)
	case CallCreateObligation:
		return execCreateObligation(st, call)
	case CallDepositBorrow:
		return execDepositBorrow(st, call)
	case CallSwap:
		return execSwap(st, call)
	case CallAddLiquidity:
		return execAddLiquidity(st, call)
	case CallVaultDeposit:
		return execVaultDeposit(st, call)
	default:
		return rejected(call.Name, "unknown call")
	}
}

// accounts resolves roles in order, failing on the first missing one.
func accounts(call Call, roles ...string) ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, len(roles))
	for i, r := range roles {
		k, ok := call.Account(r)
		if !ok {
			return nil, rejected(call.Name, "missing %s account", r)
		}
		out[i] = k
	}
	return out, nil
}

func debitLamports(st *state, call Call, key solana.PublicKey, amount uint64) error {
	if st.lamports[key] < amount {
		return rejected(call.Name, "%s has %d lamports, needs %d", key, st.lamports[key], amount)
	}
	st.lamports[key] -= amount
	return nil
}

func debitToken(st *state, call Call, key, authority solana.PublicKey, amount uint64) (TokenAccount, error) {
	ta, ok := st.tokens[key]
	if !ok {
		return ta, rejected(call.Name, "token account %s not found", key)
	}
	if !ta.Owner.Equals(authority) {
		return ta, rejected(call.Name, "%s is not the owner of %s", authority, key)
	}
	if ta.Amount < amount {
		return ta, rejected(call.Name, "insufficient funds in %s: %d < %d", key, ta.Amount, amount)
	}
	ta.Amount -= amount
	st.tokens[key] = ta
	return ta, nil
}

func creditToken(st *state, key, mint solana.PublicKey, amount uint64) {
	ta, ok := st.tokens[key]
	if !ok {
		ta = TokenAccount{Mint: mint}
	}
	ta.Amount += amount
	st.tokens[key] = ta
}

func createATA(st *state, call Call, payer, account, owner, mint solana.PublicKey) error {
	expected, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return rejected(call.Name, "derive holding account: %v", err)
	}
	if !expected.Equals(account) {
		return rejected(call.Name, "holding account %s does not match owner %s and mint %s", account, owner, mint)
	}
	if _, exists := st.tokens[account]; exists {
		return rejected(call.Name, "account %s already in use", account)
	}
	if err := debitLamports(st, call, payer, RentTokenAccount); err != nil {
		return err
	}
	st.lamports[account] += RentTokenAccount
	st.tokens[account] = TokenAccount{Mint: mint, Owner: owner}
	return nil
}

func execTransferNative(st *state, call Call) error {
	args, ok := call.Args.(TransferNativeArgs)
	if !ok {
		return rejected(call.Name, "bad args %T", call.Args)
	}
	k, err := accounts(call, RoleFrom, RoleTo)
	if err != nil {
		return err
	}
	if err := debitLamports(st, call, k[0], args.Lamports); err != nil {
		return err
	}
	st.lamports[k[1]] += args.Lamports
	return nil
}

func execCreateHoldingAccount(st *state, call Call) error {
	k, err := accounts(call, RolePayer, RoleAccount, RoleOwner, RoleMint)
	if err != nil {
		return err
	}
	return createATA(st, call, k[0], k[1], k[2], k[3])
}

func execTransfer(st *state, call Call) error {
	args, ok := call.Args.(TransferArgs)
	if !ok {
		return rejected(call.Name, "bad args %T", call.Args)
	}
	k, err := accounts(call, RoleSource, RoleDestination, RoleAuthority)
	if err != nil {
		return err
	}
	dst, ok := st.tokens[k[1]]
	if !ok {
		return rejected(call.Name, "token account %s not found", k[1])
	}
	src, err := debitToken(st, call, k[0], k[2], args.Amount)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return rejected(call.Name, "mint mismatch between %s and %s", k[0], k[1])
	}
	dst.Amount += args.Amount
	st.tokens[k[1]] = dst
	return nil
}

func execCreateFarm(st *state, call Call) error {
	args, ok := call.Args.(CreateFarmArgs)
	if !ok {
		return rejected(call.Name, "bad args %T", call.Args)
	}
	k, err := accounts(call, RoleAuthority, RolePayer, RoleFarm, RoleLeveragedFarm,
		RoleObligation, RoleObligationVault, RoleLPAccount, RoleLPMint)
	if err != nil {
		return err
	}
	authority, payer, farm, levFarm, obligation, vault, lpAccount, lpMint := k[0], k[1], k[2], k[3], k[4], k[5], k[6], k[7]

	if _, exists := st.farms[farm]; exists {
		return rejected(call.Name, "farm %s already exists", farm)
	}
	if _, exists := st.obligations[obligation]; exists {
		return rejected(call.Name, "obligation %s already exists", obligation)
	}
	if err := createATA(st, call, payer, lpAccount, vault, lpMint); err != nil {
		return err
	}
	if err := debitLamports(st, call, authority, RentFarm+RentObligation); err != nil {
		return err
	}
	st.farms[farm] = FarmRecord{Authority: authority, LeveragedFarm: levFarm}
	st.obligations[obligation] = Obligation{Farm: farm, Authority: authority, Vault: vault, Index: args.ObligationIndex}
	return nil
}

func execCreateObligation(st *state, call Call) error {
	args, ok := call.Args.(CreateObligationArgs)
	if !ok {
		return rejected(call.Name, "bad args %T", call.Args)
	}
	k, err := accounts(call, RoleAuthority, RolePayer, RoleFarm, RoleObligation,
		RoleObligationVault, RoleLPAccount, RoleLPMint)
	if err != nil {
		return err
	}
	authority, payer, farm, obligation, vault, lpAccount, lpMint := k[0], k[1], k[2], k[3], k[4], k[5], k[6]

	f, ok := st.farms[farm]
	if !ok {
		return rejected(call.Name, "farm %s not found", farm)
	}
	if !f.Authority.Equals(authority) {
		return rejected(call.Name, "farm %s belongs to %s", farm, f.Authority)
	}
	if _, exists := st.obligations[obligation]; exists {
		return rejected(call.Name, "obligation %s already exists", obligation)
	}
	if err := createATA(st, call, payer, lpAccount, vault, lpMint); err != nil {
		return err
	}
	if err := debitLamports(st, call, authority, RentObligation); err != nil {
		return err
	}
	st.obligations[obligation] = Obligation{Farm: farm, Authority: authority, Vault: vault, Index: args.ObligationIndex}
	return nil
}

func loadObligation(st *state, call Call, key, authority solana.PublicKey, index uint8) (Obligation, error) {
	o, ok := st.obligations[key]
	if !ok {
		return o, rejected(call.Name, "obligation %s not found", key)
	}
	if !o.Authority.Equals(authority) {
		return o, rejected(call.Name, "obligation %s belongs to %s", key, o.Authority)
	}
	if o.Index != index {
		return o, rejected(call.Name, "obligation %s has index %d, call targets %d", key, o.Index, index)
	}
	return o, nil
}

func execDepositBorrow(st *state, call Call) error {
	args, ok := call.Args.(DepositBorrowArgs)
	if !ok {
		return rejected(call.Name, "bad args %T", call.Args)
	}
	k, err := accounts(call, RoleAuthority, RoleObligation, RoleCoinSource, RolePcSource,
		RoleCoinDestination, RolePcDestination, RoleCoinReserveSupply, RolePcReserveSupply)
	if err != nil {
		return err
	}
	authority, obligation := k[0], k[1]
	coinSrc, pcSrc, coinDst, pcDst, coinSupply, pcSupply := k[2], k[3], k[4], k[5], k[6], k[7]

	o, err := loadObligation(st, call, obligation, authority, args.ObligationIndex)
	if err != nil {
		return err
	}

	coin, err := debitToken(st, call, coinSrc, authority, args.CoinAmount)
	if err != nil {
		return err
	}
	pc, err := debitToken(st, call, pcSrc, authority, args.PcAmount)
	if err != nil {
		return err
	}
	creditToken(st, coinDst, coin.Mint, args.CoinAmount)
	creditToken(st, pcDst, pc.Mint, args.PcAmount)

	if err := borrow(st, call, coinSupply, args.CoinBorrowAmount); err != nil {
		return err
	}
	if err := borrow(st, call, pcSupply, args.PcBorrowAmount); err != nil {
		return err
	}

	o.CoinDeposited += args.CoinAmount
	o.PcDeposited += args.PcAmount
	o.CoinBorrowed += args.CoinBorrowAmount
	o.PcBorrowed += args.PcBorrowAmount
	o.CoinBalance += args.CoinAmount + args.CoinBorrowAmount
	o.PcBalance += args.PcAmount + args.PcBorrowAmount
	st.obligations[obligation] = o
	return nil
}

func borrow(st *state, call Call, supply solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	ta, ok := st.tokens[supply]
	if !ok || ta.Amount < amount {
		return rejected(call.Name, "reserve %s cannot lend %d", supply, amount)
	}
	ta.Amount -= amount
	st.tokens[supply] = ta
	return nil
}

// execSwap rebalances the obligation's working balances to equal value at the pool price.
func execSwap(st *state, call Call) error {
	args, ok := call.Args.(SwapArgs)
	if !ok {
		return rejected(call.Name, "bad args %T", call.Args)
	}
	k, err := accounts(call, RoleAuthority, RoleObligation, RoleAMM)
	if err != nil {
		return err
	}
	o, err := loadObligation(st, call, k[1], k[0], args.ObligationIndex)
	if err != nil {
		return err
	}
	pool, ok := st.pools[k[2]]
	if !ok || pool.CoinReserve == 0 || pool.PcReserve == 0 {
		return rejected(call.Name, "pool %s has no liquidity", k[2])
	}
	if o.CoinBalance == 0 && o.PcBalance == 0 {
		return rejected(call.Name, "obligation %s has nothing to swap", k[1])
	}

	coinAsPc, ok := mulDiv(o.CoinBalance, pool.PcReserve, pool.CoinReserve)
	if !ok {
		return rejected(call.Name, "overflow pricing obligation")
	}
	total := coinAsPc + o.PcBalance
	pcTarget := total / 2
	coinTarget, ok := mulDiv(total-pcTarget, pool.CoinReserve, pool.PcReserve)
	if !ok {
		return rejected(call.Name, "overflow pricing obligation")
	}

	switch {
	case coinTarget < o.CoinBalance:
		pool.CoinReserve += o.CoinBalance - coinTarget
		if pool.PcReserve < pcTarget-o.PcBalance {
			return rejected(call.Name, "pool %s cannot cover swap", k[2])
		}
		pool.PcReserve -= pcTarget - o.PcBalance
	case coinTarget > o.CoinBalance:
		pool.PcReserve += o.PcBalance - pcTarget
		if pool.CoinReserve < coinTarget-o.CoinBalance {
			return rejected(call.Name, "pool %s cannot cover swap", k[2])
		}
		pool.CoinReserve -= coinTarget - o.CoinBalance
	}
	o.CoinBalance, o.PcBalance = coinTarget, pcTarget
	o.Swapped = true
	st.pools[k[2]] = pool
	st.obligations[k[1]] = o
	return nil
}

func execAddLiquidity(st *state, call Call) error {
	args, ok := call.Args.(AddLiquidityArgs)
	if !ok {
		return rejected(call.Name, "bad args %T", call.Args)
	}
	k, err := accounts(call, RoleAuthority, RoleObligation, RoleAMM, RoleLPAccount)
	if err != nil {
		return err
	}
	o, err := loadObligation(st, call, k[1], k[0], args.ObligationIndex)
	if err != nil {
		return err
	}
	if !o.Swapped {
		return rejected(call.Name, "obligation %s has not been swapped", k[1])
	}
	pool, ok := st.pools[k[2]]
	if !ok || pool.LPSupply == 0 {
		return rejected(call.Name, "pool %s is not initialized", k[2])
	}
	lpAcc, ok := st.tokens[k[3]]
	if !ok || !lpAcc.Owner.Equals(o.Vault) || !lpAcc.Mint.Equals(pool.LPMint) {
		return rejected(call.Name, "lp account %s does not belong to obligation vault %s", k[3], o.Vault)
	}

	byCoin, ok1 := mulDiv(o.CoinBalance, pool.LPSupply, pool.CoinReserve)
	byPc, ok2 := mulDiv(o.PcBalance, pool.LPSupply, pool.PcReserve)
	if !ok1 || !ok2 {
		return rejected(call.Name, "overflow minting lp")
	}
	minted := min(byCoin, byPc)
	if minted == 0 {
		return rejected(call.Name, "deposit too small to mint lp")
	}

	pool.CoinReserve += o.CoinBalance
	pool.PcReserve += o.PcBalance
	pool.LPSupply += minted
	lpAcc.Amount += minted
	o.CoinBalance, o.PcBalance = 0, 0
	o.LPAmount += minted

	st.pools[k[2]] = pool
	st.tokens[k[3]] = lpAcc
	st.obligations[k[1]] = o
	return nil
}

func execVaultDeposit(st *state, call Call) error {
	args, ok := call.Args.(VaultDepositArgs)
	if !ok {
		return rejected(call.Name, "bad args %T", call.Args)
	}
	k, err := accounts(call, RoleAuthority, RoleObligation, RoleObligationVault, RoleLPAccount,
		RoleVaultInfo, RoleVaultBalance, RoleVaultBalanceMeta, RolePoolLPAccount)
	if err != nil {
		return err
	}
	authority, obligation, vault, lpAccount := k[0], k[1], k[2], k[3]
	info, balance, meta, poolLP := k[4], k[5], k[6], k[7]

	o, err := loadObligation(st, call, obligation, authority, args.ObligationIndex)
	if err != nil {
		return err
	}
	if !o.Vault.Equals(vault) {
		return rejected(call.Name, "obligation vault mismatch")
	}

	want, err := solana.CreateProgramAddress([][]byte{info.Bytes(), vault.Bytes(), {args.Nonce}}, call.Program)
	if err != nil || !want.Equals(balance) {
		return rejected(call.Name, "invalid vault balance nonce %d", args.Nonce)
	}
	wantMeta, err := solana.CreateProgramAddress([][]byte{balance.Bytes(), vault.Bytes(), {args.MetaNonce}}, call.Program)
	if err != nil || !wantMeta.Equals(meta) {
		return rejected(call.Name, "invalid vault metadata nonce %d", args.MetaNonce)
	}

	lp, ok := st.tokens[lpAccount]
	if !ok || lp.Amount == 0 {
		return rejected(call.Name, "no liquidity to stake in %s", lpAccount)
	}
	amount := lp.Amount
	if _, err := debitToken(st, call, lpAccount, vault, amount); err != nil {
		return err
	}
	creditToken(st, poolLP, lp.Mint, amount)

	vb := st.vaultBalances[balance]
	vb.ObligationVault = vault
	vb.Shares += amount
	st.vaultBalances[balance] = vb
	st.vaultMeta[meta] = balance

	o.Staked += amount
	st.obligations[obligation] = o
	return nil
}
