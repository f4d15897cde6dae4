// Package classifier turns enhanced-transaction payloads into trade
// candidates. A payload qualifies as a trade when it carries a SOL transfer
// within the configured bounds, a positive SPL token transfer, and a
// plausible trader wallet on at least one leg.
package classifier

import (
	"time"

	"pumploss/internal/domain"
)

const lamportsPerSol = 1_000_000_000

// Well-known protocol and system accounts that never count as traders.
const (
	SystemProgram        = "11111111111111111111111111111111"
	TokenProgram         = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProg  = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	ComputeBudgetProgram = "ComputeBudget111111111111111111111111111111"
	WSOLMint             = "So11111111111111111111111111111111111111112"
	PumpSwapProgram      = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	PumpFunProgram       = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	RaydiumAMMV4         = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
)

// DefaultDenylist returns the protocol addresses excluded from trader
// detection.
func DefaultDenylist() []string {
	return []string{
		SystemProgram,
		TokenProgram,
		AssociatedTokenProg,
		ComputeBudgetProgram,
		WSOLMint,
		PumpSwapProgram,
		PumpFunProgram,
		RaydiumAMMV4,
	}
}

// Config holds classifier thresholds.
type Config struct {
	// MinLamports and MaxLamports bound the absolute native transfer size a
	// trade may carry. Transfers outside the window are dust or whale noise.
	MinLamports int64
	MaxLamports int64
	// Denylist lists addresses that never count as traders. Nil means
	// DefaultDenylist.
	Denylist []string
}

// DefaultConfig returns the production thresholds: 1 to 100 SOL.
func DefaultConfig() Config {
	return Config{
		MinLamports: 1 * lamportsPerSol,
		MaxLamports: 100 * lamportsPerSol,
	}
}

// Classifier extracts trade candidates from transaction payloads.
type Classifier struct {
	minLamports int64
	maxLamports int64
	denylist    map[string]struct{}
	now         func() int64
}

// New creates a Classifier from cfg.
func New(cfg Config) *Classifier {
	list := cfg.Denylist
	if list == nil {
		list = DefaultDenylist()
	}
	denylist := make(map[string]struct{}, len(list))
	for _, addr := range list {
		denylist[addr] = struct{}{}
	}
	return &Classifier{
		minLamports: cfg.MinLamports,
		maxLamports: cfg.MaxLamports,
		denylist:    denylist,
		now:         func() int64 { return time.Now().Unix() },
	}
}

// Classify extracts a trade candidate from the payload. The second return
// value is false when the payload does not describe a trade: missing or
// malformed signature, no native transfer within bounds, no positive token
// transfer, or no plausible trader wallet.
func (c *Classifier) Classify(p *TransactionPayload) (*domain.Trade, bool) {
	if p == nil || !isValidSignature(p.Signature) {
		return nil, false
	}

	native, ok := c.selectNativeTransfer(p.NativeTransfers)
	if !ok {
		return nil, false
	}
	token, ok := c.selectTokenTransfer(p.TokenTransfers)
	if !ok {
		return nil, false
	}

	dec := c.decideDirection(native, token)
	if dec.Case == caseNoTrader {
		return nil, false
	}

	blockTime := p.Timestamp
	if blockTime <= 0 {
		blockTime = c.now()
	}

	lamports := native.Amount
	if lamports < 0 {
		lamports = -lamports
	}

	return &domain.Trade{
		Signature:     p.Signature,
		BlockTime:     blockTime,
		TraderAddress: dec.Trader,
		TokenMint:     token.Mint,
		Direction:     dec.Direction,
		Confidence:    dec.Confidence,
		TokenAmount:   token.TokenAmount,
		SolAmount:     float64(lamports) / lamportsPerSol,
	}, true
}

// selectNativeTransfer returns the first SOL transfer whose absolute amount
// falls within the configured bounds.
func (c *Classifier) selectNativeTransfer(transfers []NativeTransfer) (*NativeTransfer, bool) {
	for i := range transfers {
		amount := transfers[i].Amount
		if amount < 0 {
			amount = -amount
		}
		if amount >= c.minLamports && amount <= c.maxLamports {
			return &transfers[i], true
		}
	}
	return nil, false
}

// selectTokenTransfer returns the first token transfer with a mint and a
// strictly positive amount, skipping wrapped SOL legs.
func (c *Classifier) selectTokenTransfer(transfers []TokenTransfer) (*TokenTransfer, bool) {
	for i := range transfers {
		t := &transfers[i]
		if t.Mint == "" || t.Mint == WSOLMint || t.TokenAmount <= 0 {
			continue
		}
		return t, true
	}
	return nil, false
}

// isEligibleTrader reports whether addr may be attributed as the trader.
func (c *Classifier) isEligibleTrader(addr string) bool {
	if addr == "" {
		return false
	}
	if _, denied := c.denylist[addr]; denied {
		return false
	}
	return isValidAddress(addr)
}
