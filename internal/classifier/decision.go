package classifier

import "pumploss/internal/domain"

// directionCase names the branch of the direction decision table that
// resolved a payload. Keeping the case on the decision makes each branch
// independently assertable.
type directionCase int

const (
	// caseNoTrader means no eligible wallet appears on either leg.
	caseNoTrader directionCase = iota
	// caseUnambiguousBuy means the native sender also receives the tokens.
	caseUnambiguousBuy
	// caseUnambiguousSell means the token sender also receives the SOL.
	caseUnambiguousSell
	// caseAmbiguousFallback means no address ties both legs together and the
	// trader was picked heuristically.
	caseAmbiguousFallback
)

type directionDecision struct {
	Case       directionCase
	Trader     string
	Direction  domain.Direction
	Confidence domain.DirectionConfidence
}

// decideDirection attributes a trader and direction to the transfer pair.
//
// The unambiguous cases require one address on both legs: a wallet that
// spends SOL and receives tokens bought, a wallet that spends tokens and
// receives SOL sold. When neither holds, the fallback takes the first
// eligible address across both legs in leg order, preferring on-curve
// addresses since program-derived accounts sit off the curve. Fallback
// attributions are marked inferred; SOL-in plus tokens-out reads as a buy,
// anything else defaults to a sell.
func (c *Classifier) decideDirection(native *NativeTransfer, token *TokenTransfer) directionDecision {
	if c.isEligibleTrader(native.FromUserAccount) && native.FromUserAccount == token.ToUserAccount {
		return directionDecision{
			Case:       caseUnambiguousBuy,
			Trader:     native.FromUserAccount,
			Direction:  domain.DirectionBuy,
			Confidence: domain.ConfidenceExact,
		}
	}

	if c.isEligibleTrader(token.FromUserAccount) && token.FromUserAccount == native.ToUserAccount {
		return directionDecision{
			Case:       caseUnambiguousSell,
			Trader:     token.FromUserAccount,
			Direction:  domain.DirectionSell,
			Confidence: domain.ConfidenceExact,
		}
	}

	trader, ok := c.fallbackTrader(native, token)
	if !ok {
		return directionDecision{Case: caseNoTrader}
	}

	direction := domain.DirectionSell
	if native.FromUserAccount != "" && token.ToUserAccount != "" {
		direction = domain.DirectionBuy
	}

	return directionDecision{
		Case:       caseAmbiguousFallback,
		Trader:     trader,
		Direction:  direction,
		Confidence: domain.ConfidenceInferred,
	}
}

// fallbackTrader picks a trader when no address spans both legs: the first
// eligible on-curve candidate in leg order, or failing that the first
// eligible candidate of any kind.
func (c *Classifier) fallbackTrader(native *NativeTransfer, token *TokenTransfer) (string, bool) {
	candidates := []string{
		native.FromUserAccount,
		native.ToUserAccount,
		token.FromUserAccount,
		token.ToUserAccount,
	}

	first := ""
	for _, addr := range candidates {
		if !c.isEligibleTrader(addr) {
			continue
		}
		if isOnCurve(addr) {
			return addr, true
		}
		if first == "" {
			first = addr
		}
	}
	if first == "" {
		return "", false
	}
	return first, true
}
