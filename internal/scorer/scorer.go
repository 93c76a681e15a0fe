// Package scorer derives safety and hype scores, a verdict and a factor
// breakdown from an aggregated snapshot. Scoring is pure: no I/O, no
// clock, no mutation of the input.
package scorer

import (
	"errors"
	"fmt"
	"math"

	"tokenwatch/internal/config"
	"tokenwatch/internal/domain"
)

// Safety component weights. They sum to 1 so a perfect token scores 100
// before penalties.
const (
	weightMint      = 0.30
	weightLP        = 0.25
	weightTax       = 0.15
	weightAnomaly   = 0.15
	weightLiquidity = 0.15

	// missingFieldPenalty is subtracted once per absent required safety
	// input. Unknown is treated as risk, not as neutral.
	missingFieldPenalty = 10.0
)

// Hype component weights.
const (
	weightVelocity     = 0.40
	weightHolderGrowth = 0.20
	weightSocial       = 0.25

	// fullVelocityRatio is the volume/liquidity ratio earning full
	// velocity marks.
	fullVelocityRatio = 4.0

	// fullHolderGrowth is the daily fractional holder growth earning
	// full marks.
	fullHolderGrowth = 0.5

	// corroborationUnit scales the bonus for multi-source agreement.
	corroborationUnit = 8.0
	corroborationCap  = 24.0
)

// ErrThresholds indicates scorer thresholds that violate their bounds.
var ErrThresholds = errors.New("scorer: invalid thresholds")

// Scorer computes scores against configured thresholds. Stateless and
// safe for concurrent use.
type Scorer struct {
	cfg config.ScorerConfig
}

// New builds a Scorer, rejecting threshold combinations that could never
// produce a HOT verdict or that fall outside score bounds.
func New(cfg config.ScorerConfig) (*Scorer, error) {
	if cfg.SafetyFloor < 0 || cfg.SafetyFloor > 100 {
		return nil, fmt.Errorf("%w: safety floor %v outside [0, 100]", ErrThresholds, cfg.SafetyFloor)
	}
	if cfg.SafetyComfort < cfg.SafetyFloor || cfg.SafetyComfort > 100 {
		return nil, fmt.Errorf("%w: safety comfort %v outside [floor, 100]", ErrThresholds, cfg.SafetyComfort)
	}
	if cfg.HypeHotThreshold < 0 || cfg.HypeHotThreshold > 100 {
		return nil, fmt.Errorf("%w: hype threshold %v outside [0, 100]", ErrThresholds, cfg.HypeHotThreshold)
	}
	if cfg.LiquidityFloorUSD <= 0 {
		return nil, fmt.Errorf("%w: liquidity floor %v must be positive", ErrThresholds, cfg.LiquidityFloorUSD)
	}
	if cfg.MaxAcceptableTax <= 0 || cfg.MaxAcceptableTax >= 1 {
		return nil, fmt.Errorf("%w: max acceptable tax %v outside (0, 1)", ErrThresholds, cfg.MaxAcceptableTax)
	}
	return &Scorer{cfg: cfg}, nil
}

// Score derives the judgment for one snapshot. It never fails: absent
// fields degrade the score and confidence instead.
func (s *Scorer) Score(snap *domain.AggregatedSnapshot) *domain.ScoreResult {
	res := &domain.ScoreResult{}

	safety, safetyFactors, risks := s.safety(&snap.Merged)
	hype, hypeFactors := s.hype(&snap.Merged, snap.SourcesOK)

	res.SafetyScore = safety
	res.HypeScore = hype
	res.SafetyFactors = safetyFactors
	res.HypeFactors = hypeFactors
	res.RiskFactors = risks

	for _, f := range snap.Divergent {
		res.RiskFactors = append(res.RiskFactors,
			fmt.Sprintf("sources disagree on %s", f))
	}

	res.Verdict = s.verdict(safety, hype, snap.DataSufficient)
	res.Confidence = confidence(snap)
	return res
}

// safety evaluates the contract-risk side of the snapshot.
func (s *Scorer) safety(f *domain.Fields) (float64, []domain.Factor, []string) {
	var factors []domain.Factor
	var risks []string
	var score, penalty float64

	// Mint authority.
	switch {
	case f.MintRevoked == nil:
		penalty += missingFieldPenalty
		factors = append(factors, domain.Factor{
			Name: "mint_authority", Weight: weightMint,
			Detail: "mint authority unknown",
		})
		risks = append(risks, "mint authority unknown")
	case *f.MintRevoked:
		score += weightMint
		factors = append(factors, domain.Factor{
			Name: "mint_authority", Weight: weightMint,
			Contribution: 100 * weightMint, Detail: "mint authority revoked",
		})
	default:
		factors = append(factors, domain.Factor{
			Name: "mint_authority", Weight: weightMint,
			Detail: "mint authority active",
		})
		risks = append(risks, "mint authority not revoked")
	}

	// LP lock.
	switch {
	case f.LPLocked == nil:
		penalty += missingFieldPenalty
		factors = append(factors, domain.Factor{
			Name: "lp_lock", Weight: weightLP, Detail: "LP lock unknown",
		})
		risks = append(risks, "LP lock unknown")
	case *f.LPLocked:
		lp := 0.6
		detail := "LP locked, duration unknown"
		if f.LPLockDays != nil {
			lp = 0.6 + math.Min(0.4, float64(*f.LPLockDays)/365)
			detail = fmt.Sprintf("LP locked for %d days", *f.LPLockDays)
		}
		score += weightLP * lp
		factors = append(factors, domain.Factor{
			Name: "lp_lock", Weight: weightLP,
			Contribution: 100 * weightLP * lp, Detail: detail,
		})
	default:
		factors = append(factors, domain.Factor{
			Name: "lp_lock", Weight: weightLP, Detail: "LP not locked",
		})
		risks = append(risks, "LP not locked")
	}

	// Transfer tax: the worse of buy and sell.
	tax := maxTax(f)
	switch {
	case tax == nil:
		penalty += missingFieldPenalty
		factors = append(factors, domain.Factor{
			Name: "transfer_tax", Weight: weightTax, Detail: "tax unknown",
		})
		risks = append(risks, "transfer tax unknown")
	case *tax > s.cfg.MaxAcceptableTax:
		factors = append(factors, domain.Factor{
			Name: "transfer_tax", Weight: weightTax,
			Detail: fmt.Sprintf("tax %.1f%% above ceiling %.1f%%", *tax*100, s.cfg.MaxAcceptableTax*100),
		})
		risks = append(risks, fmt.Sprintf("transfer tax %.1f%% above acceptable ceiling", *tax*100))
	default:
		t := 1 - *tax/s.cfg.MaxAcceptableTax
		score += weightTax * t
		factors = append(factors, domain.Factor{
			Name: "transfer_tax", Weight: weightTax,
			Contribution: 100 * weightTax * t,
			Detail:       fmt.Sprintf("tax %.1f%%", *tax*100),
		})
	}

	// Anomaly flags: honeypot and proxy. Unknown sits strictly below a
	// confirmed clean report.
	anomaly, anomalyDetail := anomalyScore(f)
	score += weightAnomaly * anomaly
	factors = append(factors, domain.Factor{
		Name: "anomaly_flags", Weight: weightAnomaly,
		Contribution: 100 * weightAnomaly * anomaly, Detail: anomalyDetail,
	})
	if f.Honeypot != nil && *f.Honeypot {
		risks = append(risks, "honeypot flagged")
	}
	if f.ProxyContract != nil && *f.ProxyContract {
		risks = append(risks, "proxy or upgradeable contract")
	}

	// Liquidity depth, log-scaled above the floor, saturating at 100x.
	switch {
	case f.LiquidityUSD == nil:
		penalty += missingFieldPenalty
		factors = append(factors, domain.Factor{
			Name: "liquidity", Weight: weightLiquidity, Detail: "liquidity unknown",
		})
		risks = append(risks, "liquidity unknown")
	case *f.LiquidityUSD < s.cfg.LiquidityFloorUSD:
		factors = append(factors, domain.Factor{
			Name: "liquidity", Weight: weightLiquidity,
			Detail: fmt.Sprintf("liquidity $%.0f below floor $%.0f", *f.LiquidityUSD, s.cfg.LiquidityFloorUSD),
		})
		risks = append(risks, "liquidity below floor")
	default:
		liq := clamp01(math.Log10(*f.LiquidityUSD/s.cfg.LiquidityFloorUSD) / 2)
		score += weightLiquidity * liq
		factors = append(factors, domain.Factor{
			Name: "liquidity", Weight: weightLiquidity,
			Contribution: 100 * weightLiquidity * liq,
			Detail:       fmt.Sprintf("liquidity $%.0f", *f.LiquidityUSD),
		})
	}

	return clampScore(100*score - penalty), factors, risks
}

// hype evaluates market momentum and social traction.
func (s *Scorer) hype(f *domain.Fields, sourcesOK int) (float64, []domain.Factor) {
	var factors []domain.Factor
	var score float64

	// Trading velocity: how fast the pool turns over.
	if f.Volume24h != nil && f.LiquidityUSD != nil && *f.LiquidityUSD > 0 {
		ratio := *f.Volume24h / *f.LiquidityUSD
		v := clamp01(ratio / fullVelocityRatio)
		score += weightVelocity * v
		factors = append(factors, domain.Factor{
			Name: "velocity", Weight: weightVelocity,
			Contribution: 100 * weightVelocity * v,
			Detail:       fmt.Sprintf("24h volume is %.1fx liquidity", ratio),
		})
	} else {
		factors = append(factors, domain.Factor{
			Name: "velocity", Weight: weightVelocity, Detail: "volume or liquidity unknown",
		})
	}

	// Holder growth.
	if f.HolderGrowth != nil && *f.HolderGrowth > 0 {
		g := clamp01(*f.HolderGrowth / fullHolderGrowth)
		score += weightHolderGrowth * g
		factors = append(factors, domain.Factor{
			Name: "holder_growth", Weight: weightHolderGrowth,
			Contribution: 100 * weightHolderGrowth * g,
			Detail:       fmt.Sprintf("holders growing %.1f%%/24h", *f.HolderGrowth*100),
		})
	} else {
		factors = append(factors, domain.Factor{
			Name: "holder_growth", Weight: weightHolderGrowth, Detail: "no holder growth data",
		})
	}

	// Social traction: mention volume saturating at 1000, shifted by
	// sentiment polarity with capped magnitude.
	if f.MentionCount != nil && *f.MentionCount > 0 {
		base := clamp01(math.Log10(1+float64(*f.MentionCount)) / 3)
		if f.Sentiment != nil {
			base = clamp01(base + 0.25**f.Sentiment)
		}
		score += weightSocial * base
		factors = append(factors, domain.Factor{
			Name: "social", Weight: weightSocial,
			Contribution: 100 * weightSocial * base,
			Detail:       fmt.Sprintf("%d mentions in 24h", *f.MentionCount),
		})
	} else {
		factors = append(factors, domain.Factor{
			Name: "social", Weight: weightSocial, Detail: "no social data",
		})
	}

	total := 100 * score

	// Corroboration: independent confirmation is worth more than any
	// single source, growing super-linearly with source count.
	if sourcesOK >= 2 {
		bonus := math.Min(corroborationCap, corroborationUnit*math.Pow(float64(sourcesOK-1), 1.5))
		total += bonus
		factors = append(factors, domain.Factor{
			Name:         "corroboration",
			Contribution: bonus,
			Detail:       fmt.Sprintf("%d sources corroborate", sourcesOK),
		})
	}

	return clampScore(total), factors
}

// verdict applies the decision thresholds. Ties resolve conservatively:
// a score exactly at the floor is AVOID, exactly at a HOT threshold is
// CAUTION.
func (s *Scorer) verdict(safety, hype float64, sufficient bool) domain.Verdict {
	if safety <= s.cfg.SafetyFloor {
		return domain.VerdictAvoid
	}
	if safety > s.cfg.SafetyComfort && hype > s.cfg.HypeHotThreshold && sufficient {
		return domain.VerdictHot
	}
	return domain.VerdictCaution
}

// confidence reflects how much of the source fleet answered and how well
// the answers agreed.
func confidence(snap *domain.AggregatedSnapshot) float64 {
	if len(snap.Sources) == 0 {
		return 0
	}
	c := float64(snap.SourcesOK) / float64(len(snap.Sources))
	c -= 0.1 * float64(len(snap.Divergent))
	if !snap.DataSufficient && c > 0.5 {
		c = 0.5
	}
	return clamp01(c)
}

func maxTax(f *domain.Fields) *float64 {
	switch {
	case f.BuyTax == nil && f.SellTax == nil:
		return nil
	case f.BuyTax == nil:
		return f.SellTax
	case f.SellTax == nil:
		return f.BuyTax
	case *f.SellTax > *f.BuyTax:
		return f.SellTax
	default:
		return f.BuyTax
	}
}

func anomalyScore(f *domain.Fields) (float64, string) {
	if (f.Honeypot != nil && *f.Honeypot) || (f.ProxyContract != nil && *f.ProxyContract) {
		return 0, "anomaly flags raised"
	}
	if f.Honeypot == nil && f.ProxyContract == nil {
		return 0.5, "anomaly flags unknown"
	}
	return 1, "no anomaly flags"
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
