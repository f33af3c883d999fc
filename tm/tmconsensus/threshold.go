package tmconsensus

import "fmt"

// ThresholdParam is a fraction m/n (n > 0, m < n) against which a weight
// is tested: the threshold is met when weight·n > total·m. Using cross
// multiplication on integers avoids floating point entirely, per spec
// §4.2.
//
// Grounded on the original source's ThresholdParam::is_met, which this
// mirrors exactly, including the deliberate panic on u64 overflow: total
// voting power is bounded by construction, so an overflow here indicates
// a configuration bug, not a condition callers should recover from.
type ThresholdParam struct {
	Numerator   uint64
	Denominator uint64
}

// Classical Tendermint thresholds for a 3f+1 population.
var (
	TwoThirdsPlusOne = ThresholdParam{Numerator: 2, Denominator: 3}
	OneThirdPlusOne  = ThresholdParam{Numerator: 1, Denominator: 3}
)

// Alternate 5f+1 profile thresholds (spec §9 Open Questions): reachable
// by constructing a ThresholdParams value with these fields, not by a
// separate code path.
var (
	TwoFifthsPlusOne  = ThresholdParam{Numerator: 2, Denominator: 5}
	OneFifthPlusOne   = ThresholdParam{Numerator: 1, Denominator: 5}
	FourFifthsPlusOne = ThresholdParam{Numerator: 4, Denominator: 5}
)

// IsMet reports whether weight out of total crosses p's fraction.
func (p ThresholdParam) IsMet(weight, total uint64) bool {
	lhs, lOverflow := mulChecked(weight, p.Denominator)
	rhs, rOverflow := mulChecked(total, p.Numerator)
	if lOverflow || rOverflow {
		panic(fmt.Errorf("tmconsensus: threshold arithmetic overflow (weight=%d total=%d param=%d/%d)",
			weight, total, p.Numerator, p.Denominator))
	}
	return lhs > rhs
}

// MinExpected returns the minimum weight, out of total, needed to meet p.
func (p ThresholdParam) MinExpected(total uint64) uint64 {
	prod, overflow := mulChecked(total, p.Numerator)
	if overflow {
		panic(fmt.Errorf("tmconsensus: threshold arithmetic overflow (total=%d param=%d/%d)",
			total, p.Numerator, p.Denominator))
	}
	return 1 + prod/p.Denominator
}

func mulChecked(a, b uint64) (product uint64, overflow bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	p := a * b
	return p, p/a != b
}

// ThresholdParams bundles the three fractions a given configuration uses:
// the quorum needed to lock/decide a value, the minimum "honest" weight
// used to detect a skip-round condition, and an optional certificate
// quorum for configurations that distinguish locking from certifying
// (the 5f+1 profile in spec §9).
//
// The zero value is not usable; use [DefaultThresholdParams] or
// [FiveFOneThresholdParams].
type ThresholdParams struct {
	Quorum            ThresholdParam
	Honest            ThresholdParam
	CertificateQuorum ThresholdParam
}

// DefaultThresholdParams is the classical 2f+1 / f+1 profile on a 3f+1
// population; see DESIGN.md for why this, rather than the 5f+1
// profile, is the default.
func DefaultThresholdParams() ThresholdParams {
	return ThresholdParams{
		Quorum:            TwoThirdsPlusOne,
		Honest:            OneThirdPlusOne,
		CertificateQuorum: TwoThirdsPlusOne,
	}
}

// FiveFOneThresholdParams is the alternate 4f+1 / 2f+1 / f+1 profile on
// a 5f+1 population described in spec §1 and §9.
func FiveFOneThresholdParams() ThresholdParams {
	return ThresholdParams{
		Quorum:            TwoFifthsPlusOne,
		Honest:            OneFifthPlusOne,
		CertificateQuorum: FourFifthsPlusOne,
	}
}

// ThresholdKind classifies the outcome of comparing a round's vote
// weights against a ThresholdParam.
type ThresholdKind uint8

const (
	ThresholdUnreached ThresholdKind = iota
	ThresholdNil
	ThresholdAny
	ThresholdValue
	ThresholdSkip
)

// Threshold is the sum type `Unreached | Nil | Any | Value(v) | Skip`
// from spec §9. ValueHash is only meaningful when Kind is ThresholdValue.
type Threshold struct {
	Kind      ThresholdKind
	ValueHash Hash
}

// Unreached, ThNil, ThAny, and ThSkip are the constant Threshold variants;
// ThValue constructs the Value(v) variant.
var (
	Unreached = Threshold{Kind: ThresholdUnreached}
	ThNil     = Threshold{Kind: ThresholdNil}
	ThAny     = Threshold{Kind: ThresholdAny}
	ThSkip    = Threshold{Kind: ThresholdSkip}
)

// ThValue constructs the Threshold::Value(v) variant.
func ThValue(v Hash) Threshold {
	return Threshold{Kind: ThresholdValue, ValueHash: v}
}

// String implements fmt.Stringer.
func (t Threshold) String() string {
	switch t.Kind {
	case ThresholdUnreached:
		return "Unreached"
	case ThresholdNil:
		return "Nil"
	case ThresholdAny:
		return "Any"
	case ThresholdValue:
		return fmt.Sprintf("Value(%x)", t.ValueHash[:4])
	case ThresholdSkip:
		return "Skip"
	default:
		return "Threshold(unknown)"
	}
}
