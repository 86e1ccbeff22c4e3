package atom

import "fmt"

// TruthValue is a SimpleTruthValue(s, c): strength and confidence, each
// constrained to [0,1]. It is the sole probabilistic annotation an atom
// carries; it is not part of atom identity (spec.md §3).
type TruthValue struct {
	Strength   float64
	Confidence float64
}

// Named constants from spec.md §4.1.
var (
	TRUE    = TruthValue{Strength: 1, Confidence: 1}
	FALSE   = TruthValue{Strength: 0, Confidence: 1}
	DEFAULT = TruthValue{Strength: 0.5, Confidence: 0}
)

// NewTruthValue constructs a SimpleTruthValue, failing with InvalidArgument
// if either component is out of [0,1].
func NewTruthValue(strength, confidence float64) (TruthValue, error) {
	if strength < 0 || strength > 1 {
		return TruthValue{}, NewError(InvalidArgument, "NewTruthValue",
			fmt.Errorf("strength %v out of range [0,1]", strength))
	}
	if confidence < 0 || confidence > 1 {
		return TruthValue{}, NewError(InvalidArgument, "NewTruthValue",
			fmt.Errorf("confidence %v out of range [0,1]", confidence))
	}
	return TruthValue{Strength: strength, Confidence: confidence}, nil
}

// Merge combines two truth values by confidence-weighted average, per
// spec.md §4.1. If both confidences are zero, tv is returned unchanged.
func (tv TruthValue) Merge(other TruthValue) TruthValue {
	total := tv.Confidence + other.Confidence
	if total == 0 {
		return tv
	}
	s := (tv.Strength*tv.Confidence + other.Strength*other.Confidence) / total
	c := total
	if c > 1 {
		c = 1
	}
	return TruthValue{Strength: s, Confidence: c}
}

// Expectation is the strength*confidence product commonly used as a single
// scalar "how much should I believe this" figure, e.g. by the matcher's
// confidence-of-result computation (spec.md §4.4).
func (tv TruthValue) Expectation() float64 {
	return tv.Strength * tv.Confidence
}

func (tv TruthValue) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", tv.Strength, tv.Confidence)
}
