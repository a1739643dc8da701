package types

import "strings"

// Animation is the persisted, lowercase animation name of a card profile.
// Names that do not map to a known kind are kept as-is and play nothing.
type Animation string

const (
	AnimationSolid Animation = "solid"
	AnimationBlink Animation = "blink"
)

type AnimationKind int

const (
	KindUnknown AnimationKind = iota
	KindSolid
	KindBlink
)

// AnimationKinds lists every kind the effect planner must handle.
var AnimationKinds = []AnimationKind{KindUnknown, KindSolid, KindBlink}

func NormalizeAnimation(s string) Animation {
	return Animation(strings.ToLower(strings.TrimSpace(s)))
}

func (a Animation) Kind() AnimationKind {
	switch NormalizeAnimation(string(a)) {
	case AnimationSolid:
		return KindSolid
	case AnimationBlink:
		return KindBlink
	default:
		return KindUnknown
	}
}

func (k AnimationKind) String() string {
	switch k {
	case KindSolid:
		return "solid"
	case KindBlink:
		return "blink"
	case KindUnknown:
		return "unknown"
	}
	return "invalid"
}
