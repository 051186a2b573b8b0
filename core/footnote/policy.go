package footnote

import (
	"fmt"
	"strings"
)

// Policy is the requested footnote layout for a run.
type Policy int

const (
	// DontMove renumbers markers per cluster and moves nothing.
	DontMove Policy = iota
	// Inline replaces each reference marker with its definition text.
	Inline
	// BlockEnd collects definitions right after the block that cites them.
	BlockEnd
	// BlockEndOnlySourceIsPageEnd applies BlockEnd only to documents whose
	// definitions are collected at the end; others are renumbered.
	BlockEndOnlySourceIsPageEnd
	// PartEnd collects definitions before the next part boundary.
	PartEnd
	// PartEndOnlySourceIsPageEnd applies PartEnd only to documents whose
	// definitions are collected at the end; others are renumbered.
	PartEndOnlySourceIsPageEnd
	// PageEnd keeps definitions where they are and renumbers per cluster.
	PageEnd
)

var policyNames = [...]string{
	DontMove:                    "dont-move",
	Inline:                      "inline",
	BlockEnd:                    "block-end",
	BlockEndOnlySourceIsPageEnd: "block-end-if-page-end",
	PartEnd:                     "part-end",
	PartEndOnlySourceIsPageEnd:  "part-end-if-page-end",
	PageEnd:                     "page-end",
}

// Policies lists the accepted policy names in declaration order.
func Policies() []string {
	return append([]string(nil), policyNames[:]...)
}

func (p Policy) String() string {
	if p >= 0 && int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy accepts a policy name, case-insensitively. Underscores and
// hyphens are interchangeable.
func ParsePolicy(s string) (Policy, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for i, n := range policyNames {
		if n == name {
			return Policy(i), nil
		}
	}
	return DontMove, fmt.Errorf("unknown policy %q (want one of %s)", s, strings.Join(policyNames[:], ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(policyNames) {
		return nil, fmt.Errorf("invalid policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the CLI and the
// YAML configuration.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Strategy is the transform actually applied to a document.
type Strategy int

const (
	StrategyRenumber Strategy = iota
	StrategyInline
	StrategyBlockEnd
	StrategyPartEnd
)

func (s Strategy) String() string {
	switch s {
	case StrategyInline:
		return "inline"
	case StrategyBlockEnd:
		return "block-end"
	case StrategyPartEnd:
		return "part-end"
	default:
		return "renumber"
	}
}

// Strategy resolves the policy against the detected layout.
func (p Policy) Strategy(layout Layout) Strategy {
	switch p {
	case Inline:
		return StrategyInline
	case BlockEnd:
		return StrategyBlockEnd
	case PartEnd:
		return StrategyPartEnd
	case BlockEndOnlySourceIsPageEnd:
		if layout == LayoutPageEnd {
			return StrategyBlockEnd
		}
	case PartEndOnlySourceIsPageEnd:
		if layout == LayoutPageEnd {
			return StrategyPartEnd
		}
	}
	return StrategyRenumber
}
