// internal/models/card.go
package models

import "github.com/google/uuid"

// Color is one of the four playable colors, or "wild" for cards with no
// fixed color. The active table color is never "wild": when a wild card
// is on top, the chooser's replacement color is tracked separately.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorWild   Color = "wild"
)

// Colors lists the four choosable (non-wild) colors.
var Colors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

// Kind identifies the card's function.
type Kind string

const (
	KindNumber  Kind = "number"
	KindSkip    Kind = "skip"
	KindReverse Kind = "reverse"
	KindDraw2   Kind = "draw2"
	KindWild    Kind = "wild"
	KindWild4   Kind = "wild4"
)

// Card is an immutable card value. Number is meaningful only when
// Kind == KindNumber (0-9) and is omitted from JSON otherwise.
type Card struct {
	ID     uuid.UUID `json:"id"`
	Color  Color     `json:"color"`
	Kind   Kind      `json:"kind"`
	Number int       `json:"number,omitempty"`
}

// Matches reports whether two cards are the same for stacking/matching
// purposes: same kind, and for number cards also the same number.
// Identity (ID) is never part of match equality.
func (c *Card) Matches(other *Card) bool {
	if c.Kind != other.Kind {
		return false
	}
	if c.Kind == KindNumber {
		return c.Number == other.Number
	}
	return true
}

// IsDraw reports whether playing the card adds to a pending draw stack.
func (c *Card) IsDraw() bool {
	return c.Kind == KindDraw2 || c.Kind == KindWild4
}

// DrawAmount is the number of cards the card forces the next player to
// draw (0 for non-draw cards).
func (c *Card) DrawAmount() int {
	switch c.Kind {
	case KindDraw2:
		return 2
	case KindWild4:
		return 4
	default:
		return 0
	}
}

// IsWild reports whether the card requires a color choice when played.
func (c *Card) IsWild() bool {
	return c.Color == ColorWild
}

// Points returns the card's end-of-round scoring value: face value for
// number cards, 20 for skip/reverse/draw2, 50 for wild/wild4.
func (c *Card) Points() int {
	switch c.Kind {
	case KindNumber:
		return c.Number
	case KindSkip, KindReverse, KindDraw2:
		return 20
	case KindWild, KindWild4:
		return 50
	default:
		return 0
	}
}

// Label renders a short human-readable name used in the play history,
// e.g. "red 7", "blue skip", "wild4".
func (c *Card) Label() string {
	switch c.Kind {
	case KindNumber:
		return string(c.Color) + " " + string('0'+rune(c.Number))
	case KindWild, KindWild4:
		return string(c.Kind)
	default:
		return string(c.Color) + " " + string(c.Kind)
	}
}
