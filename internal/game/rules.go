// internal/game/rules.go
package game

import (
	"errors"
	"fmt"

	"github.com/kyle-santos/wilduno/internal/models"
)

// DefaultDrawResponseSec is the length of the response window opened by
// a draw2/wild4 play before the forced draw is applied automatically.
const DefaultDrawResponseSec = 6

// HouseRules defines the game-time configuration fixed at round setup.
type HouseRules struct {
	DeckCount       int  `json:"deckCount"`       // 1 = classic, 2 = stacking mode double deck
	ScoreLimit      int  `json:"scoreLimit"`      // cumulative elimination threshold; 0 => single-round session
	DrawResponseSec int  `json:"drawResponseSec"` // seconds to answer a pending draw stack
	AllowCrossStack bool `json:"allowCrossStack"` // allow wild4 to answer a draw2 chain (variant; default strict same-kind)
	TurnTimerSec    int  `json:"turnTimerSec"`    // seconds per normal turn before a bot-style forced move; 0 => no limit
	MaxPlayers      int  `json:"maxPlayers"`      // seat ceiling for the session
	InitialHandSize int  `json:"initialHandSize"` // cards dealt to each seated player
}

// DefaultHouseRules returns the configuration used when a session does
// not override anything.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		DeckCount:       1,
		ScoreLimit:      0,
		DrawResponseSec: DefaultDrawResponseSec,
		AllowCrossStack: false,
		TurnTimerSec:    0,
		MaxPlayers:      8,
		InitialHandSize: 7,
	}
}

// Update overwrites rules present in newRules, leaving absent keys
// untouched. JSON numbers arrive as float64.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}
	assignInt := func(field *int, key string, minVal int) error {
		if val, exists := newRules[key]; exists && val != nil {
			switch v := val.(type) {
			case float64:
				*field = int(v)
			case int:
				*field = v
			default:
				return fmt.Errorf("invalid type for %s", key)
			}
			if *field < minVal {
				return fmt.Errorf("%s must be >= %d", key, minVal)
			}
		}
		return nil
	}

	if err := assignInt(&rules.DeckCount, "deckCount", 1); err != nil {
		return err
	}
	if rules.DeckCount > 2 {
		return errors.New("deckCount must be 1 or 2")
	}
	if err := assignInt(&rules.ScoreLimit, "scoreLimit", 0); err != nil {
		return err
	}
	if err := assignInt(&rules.DrawResponseSec, "drawResponseSec", 1); err != nil {
		return err
	}
	if err := assignBool(&rules.AllowCrossStack, "allowCrossStack"); err != nil {
		return err
	}
	if err := assignInt(&rules.TurnTimerSec, "turnTimerSec", 0); err != nil {
		return err
	}
	if err := assignInt(&rules.MaxPlayers, "maxPlayers", 2); err != nil {
		return err
	}
	if err := assignInt(&rules.InitialHandSize, "initialHandSize", 1); err != nil {
		return err
	}
	// A full table must be dealable: every seat gets a hand and one card
	// remains for the opening discard.
	if rules.MaxPlayers*rules.InitialHandSize+1 > rules.DeckCount*DeckSize {
		return fmt.Errorf("initialHandSize %d cannot deal %d players from %d deck(s)",
			rules.InitialHandSize, rules.MaxPlayers, rules.DeckCount)
	}
	return nil
}

// ParseRules applies a map of overrides onto current and returns the
// result, validating types along the way.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}

// Play validation errors surfaced to the acting player. State is never
// mutated when one of these is returned.
var (
	ErrEmptyPlay      = errors.New("play contains no cards")
	ErrIllegalCard    = errors.New("card is not legal against the current table state")
	ErrMixedStack     = errors.New("stacked cards must all match the first card")
	ErrCardNotInHand  = errors.New("card is not in your hand")
	ErrNotYourTurn    = errors.New("it is not your turn")
	ErrColorRequired  = errors.New("a wild play requires a color choice")
	ErrInvalidColor   = errors.New("chosen color must be red, blue, green, or yellow")
	ErrWrongPhase     = errors.New("action is not valid in the current phase")

	ErrNotEnoughPlayers = errors.New("at least two seated players are required")
	ErrDeckTooSmall     = errors.New("deck cannot cover the opening deal")
	ErrOutOfCards       = errors.New("draw and discard piles cannot satisfy the draw")
)

// IsLegalFirstPlay decides whether card may open a play against the
// current table state. While a draw stack is pending, only a card of
// the pending kind answers it (or, under the cross-stack variant, a
// wild4 may answer a draw2 chain). Otherwise a wild always plays, and
// non-wilds play on matching color, matching number, or matching
// non-number kind.
func IsLegalFirstPlay(card, topDiscard *models.Card, currentColor models.Color, pendingType models.Kind, allowCrossStack bool) bool {
	if pendingType != "" {
		if card.Kind == pendingType {
			return true
		}
		return allowCrossStack && pendingType == models.KindDraw2 && card.Kind == models.KindWild4
	}
	if card.Color == models.ColorWild {
		return true
	}
	if card.Color == currentColor {
		return true
	}
	if card.Kind == models.KindNumber && topDiscard != nil && topDiscard.Kind == models.KindNumber {
		return card.Number == topDiscard.Number
	}
	if topDiscard != nil && card.Kind == topDiscard.Kind {
		switch card.Kind {
		case models.KindNumber, models.KindWild, models.KindWild4:
			return false
		default:
			return true
		}
	}
	return false
}

// CanStack reports whether candidate may ride on firstCard inside one
// multi-card play: same kind, same number for number cards. Color never
// matters for stacking.
func CanStack(firstCard, candidate *models.Card) bool {
	return firstCard.Matches(candidate)
}

// ValidatePlay checks a non-empty ordered play: card[0] against the
// table, every later card against card[0] only.
func ValidatePlay(play []*models.Card, topDiscard *models.Card, currentColor models.Color, pendingType models.Kind, allowCrossStack bool) error {
	if len(play) == 0 {
		return ErrEmptyPlay
	}
	if !IsLegalFirstPlay(play[0], topDiscard, currentColor, pendingType, allowCrossStack) {
		return ErrIllegalCard
	}
	for _, c := range play[1:] {
		if !CanStack(play[0], c) {
			return ErrMixedStack
		}
	}
	return nil
}

// LegalFirstPlays filters hand down to the cards that could open a play
// right now. Used by bots and by the per-player state snapshot.
func LegalFirstPlays(hand []*models.Card, topDiscard *models.Card, currentColor models.Color, pendingType models.Kind, allowCrossStack bool) []*models.Card {
	var legal []*models.Card
	for _, c := range hand {
		if IsLegalFirstPlay(c, topDiscard, currentColor, pendingType, allowCrossStack) {
			legal = append(legal, c)
		}
	}
	return legal
}
