// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/models"
)

// DeckSize is the card count of a single standard deck.
const DeckSize = 108

// BuildDeck enumerates deckCount (1 or 2) full decks: per color one 0,
// two each of 1-9, two each of skip/reverse/draw2, plus four wild and
// four wild4 per deck. The result is unshuffled and deterministic except
// for the freshly minted card IDs.
func BuildDeck(deckCount int) []*models.Card {
	if deckCount < 1 {
		deckCount = 1
	}
	deck := make([]*models.Card, 0, deckCount*DeckSize)
	mint := func(color models.Color, kind models.Kind, number int) {
		id, _ := uuid.NewRandom()
		deck = append(deck, &models.Card{ID: id, Color: color, Kind: kind, Number: number})
	}
	for d := 0; d < deckCount; d++ {
		for _, color := range models.Colors {
			mint(color, models.KindNumber, 0)
			for n := 1; n <= 9; n++ {
				mint(color, models.KindNumber, n)
				mint(color, models.KindNumber, n)
			}
			for _, kind := range []models.Kind{models.KindSkip, models.KindReverse, models.KindDraw2} {
				mint(color, kind, 0)
				mint(color, kind, 0)
			}
		}
		for i := 0; i < 4; i++ {
			mint(models.ColorWild, models.KindWild, 0)
			mint(models.ColorWild, models.KindWild4, 0)
		}
	}
	return deck
}

// ShuffleDeck permutes cards in place with the provided source. Rules
// code never reaches for the ambient global rand, so shuffles stay
// reproducible under a seeded source.
func ShuffleDeck(rng *rand.Rand, cards []*models.Card) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// NewShuffledDeck builds and shuffles deckCount decks.
func NewShuffledDeck(rng *rand.Rand, deckCount int) []*models.Card {
	deck := BuildDeck(deckCount)
	ShuffleDeck(rng, deck)
	return deck
}

// DrawInitialDiscard pops cards off the deck until one that is not a
// wild4 turns up (a wild4 may not open a round). Every provisional pop
// that fails the check is returned to the deck and the deck reshuffled
// before the next attempt, so no card ever leaves the closed system.
// Returns the starting card and the remaining deck.
func DrawInitialDiscard(rng *rand.Rand, deck []*models.Card) (*models.Card, []*models.Card) {
	for {
		top := deck[0]
		deck = deck[1:]
		if top.Kind != models.KindWild4 {
			return top, deck
		}
		deck = append(deck, top)
		ShuffleDeck(rng, deck)
	}
}
