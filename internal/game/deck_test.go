// internal/game/deck_test.go
package game

import (
	"math/rand"
	"testing"

	"github.com/kyle-santos/wilduno/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDeckComposition(t *testing.T) {
	deck := BuildDeck(1)
	require.Len(t, deck, DeckSize)

	kindCounts := map[models.Kind]int{}
	colorCounts := map[models.Color]int{}
	zeroCounts := map[models.Color]int{}
	for _, c := range deck {
		kindCounts[c.Kind]++
		colorCounts[c.Color]++
		if c.Kind == models.KindNumber && c.Number == 0 {
			zeroCounts[c.Color]++
		}
	}

	assert.Equal(t, 76, kindCounts[models.KindNumber], "19 number cards per color")
	assert.Equal(t, 8, kindCounts[models.KindSkip])
	assert.Equal(t, 8, kindCounts[models.KindReverse])
	assert.Equal(t, 8, kindCounts[models.KindDraw2])
	assert.Equal(t, 4, kindCounts[models.KindWild])
	assert.Equal(t, 4, kindCounts[models.KindWild4])

	for _, color := range models.Colors {
		assert.Equal(t, 25, colorCounts[color], "each color holds 25 cards")
		assert.Equal(t, 1, zeroCounts[color], "exactly one zero per color")
	}
	assert.Equal(t, 8, colorCounts[models.ColorWild])
}

func TestBuildDeckDouble(t *testing.T) {
	deck := BuildDeck(2)
	assert.Len(t, deck, 2*DeckSize)
}

func TestShuffleIsReproducibleWithSeed(t *testing.T) {
	a := BuildDeck(1)
	b := BuildDeck(1)
	ShuffleDeck(rand.New(rand.NewSource(7)), a)
	ShuffleDeck(rand.New(rand.NewSource(7)), b)

	// IDs differ between builds; the face sequence must not.
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Label(), b[i].Label(), "position %d diverged", i)
	}
}

func TestDrawInitialDiscardRejectsWild4(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	deck := []*models.Card{
		card(models.ColorWild, models.KindWild4, 0),
		card(models.ColorRed, models.KindNumber, 5),
		card(models.ColorBlue, models.KindNumber, 2),
	}
	first, rest := DrawInitialDiscard(rng, deck)

	assert.NotEqual(t, models.KindWild4, first.Kind)
	assert.Len(t, rest, len(deck)-1, "the rejected card returns to the deck")
}

func TestDrawInitialDiscardKeepsSystemClosed(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	deck := NewShuffledDeck(rng, 1)
	first, rest := DrawInitialDiscard(rng, deck)

	require.NotNil(t, first)
	assert.Equal(t, DeckSize, 1+len(rest))
}
