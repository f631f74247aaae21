// internal/game/bot_test.go
package game

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomStrategyDrawsWithoutLegalPlay(t *testing.T) {
	g := NewUnoGame(DefaultHouseRules(), rand.New(rand.NewSource(1)))
	top := card(models.ColorRed, models.KindNumber, 3)
	g.DiscardPile = []*models.Card{top}
	g.CurrentColor = top.Color

	p := &models.Player{ID: uuid.New(), Hand: []*models.Card{
		card(models.ColorBlue, models.KindNumber, 7),
		card(models.ColorGreen, models.KindSkip, 0),
	}}

	move := RandomStrategy(g, p)
	assert.True(t, move.Draw)
	assert.Empty(t, move.Cards)
}

func TestRandomStrategyStacksAllMatches(t *testing.T) {
	g := NewUnoGame(DefaultHouseRules(), rand.New(rand.NewSource(1)))
	top := card(models.ColorRed, models.KindNumber, 3)
	g.DiscardPile = []*models.Card{top}
	g.CurrentColor = top.Color

	red5 := card(models.ColorRed, models.KindNumber, 5)
	blue5 := card(models.ColorBlue, models.KindNumber, 5)
	green5 := card(models.ColorGreen, models.KindNumber, 5)
	p := &models.Player{ID: uuid.New(), Hand: []*models.Card{red5, blue5, green5}}

	// The only legal lead is red5; both other fives stack onto it.
	move := RandomStrategy(g, p)
	require.False(t, move.Draw)
	require.Len(t, move.Cards, 3)
	assert.Equal(t, red5.ID, move.Cards[0])
}

func TestRandomStrategyChoosesColorForWilds(t *testing.T) {
	g := NewUnoGame(DefaultHouseRules(), rand.New(rand.NewSource(1)))
	top := card(models.ColorRed, models.KindNumber, 3)
	g.DiscardPile = []*models.Card{top}
	g.CurrentColor = top.Color

	p := &models.Player{ID: uuid.New(), Hand: []*models.Card{
		card(models.ColorWild, models.KindWild, 0),
	}}

	move := RandomStrategy(g, p)
	require.False(t, move.Draw)
	assert.NotEmpty(t, move.Color, "a wild lead always carries a color choice")
	assert.NotEqual(t, models.ColorWild, move.Color)
}
