// internal/game/rules_test.go
package game

import (
	"testing"

	"github.com/kyle-santos/wilduno/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLegalFirstPlay(t *testing.T) {
	top := card(models.ColorRed, models.KindNumber, 5)

	cases := []struct {
		name  string
		card  *models.Card
		legal bool
	}{
		{"color match", card(models.ColorRed, models.KindNumber, 9), true},
		{"number match across colors", card(models.ColorBlue, models.KindNumber, 5), true},
		{"no match", card(models.ColorBlue, models.KindNumber, 9), false},
		{"wild always plays", card(models.ColorWild, models.KindWild, 0), true},
		{"wild4 always plays", card(models.ColorWild, models.KindWild4, 0), true},
		{"skip on color", card(models.ColorRed, models.KindSkip, 0), true},
		{"skip off color", card(models.ColorBlue, models.KindSkip, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.legal, IsLegalFirstPlay(tc.card, top, models.ColorRed, "", false))
		})
	}
}

func TestIsLegalFirstPlayKindMatch(t *testing.T) {
	top := card(models.ColorRed, models.KindSkip, 0)

	// An off-color skip rides on a skip top.
	assert.True(t, IsLegalFirstPlay(card(models.ColorBlue, models.KindSkip, 0), top, models.ColorRed, "", false))
	// But a non-matching number does not.
	assert.False(t, IsLegalFirstPlay(card(models.ColorBlue, models.KindNumber, 5), top, models.ColorRed, "", false))
}

func TestIsLegalFirstPlayUnderPendingDraw(t *testing.T) {
	top := card(models.ColorRed, models.KindDraw2, 0)

	d2 := card(models.ColorGreen, models.KindDraw2, 0)
	w4 := card(models.ColorWild, models.KindWild4, 0)
	red9 := card(models.ColorRed, models.KindNumber, 9)

	assert.True(t, IsLegalFirstPlay(d2, top, models.ColorRed, models.KindDraw2, false),
		"only the pending kind answers a stack")
	assert.False(t, IsLegalFirstPlay(red9, top, models.ColorRed, models.KindDraw2, false),
		"a color match is not enough while a stack is pending")
	assert.False(t, IsLegalFirstPlay(w4, top, models.ColorRed, models.KindDraw2, false))
	assert.True(t, IsLegalFirstPlay(w4, top, models.ColorRed, models.KindDraw2, true),
		"the cross-stack variant lets wild4 answer draw2")
	assert.False(t, IsLegalFirstPlay(d2, top, models.ColorRed, models.KindWild4, true),
		"cross-stack never works downward")
}

func TestValidatePlayStacks(t *testing.T) {
	top := card(models.ColorRed, models.KindNumber, 3)

	red5 := card(models.ColorRed, models.KindNumber, 5)
	green5 := card(models.ColorGreen, models.KindNumber, 5)
	red7 := card(models.ColorRed, models.KindNumber, 7)

	require.NoError(t, ValidatePlay([]*models.Card{red5, green5}, top, models.ColorRed, "", false),
		"same number stacks regardless of color")
	assert.ErrorIs(t, ValidatePlay([]*models.Card{red5, red7}, top, models.ColorRed, "", false), ErrMixedStack)
	assert.ErrorIs(t, ValidatePlay(nil, top, models.ColorRed, "", false), ErrEmptyPlay)
	assert.ErrorIs(t, ValidatePlay([]*models.Card{green5}, top, models.ColorRed, "", false), ErrIllegalCard,
		"an illegal lead fails even if it could stack elsewhere")

	// Only the lead is checked against the table; later cards check the lead.
	blueSkip := card(models.ColorBlue, models.KindSkip, 0)
	redSkip := card(models.ColorRed, models.KindSkip, 0)
	require.NoError(t, ValidatePlay([]*models.Card{redSkip, blueSkip}, top, models.ColorRed, "", false))
}

func TestLegalFirstPlays(t *testing.T) {
	top := card(models.ColorRed, models.KindNumber, 3)
	hand := []*models.Card{
		card(models.ColorRed, models.KindNumber, 9),
		card(models.ColorBlue, models.KindNumber, 3),
		card(models.ColorGreen, models.KindNumber, 7),
		card(models.ColorWild, models.KindWild, 0),
	}

	legal := LegalFirstPlays(hand, top, models.ColorRed, "", false)
	require.Len(t, legal, 3)
	for _, c := range legal {
		assert.NotEqual(t, models.ColorGreen, c.Color)
	}
}

func TestHouseRulesUpdate(t *testing.T) {
	rules := DefaultHouseRules()

	// JSON decoding hands numbers over as float64.
	err := rules.Update(map[string]interface{}{
		"deckCount":       float64(2),
		"scoreLimit":      float64(500),
		"drawResponseSec": float64(10),
		"allowCrossStack": true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rules.DeckCount)
	assert.Equal(t, 500, rules.ScoreLimit)
	assert.Equal(t, 10, rules.DrawResponseSec)
	assert.True(t, rules.AllowCrossStack)
	assert.Equal(t, 8, rules.MaxPlayers, "absent keys keep their value")
}

func TestHouseRulesUpdateRejectsBadValues(t *testing.T) {
	rules := DefaultHouseRules()

	assert.Error(t, rules.Update(map[string]interface{}{"deckCount": float64(3)}))
	assert.Error(t, rules.Update(map[string]interface{}{"drawResponseSec": float64(0)}))
	assert.Error(t, rules.Update(map[string]interface{}{"allowCrossStack": "yes"}))
	assert.Error(t, rules.Update(map[string]interface{}{"maxPlayers": float64(1)}))
}

func TestHouseRulesUpdateRejectsUndealableConfig(t *testing.T) {
	rules := DefaultHouseRules()

	// 8 seats x 60 cards cannot come out of any deck configuration.
	assert.Error(t, rules.Update(map[string]interface{}{"initialHandSize": float64(60)}))

	// The same hand size fits a 2-player double-deck table.
	err := rules.Update(map[string]interface{}{
		"deckCount":       float64(2),
		"maxPlayers":      float64(2),
		"initialHandSize": float64(60),
	})
	require.NoError(t, err)
	assert.Equal(t, 60, rules.InitialHandSize)

	// Shrinking the deck back underneath the dealt hands is rejected too.
	assert.Error(t, rules.Update(map[string]interface{}{"deckCount": float64(1)}))
}
