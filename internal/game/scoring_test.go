// internal/game/scoring_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRoundAccumulates(t *testing.T) {
	m := NewMatchState(100)
	a, b := uuid.New(), uuid.New()

	out := m.ApplyRound(map[uuid.UUID]int{a: 0, b: 30})
	assert.Empty(t, out)
	assert.Equal(t, 30, m.TotalScores[b])

	out = m.ApplyRound(map[uuid.UUID]int{a: 45, b: 70})
	require.Len(t, out, 1)
	assert.Equal(t, b, out[0])
	assert.True(t, m.Eliminated[b])
	assert.Equal(t, 45, m.TotalScores[a])
	assert.Len(t, m.RoundScores, 2)
}

func TestApplyRoundEliminationIsIdempotent(t *testing.T) {
	m := NewMatchState(50)
	a := uuid.New()

	out := m.ApplyRound(map[uuid.UUID]int{a: 60})
	require.Len(t, out, 1)

	// Already-eliminated players are never reported again and their
	// totals stay frozen.
	out = m.ApplyRound(map[uuid.UUID]int{a: 10})
	assert.Empty(t, out)
	assert.Equal(t, 60, m.TotalScores[a])
}

func TestResolveFinalWinnerSurvivor(t *testing.T) {
	m := NewMatchState(50)
	pa := &models.Player{ID: uuid.New()}
	pb := &models.Player{ID: uuid.New()}
	pc := &models.Player{ID: uuid.New()}
	players := []*models.Player{pa, pb, pc}

	m.ApplyRound(map[uuid.UUID]int{pa.ID: 10, pb.ID: 60, pc.ID: 20})
	assert.False(t, m.ResolveFinalWinner(players), "two players still alive")

	m.ApplyRound(map[uuid.UUID]int{pa.ID: 5, pc.ID: 55})
	require.True(t, m.ResolveFinalWinner(players))
	assert.Equal(t, pa.ID, m.FinalWinnerID)
}

func TestResolveFinalWinnerSimultaneousWipeout(t *testing.T) {
	m := NewMatchState(50)
	pa := &models.Player{ID: uuid.New()}
	pb := &models.Player{ID: uuid.New()}
	players := []*models.Player{pa, pb}

	// Both cross the limit in the same round: lowest total wins.
	m.ApplyRound(map[uuid.UUID]int{pa.ID: 55, pb.ID: 80})
	require.True(t, m.ResolveFinalWinner(players))
	assert.Equal(t, pa.ID, m.FinalWinnerID)
}
