// internal/rating/rating.go
package rating

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/models"
)

// glickoState tracks each user's (mu, phi, sigma) between iterations.
type glickoState struct {
	mu    float64
	phi   float64
	sigma float64
}

// FinalizeRatings runs a multi-iteration Glicko-2 update on the whole
// group based on their cumulative session scores (lower is better:
// points are penalties from losing rounds). Called once at session end.
//
//  1. Final totals are converted to rank fractions in 0..1 where 1 is
//     best rank and 0 is worst, with ties sharing a fraction.
//  2. MultiIterationGlicko2 refines each user's rating across several
//     iterations so phi and sigma converge closer than a single pass.
func FinalizeRatings(players []models.User, scoresMap map[uuid.UUID]int) []models.User {
	type userScore struct {
		UserID uuid.UUID
		Score  int
	}
	var arr []userScore
	for _, p := range players {
		arr = append(arr, userScore{p.ID, scoresMap[p.ID]})
	}
	sort.Slice(arr, func(i, j int) bool {
		return arr[i].Score < arr[j].Score // ascending, fewest points wins
	})

	// Assign fractional scores: top rank => 1.0, last => 0.0, ties share.
	rankFrac := make(map[uuid.UUID]float64, len(arr))
	i := 0
	for i < len(arr) {
		j := i + 1
		for j < len(arr) && arr[j].Score == arr[i].Score {
			j++
		}
		avgRank := float64(i+(j-1)) / 2
		fr := 1.0 - (avgRank / float64(len(arr)-1))
		for k := i; k < j; k++ {
			rankFrac[arr[k].UserID] = fr
		}
		i = j
	}

	scores := make([]float64, len(players))
	for idx, p := range players {
		scores[idx] = rankFrac[p.ID]
	}

	return MultiIterationGlicko2(players, scores, 10)
}

// MultiIterationGlicko2 repeatedly applies Glicko2 updates for the
// given players and their 0..1 scores for a single session, treating
// "opponent" as the average rating of the rest.
func MultiIterationGlicko2(players []models.User, scores []float64, iterations int) []models.User {
	states := make([]glickoState, len(players))

	for i, u := range players {
		rating := float64(u.Rating)
		if rating == 0 {
			rating = DefaultMu
		}
		phi := u.Phi
		if phi == 0 {
			phi = DefaultPhi
		}
		sigma := u.Sigma
		if sigma == 0 {
			sigma = 0.06
		}
		states[i].mu = (rating - DefaultMu) / GlickoScale
		states[i].phi = phi / GlickoScale
		states[i].sigma = sigma
	}

	for iter := 0; iter < iterations; iter++ {
		var total float64
		for i := range states {
			total += states[i].mu*GlickoScale + DefaultMu
		}
		newStates := make([]glickoState, len(players))
		for i := range players {
			oldMu := states[i].mu
			oldPhi := states[i].phi
			oldSigma := states[i].sigma

			myRating := oldMu*GlickoScale + DefaultMu
			opponentRating := (total - myRating) / float64(len(players)-1)

			oppMu := (opponentRating - DefaultMu) / GlickoScale
			oppPhi := DefaultPhi / GlickoScale

			newStates[i] = doGlickoUpdate(oldMu, oldPhi, oldSigma, oppMu, oppPhi, scores[i])
		}
		states = newStates
	}

	for i := range players {
		players[i].Rating = int(math.Round(states[i].mu*GlickoScale + DefaultMu))
		players[i].Phi = states[i].phi * GlickoScale
		players[i].Sigma = states[i].sigma
	}
	return players
}

// doGlickoUpdate updates (mu, phi, sigma) vs an average "opponent" in one match.
func doGlickoUpdate(mu, phi, sigma, oppMu, oppPhi, score float64) glickoState {
	gVal := g(oppPhi)
	EVal := E(mu, oppMu, oppPhi)
	v := 1.0 / (gVal * gVal * EVal * (1 - EVal))
	delta := v * gVal * (score - EVal)

	a := math.Log(sigma * sigma)
	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*Tau, phi, v, delta, A) < 0 {
			k++
		}
		B = a - k*Tau
	}
	fA := func(x float64) float64 {
		return f(x, phi, v, delta, A)
	}

	fB := fA(B)
	for i := 0; i < 100; i++ {
		fAVal := fA(A)
		if math.Abs(fAVal) < Epsilon {
			break
		}
		A1 := A
		A = A1 - fAVal*(A1-B)/(fAVal-fB)
		fB = fA(B)
		if math.Abs(A-B) < Epsilon {
			break
		}
	}
	newSigma := math.Exp(A / 2)
	phiStar := math.Sqrt(phi*phi + newSigma*newSigma)
	phiPrime := 1.0 / math.Sqrt((1.0/(phiStar*phiStar))+(1.0/v))
	muPrime := mu + phiPrime*phiPrime*gVal*(score-EVal)

	return glickoState{
		mu:    muPrime,
		phi:   phiPrime,
		sigma: newSigma,
	}
}

// Update1v1 is a convenience for a direct two-player update.
func Update1v1(winner, loser models.User) (models.User, models.User) {
	arr := []models.User{winner, loser}
	arr = MultiIterationGlicko2(arr, []float64{1.0, 0.0}, 10)
	return arr[0], arr[1]
}
