// internal/database/match.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kyle-santos/wilduno/internal/models"
	"github.com/kyle-santos/wilduno/internal/rating"
)

// RecordSessionAndResults persists the final outcome of a session: the
// games row flips to completed, every participant gets a game_results
// row, and ratings are recomputed from the final standings (lower
// cumulative score is better).
func RecordSessionAndResults(ctx context.Context, gameID uuid.UUID, players []*models.Player, finalScores map[uuid.UUID]int, winnerID uuid.UUID) error {
	if DB == nil {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, status)
			VALUES ($1, 'completed')
			ON CONFLICT (id) DO UPDATE SET status = 'completed', end_time = NOW()
		`
		if _, e := tx.Exec(ctx, upsertGame, gameID); e != nil {
			return e
		}

		for _, pl := range players {
			q := `
				INSERT INTO game_results (game_id, player_id, score, did_win)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET score=$3, did_win=$4
			`
			if _, e2 := tx.Exec(ctx, q, gameID, pl.ID, finalScores[pl.ID], pl.ID == winnerID); e2 != nil {
				return e2
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}

	// Bots have no user rows and no ratings.
	var userList []models.User
	smap := make(map[uuid.UUID]int)
	for _, p := range players {
		if p.IsBot {
			continue
		}
		u, err := GetUserByID(ctx, p.ID)
		if err != nil {
			log.Printf("user not found for rating: %v\n", p.ID)
			continue
		}
		userList = append(userList, *u)
		smap[p.ID] = finalScores[p.ID]
	}
	if len(userList) < 2 {
		log.Printf("No rating update for session %s: fewer than two rated players.\n", gameID)
		return nil
	}

	updated := rating.FinalizeRatings(userList, smap)

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for i, uNew := range updated {
			uOld := userList[i]

			updQ := `UPDATE users SET rating=$1, rating_phi=$2, rating_sigma=$3 WHERE id=$4`
			if _, e := tx.Exec(ctx, updQ, uNew.Rating, uNew.Phi, uNew.Sigma, uNew.ID); e != nil {
				return e
			}
			insQ := `
				INSERT INTO ratings (user_id, game_id, old_rating, new_rating)
				VALUES ($1, $2, $3, $4)
			`
			if _, e2 := tx.Exec(ctx, insQ, uNew.ID, gameID, uOld.Rating, uNew.Rating); e2 != nil {
				return e2
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx rating update: %w", err)
	}
	return nil
}

// StoreFinalSessionState updates games.final_game_state with JSON
// containing the per-round scores, cumulative totals, and winner.
func StoreFinalSessionState(ctx context.Context, gameID uuid.UUID, finalSnapshot map[string]interface{}) error {
	jsonData, err := json.Marshal(finalSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal final snapshot: %w", err)
	}
	query := `
		UPDATE games
		SET final_game_state = $1
		WHERE id = $2
	`
	if DB == nil {
		return nil
	}
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, query, jsonData, gameID)
		return e
	})
	if err != nil {
		return fmt.Errorf("storing final game state in DB: %w", err)
	}
	return nil
}

// UpsertInitialRoundState stores the deal snapshot (deck order, first
// discard, dealt hands) into games.initial_game_state so a round can
// be replayed from its action log.
func UpsertInitialRoundState(gameID uuid.UUID, initialData interface{}) {
	ctx := context.Background()
	dataBytes, err := json.Marshal(initialData)
	if err != nil {
		log.Printf("failed to marshal initial round state for game %v: %v", gameID, err)
		return
	}
	if DB == nil {
		return
	}
	_ = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO games (id, status, initial_game_state, start_time)
			VALUES ($1, 'in_progress', $2, NOW())
			ON CONFLICT (id)
			DO UPDATE SET initial_game_state = EXCLUDED.initial_game_state, status='in_progress'
		`
		_, e := tx.Exec(ctx, q, gameID, dataBytes)
		return e
	})
}

// InsertRoundResult records one finished round of a scoring session.
func InsertRoundResult(ctx context.Context, gameID uuid.UUID, round int, winnerID uuid.UUID, roundScores map[uuid.UUID]int) error {
	js, err := json.Marshal(stringKeyed(roundScores))
	if err != nil {
		return err
	}
	if DB == nil {
		return nil
	}
	q := `
		INSERT INTO round_results (game_id, round, winner_id, scores)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, round) DO UPDATE SET winner_id=$3, scores=$4
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, gameID, round, winnerID, js)
		return e
	})
}

func stringKeyed(m map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(m))
	for id, v := range m {
		out[id.String()] = v
	}
	return out
}
