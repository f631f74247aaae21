// internal/database/session.go
package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertSessionSeats records the final seating chart for a session the
// moment a game starts, so results and replays can map seats to users.
func InsertSessionSeats(ctx context.Context, sessionID uuid.UUID, seats []uuid.UUID, bots map[uuid.UUID]string) error {
	if DB == nil {
		return nil
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		clearQ := `DELETE FROM session_seats WHERE session_id = $1`
		if _, err := tx.Exec(ctx, clearQ, sessionID); err != nil {
			return err
		}
		q := `
			INSERT INTO session_seats (session_id, user_id, seat_position, is_bot)
			VALUES ($1, $2, $3, $4)
		`
		for pos, userID := range seats {
			_, isBot := bots[userID]
			if _, err := tx.Exec(ctx, q, sessionID, userID, pos, isBot); err != nil {
				return err
			}
		}
		return nil
	})
}
