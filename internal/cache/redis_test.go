// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TestPublishGameActionQueueShape pushes one action through the real
// queue and reads it back. Requires a local Redis; skipped otherwise.
func TestPublishGameActionQueueShape(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("no local redis available: %v", err)
	}

	prev := Rdb
	Rdb = rdb
	defer func() { Rdb = prev }()

	record := GameActionRecord{
		GameID:        uuid.New(),
		ActionIndex:   1,
		ActorUserID:   uuid.New(),
		ActionType:    "player_play",
		ActionPayload: map[string]interface{}{"cards": 2},
		Timestamp:     time.Now().UnixMilli(),
	}
	if err := PublishGameAction(ctx, record); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	res, err := rdb.BLPop(ctx, 2*time.Second, DefaultQueueName).Result()
	if err != nil {
		t.Fatalf("failed to pop: %v", err)
	}
	if len(res) < 2 {
		t.Fatalf("expected queue name + payload, got %v", res)
	}
	var got GameActionRecord
	if err := json.Unmarshal([]byte(res[1]), &got); err != nil {
		t.Fatalf("invalid action record on queue: %v", err)
	}
	if got.GameID != record.GameID || got.ActionType != record.ActionType {
		t.Fatalf("record mismatch: got %+v", got)
	}
}

// TestInviteCodeLifecycle exercises the invite code store end to end.
// Requires a local Redis; skipped otherwise.
func TestInviteCodeLifecycle(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("no local redis available: %v", err)
	}

	prev := Rdb
	Rdb = rdb
	defer func() { Rdb = prev }()

	lobbyID := uuid.New()
	if err := StoreInviteCode(ctx, "TESTC1", lobbyID, time.Minute); err != nil {
		t.Fatalf("failed to store invite code: %v", err)
	}
	got, err := ResolveInviteCode(ctx, "TESTC1")
	if err != nil {
		t.Fatalf("failed to resolve invite code: %v", err)
	}
	if got != lobbyID {
		t.Fatalf("resolved wrong lobby: expected %v got %v", lobbyID, got)
	}

	DeleteInviteCode(ctx, "TESTC1")
	if _, err := ResolveInviteCode(ctx, "TESTC1"); err == nil {
		t.Fatalf("deleted code should not resolve")
	}
}
