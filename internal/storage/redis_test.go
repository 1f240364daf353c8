package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silentwatch/case-engine/pkg/chat"
	"github.com/silentwatch/case-engine/pkg/progress"
	"github.com/silentwatch/case-engine/pkg/script"
)

func setupTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rs := NewRedisStorage(mr.Addr(), logger)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, mr
}

func TestRedisProgressRoundTrip(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := progress.New("u1", "blackwood-manor-mystery", now)
	doc.DiaryUnlocked = true
	doc.SetCooldown("rohan", now.Add(10*time.Minute))
	doc.AppendTranscript("rohan", chat.Message{Sender: chat.SenderUser, Text: "Talk."})

	require.NoError(t, rs.SaveProgress(ctx, doc))

	loaded, err := rs.LoadProgress(ctx, "u1", "blackwood-manor-mystery")
	require.NoError(t, err)
	assert.True(t, loaded.DiaryUnlocked)
	assert.NotNil(t, loaded.LastUpdated, "save stamps lastUpdated")

	until, ok := loaded.CooldownFor("rohan")
	require.True(t, ok)
	assert.True(t, until.Equal(now.Add(10*time.Minute)))
	require.Len(t, loaded.Transcript("rohan"), 1)
}

func TestRedisProgressNotFound(t *testing.T) {
	rs, _ := setupTestRedis(t)

	_, err := rs.LoadProgress(context.Background(), "u1", "blackwood-manor-mystery")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisProgressKeyIsolation(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, rs.SaveProgress(ctx, progress.New("u1", "blackwood-manor-mystery", now)))
	require.NoError(t, rs.SaveProgress(ctx, progress.New("u2", "blackwood-manor-mystery", now)))

	assert.True(t, mr.Exists("caseprogress:u1:blackwood-manor-mystery"))
	assert.True(t, mr.Exists("caseprogress:u2:blackwood-manor-mystery"))

	_, err := rs.LoadProgress(ctx, "u3", "blackwood-manor-mystery")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisScenarioRoundTrip(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	doc := script.NewProgress("u1")
	doc.ShiftStarted = true
	doc.SOSBeaconShown = true
	require.NoError(t, rs.SaveScenario(ctx, doc))

	loaded, err := rs.LoadScenario(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, loaded.SOSBeaconShown)

	stage, _ := script.DeriveStage(loaded)
	assert.Equal(t, script.StageSOSReceived, stage)
}

func TestRedisProfileRoundTrip(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rs.SaveProfile(ctx, &progress.Profile{
		UserID:     "u1",
		Name:       "Maya Varma",
		CouponCode: "AB12C",
	}))

	p, err := rs.LoadProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "AB12C", p.CouponCode)
}

func TestRedisAPIKeysMissingIsEmpty(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	keys, err := rs.GetAPIKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, mr.Set("config:api_keys", `{"gemini":"g-key","openai":"o-key"}`))
	keys, err = rs.GetAPIKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g-key", keys["gemini"])
	assert.Equal(t, "o-key", keys["openai"])
}

func TestRedisPing(t *testing.T) {
	rs, mr := setupTestRedis(t)
	require.NoError(t, rs.Ping(context.Background()))

	mr.Close()
	assert.Error(t, rs.Ping(context.Background()))
}
