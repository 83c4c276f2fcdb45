package lobby

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/losieee/MonsterRat/internal/config"
)

func TestReaperCollectsStaleReservations(t *testing.T) {
	s, _ := newTestStore(t)

	// Reservations made in the past relative to the reap clock.
	past := time.Now().Add(-time.Minute)
	s.now = func() time.Time { return past }
	_, err := s.CreateRoom("ghost")
	require.NoError(t, err)
	s.now = time.Now

	cfg := config.LobbyConfig{ReapInterval: 5 * time.Millisecond, ProvisionalTTL: 45 * time.Second}
	reaper := NewReaper(s, cfg, zap.NewNop())

	go func() { _ = reaper.Start() }()
	defer reaper.Stop()

	require.Eventually(t, func() bool {
		return !s.HasClient("ghost") && s.RoomCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestReaperStopIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	cfg := config.LobbyConfig{ReapInterval: time.Hour, ProvisionalTTL: time.Hour}
	reaper := NewReaper(s, cfg, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- reaper.Start() }()

	reaper.Stop()
	reaper.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
