package auction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
)

var (
	t0      = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	starts  = t0.Add(time.Hour)
	ends    = t0.Add(3 * time.Hour)
	curator = domain.Actor{ID: "marie.curie", Role: "curator"}
)

func scheduled() domain.AuctionEvent {
	return domain.AuctionEvent{
		ID:             "a-1",
		Name:           "Spring auction",
		Status:         domain.AuctionScheduled,
		StartsAt:       starts,
		EndsAt:         ends,
		EntryCostMC:    10,
		WinProbability: 0.25,
	}
}

func TestEngine_Schedule(t *testing.T) {
	e := NewEngine(identity.MustDefault())
	req := ScheduleRequest{
		ID: "a-1", Name: "Spring auction", StartsAt: starts, EndsAt: ends,
		EntryCostMC: 10, WinProbability: 0.25, Actor: curator,
	}

	c, err := e.Schedule(req, t0)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionScheduled, c.Event.Status)
	assert.Equal(t, "marie.curie", c.Event.CreatedBy)
	assert.Equal(t, domain.AuditAuctionScheduled, c.Audit.EventType)

	tests := []struct {
		name   string
		mutate func(r *ScheduleRequest)
		reason domain.ReasonCode
	}{
		{"inverted window", func(r *ScheduleRequest) { r.EndsAt = r.StartsAt }, domain.ReasonInvalidWindow},
		{"window already started", func(r *ScheduleRequest) { r.StartsAt = t0.Add(-time.Minute) }, domain.ReasonInvalidWindow},
		{"zero entry cost", func(r *ScheduleRequest) { r.EntryCostMC = 0 }, domain.ReasonInvalidAmount},
		{"probability above one", func(r *ScheduleRequest) { r.WinProbability = 1.5 }, domain.ReasonInvalidRequest},
		{"blank name", func(r *ScheduleRequest) { r.Name = " " }, domain.ReasonInvalidRequest},
		{"system actor", func(r *ScheduleRequest) { r.Actor = domain.Actor{ID: "SYSTEM"} }, domain.ReasonForbiddenActor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := req
			tt.mutate(&r)
			_, err := e.Schedule(r, t0)
			assert.Equal(t, tt.reason, domain.ReasonOf(err))
		})
	}
}

func TestEngine_StateMachine(t *testing.T) {
	e := NewEngine(identity.MustDefault())

	_, err := e.Close(scheduled(), curator, ends)
	assert.Equal(t, domain.ReasonInvalidState, domain.ReasonOf(err))

	_, err = e.Open(scheduled(), curator, starts)
	assert.Equal(t, domain.ReasonInvalidWindow, domain.ReasonOf(err), "opening at window start is too late")

	opened, err := e.Open(scheduled(), curator, t0)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionActive, opened.Event.Status)
	assert.Equal(t, "Scheduled", opened.Audit.Payload["from"])

	_, err = e.Open(opened.Event, curator, t0)
	assert.Equal(t, domain.ReasonInvalidState, domain.ReasonOf(err))

	_, err = e.Close(opened.Event, curator, ends.Add(-time.Second))
	assert.Equal(t, domain.ReasonInvalidWindow, domain.ReasonOf(err))

	closed, err := e.Close(opened.Event, curator, ends)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionCompleted, closed.Event.Status)
	assert.Equal(t, domain.AuditAuctionClosed, closed.Audit.EventType)

	_, err = e.Cancel(closed.Event, curator, ends, "late")
	assert.True(t, errors.Is(err, domain.ErrTerminalState))
}

func TestEngine_Cancel(t *testing.T) {
	e := NewEngine(identity.MustDefault())

	for _, status := range []domain.AuctionStatus{domain.AuctionScheduled, domain.AuctionActive} {
		ev := scheduled()
		ev.Status = status

		c, err := e.Cancel(ev, curator, t0, "venue closed")
		require.NoError(t, err)
		assert.Equal(t, domain.AuctionCancelled, c.Event.Status)
		assert.Equal(t, "venue closed", c.Audit.Payload["reason"])
	}

	_, err := e.Cancel(scheduled(), domain.Actor{ID: "auction-bot"}, t0, "")
	assert.True(t, errors.Is(err, domain.ErrForbiddenActor))
}
