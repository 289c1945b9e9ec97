package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
	"github.com/vietanh2810/mc-economy/internal/pkg/random"
)

type fixedAccess domain.EligibilityDecision

func (f fixedAccess) AccessDecision(context.Context, string) (domain.EligibilityDecision, error) {
	return domain.EligibilityDecision(f), nil
}

func newAuctionService(db *memDB, access AccessChecker, factor float64) *AuctionService {
	if access == nil {
		access = newStoreService(db, false)
	}
	s := NewAuctionService(auctionRepo{db}, db, access, db, identity.MustDefault(), random.Fixed(factor), &seqIDs{}, nil)
	s.now = fixedNow
	return s
}

func liveAuction() domain.AuctionEvent {
	return domain.AuctionEvent{
		ID:             "auc-1",
		Name:           "Spring draw",
		Status:         domain.AuctionActive,
		StartsAt:       clock.Add(-time.Hour),
		EndsAt:         clock.Add(time.Hour),
		EntryCostMC:    10,
		WinProbability: 0.25,
		CreatedBy:      "hr.lead",
	}
}

func enter(tokens ...string) ParticipateInput {
	return ParticipateInput{EventID: "auc-1", UserID: "alice", TokenIDs: tokens, Actor: alice}
}

func TestAuctionService_ParticipateSpendsTokensAndRecordsFactor(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		want   domain.ParticipationOutcome
	}{
		{name: "won", factor: 0.1, want: domain.OutcomeWon},
		{name: "lost", factor: 0.9, want: domain.OutcomeLost},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			db.putMC(activeMC("mc-1", "alice", 6), activeMC("mc-2", "alice", 6))
			db.putAuction(liveAuction())
			s := newAuctionService(db, nil, tt.factor)

			rec, err := s.Participate(context.Background(), enter("mc-1", "mc-2"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Outcome)
			assert.Equal(t, int64(12), rec.StakedMC)
			assert.Equal(t, tt.factor, rec.RandomFactor)

			assert.Equal(t, domain.MCSpent, db.mcByID("mc-1").LifecycleState)
			assert.Equal(t, domain.MCSpent, db.mcByID("mc-2").LifecycleState)
			assert.Len(t, db.events(domain.AuditMCSpent), 2)

			entries := db.events(domain.AuditAuctionParticipated)
			require.Len(t, entries, 1)
			assert.Equal(t, formatFactor(tt.factor), entries[0].Payload["random_factor"])
			assert.Equal(t, string(tt.want), entries[0].Payload["outcome"])
		})
	}
}

func TestAuctionService_IneligibleAccessIsDeniedWithoutSpending(t *testing.T) {
	db := newMemDB()
	db.putMC(activeMC("mc-1", "alice", 20))
	db.putAuction(liveAuction())
	s := newAuctionService(db, fixedAccess{Status: domain.Ineligible, Reason: domain.ReasonUserRestricted}, 0.1)

	_, err := s.Participate(context.Background(), enter("mc-1"))
	require.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Equal(t, domain.MCActive, db.mcByID("mc-1").LifecycleState)
	assert.Empty(t, db.events(domain.AuditMCSpent))

	denied := db.events(domain.AuditParticipationDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, string(domain.ReasonAccessDenied), denied[0].Payload["reason"])
	assert.Equal(t, "0.1", denied[0].Payload["random_factor"])
}

func TestAuctionService_ParticipationDenials(t *testing.T) {
	tests := []struct {
		name  string
		setup func(db *memDB)
		in    ParticipateInput
		want  domain.ReasonCode
	}{
		{
			name: "unknown auction",
			in:   ParticipateInput{EventID: "nope", UserID: "alice", TokenIDs: []string{"mc-1"}, Actor: alice},
			want: domain.ReasonAuctionNotFound,
		},
		{
			name: "not started",
			setup: func(db *memDB) {
				ev := liveAuction()
				ev.Status = domain.AuctionScheduled
				db.putAuction(ev)
			},
			in:   enter("mc-1"),
			want: domain.ReasonAuctionNotStarted,
		},
		{
			name: "closed",
			setup: func(db *memDB) {
				ev := liveAuction()
				ev.EndsAt = clock
				db.putAuction(ev)
			},
			in:   enter("mc-1"),
			want: domain.ReasonAuctionClosed,
		},
		{
			name: "already entered",
			setup: func(db *memDB) {
				db.putParticipation(domain.ParticipationRecord{ID: "p-1", EventID: "auc-1", UserID: "alice"})
			},
			in:   enter("mc-1"),
			want: domain.ReasonAlreadyParticipated,
		},
		{
			name: "stake below cost",
			setup: func(db *memDB) {
				db.putMC(activeMC("mc-1", "alice", 4))
			},
			in:   enter("mc-1"),
			want: domain.ReasonInsufficientFunds,
		},
		{
			name: "forbidden actor",
			in:   ParticipateInput{EventID: "auc-1", UserID: "alice", TokenIDs: []string{"mc-1"}, Actor: domain.Actor{ID: "auto-entrant"}},
			want: domain.ReasonForbiddenActor,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			db.putMC(activeMC("mc-1", "alice", 20))
			db.putAuction(liveAuction())
			if tt.setup != nil {
				tt.setup(db)
			}
			s := newAuctionService(db, nil, 0.5)

			_, err := s.Participate(context.Background(), tt.in)
			assert.Equal(t, tt.want, domain.ReasonOf(err))
			assert.Equal(t, domain.MCActive, db.mcByID("mc-1").LifecycleState)
			assert.Len(t, db.events(domain.AuditParticipationDenied), 1)
		})
	}
}

func TestAuctionService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	s := newAuctionService(db, nil, 0.5)

	ev, err := s.Schedule(ctx, ScheduleInput{
		Name:           "Summer draw",
		StartsAt:       clock.Add(time.Hour),
		EndsAt:         clock.Add(2 * time.Hour),
		EntryCostMC:    5,
		WinProbability: 0.3,
		Actor:          hr,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionScheduled, ev.Status)

	_, err = s.Close(ctx, ev.ID, hr)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	ev, err = s.Open(ctx, ev.ID, hr)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionActive, ev.Status)

	s.now = func() time.Time { return clock.Add(3 * time.Hour) }
	ev, err = s.Close(ctx, ev.ID, hr)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionCompleted, ev.Status)

	_, err = s.Cancel(ctx, ev.ID, hr, "too late")
	require.ErrorIs(t, err, domain.ErrTerminalState)

	_, err = s.Open(ctx, "missing", hr)
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)

	assert.Len(t, db.events(domain.AuditAuctionScheduled, domain.AuditAuctionOpened, domain.AuditAuctionClosed), 3)
	assert.Len(t, db.events(domain.AuditAuctionDenied), 3)
}

func TestAuctionService_CancelScheduled(t *testing.T) {
	db := newMemDB()
	ev := liveAuction()
	ev.Status = domain.AuctionScheduled
	ev.StartsAt = clock.Add(time.Hour)
	ev.EndsAt = clock.Add(2 * time.Hour)
	db.putAuction(ev)
	s := newAuctionService(db, nil, 0.5)

	got, err := s.Cancel(context.Background(), ev.ID, hr, "venue closed")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionCancelled, got.Status)

	cancelled := db.events(domain.AuditAuctionCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "venue closed", cancelled[0].Payload["reason"])
}
