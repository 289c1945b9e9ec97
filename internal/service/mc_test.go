package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
	"github.com/vietanh2810/mc-economy/internal/lifecycle"
)

var hr = domain.Actor{ID: "hr.lead", Role: "admin"}

func newMCService(db *memDB) *MCService {
	s := NewMCService(mcRepo{db}, db, lifecycle.NewEngine(identity.MustDefault()), &seqIDs{}, nil)
	s.now = fixedNow
	return s
}

func TestMCService_Grant(t *testing.T) {
	db := newMemDB()
	s := newMCService(db)
	expires := clock.Add(90 * 24 * time.Hour)

	rec, err := s.Grant(context.Background(), GrantInput{
		OwnerID:    "alice",
		Amount:     40,
		ExpiresAt:  &expires,
		SourceType: domain.SourceManualGrant,
		Actor:      hr,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MCActive, rec.LifecycleState)
	assert.Equal(t, rec, db.mcByID(rec.ID))

	granted := db.events(domain.AuditMCGranted)
	require.Len(t, granted, 1)
	assert.Equal(t, rec.ID, granted[0].SubjectID)
	assert.Equal(t, "hr.lead", granted[0].ActorID)
}

func TestMCService_GrantRejectsTTLOf400Days(t *testing.T) {
	db := newMemDB()
	s := newMCService(db)
	expires := clock.Add(400 * 24 * time.Hour)

	_, err := s.Grant(context.Background(), GrantInput{
		OwnerID:    "alice",
		Amount:     40,
		ExpiresAt:  &expires,
		SourceType: domain.SourceManualGrant,
		Actor:      hr,
	})
	require.ErrorIs(t, err, domain.ErrInvalidTTL)

	mcs, _ := db.ListByOwner(context.Background(), "alice")
	assert.Empty(t, mcs)
	assert.Empty(t, db.events(domain.AuditMCGranted))

	denied := db.events(domain.AuditMCDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, string(domain.ReasonInvalidTTL), denied[0].Payload["reason"])
}

func TestMCService_ForbiddenActorIsRejectedAndRecorded(t *testing.T) {
	db := newMemDB()
	db.putMC(activeMC("mc-1", "alice", 10))
	s := newMCService(db)
	bot := domain.Actor{ID: "reward-bot", Role: "admin"}

	_, err := s.Freeze(context.Background(), "mc-1", bot)
	require.ErrorIs(t, err, domain.ErrForbiddenActor)
	assert.Equal(t, domain.MCActive, db.mcByID("mc-1").LifecycleState)

	denied := db.events(domain.AuditMCDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "reward-bot", denied[0].ActorID)
	assert.Equal(t, "freeze", denied[0].Payload["operation"])
}

func TestMCService_Transitions(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	db.putMC(activeMC("mc-1", "alice", 10))
	s := newMCService(db)

	rec, err := s.Freeze(ctx, "mc-1", hr)
	require.NoError(t, err)
	assert.True(t, rec.IsFrozen)

	_, err = s.Spend(ctx, "mc-1", hr, "store")
	require.Error(t, err)
	assert.NotEmpty(t, domain.ReasonOf(err))

	rec, err = s.Unfreeze(ctx, "mc-1", hr)
	require.NoError(t, err)
	assert.False(t, rec.IsFrozen)

	rec, err = s.Spend(ctx, "mc-1", hr, "store")
	require.NoError(t, err)
	assert.Equal(t, domain.MCSpent, rec.LifecycleState)

	_, err = s.Freeze(ctx, "mc-1", hr)
	require.ErrorIs(t, err, domain.ErrTerminalState)

	assert.Len(t, db.events(domain.AuditMCFrozen, domain.AuditMCUnfrozen, domain.AuditMCSpent), 3)
	assert.Len(t, db.events(domain.AuditMCDenied), 2)
}

func TestMCService_UnknownToken(t *testing.T) {
	db := newMemDB()
	s := newMCService(db)

	_, err := s.Expire(context.Background(), "missing", hr)
	require.ErrorIs(t, err, domain.ErrMCNotFound)
}

func TestMCService_Summary(t *testing.T) {
	db := newMemDB()
	frozen := activeMC("mc-2", "alice", 5)
	frozen.LifecycleState = domain.MCFrozen
	frozen.IsFrozen = true
	db.putMC(activeMC("mc-1", "alice", 10), frozen, activeMC("mc-3", "bob", 7))
	s := newMCService(db)

	sum, err := s.Summary(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.UsableBalance)
	assert.Equal(t, int64(5), sum.FrozenBalance)
	assert.Equal(t, 1, sum.ActiveCount)
	assert.Equal(t, 1, sum.FrozenCount)
}
