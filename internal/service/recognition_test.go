package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
	"github.com/vietanh2810/mc-economy/internal/pkg/random"
	"github.com/vietanh2810/mc-economy/internal/recognition"
	"github.com/vietanh2810/mc-economy/internal/repository"
)

func newRecognitionService(db *memDB, factor float64) *RecognitionService {
	s := NewRecognitionService(gmcRepo{db}, auctionRepo{db}, db, identity.MustDefault(),
		recognition.DefaultPolicy(), random.Fixed(factor), &seqIDs{}, nil)
	s.now = fixedNow
	return s
}

func closedAuctionWithEntry(db *memDB) {
	ev := liveAuction()
	ev.Status = domain.AuctionCompleted
	db.putAuction(ev)
	db.putParticipation(domain.ParticipationRecord{
		ID:       "p-1",
		EventID:  ev.ID,
		UserID:   "alice",
		Outcome:  domain.OutcomeLost,
		StakedMC: 10,
	})
}

func TestRecognitionService_EligibleIsFlaggedForReview(t *testing.T) {
	db := newMemDB()
	closedAuctionWithEntry(db)
	s := newRecognitionService(db, 0.05)

	sig, err := s.EvaluateBridge(context.Background(), "auc-1", "alice", hr)
	require.NoError(t, err)
	assert.Equal(t, domain.RecognitionEligible, sig.Status)

	evaluated := db.events(domain.AuditRecognitionEvaluated)
	require.Len(t, evaluated, 1)
	assert.Equal(t, "0.05", evaluated[0].Payload["random_factor"])

	flagged := db.events(domain.AuditRecognitionFlagged)
	require.Len(t, flagged, 1)
	assert.Equal(t, "alice", flagged[0].SubjectID)

	gmcs, _ := gmcRepo{db}.ListByOwner(context.Background(), "alice")
	assert.Empty(t, gmcs)
}

// factorSequence hands out factors in order and repeats the last one.
type factorSequence struct {
	mu      sync.Mutex
	factors []float64
	drawn   int
}

func (f *factorSequence) Float64() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.drawn
	if i >= len(f.factors) {
		i = len(f.factors) - 1
	}
	f.drawn++
	return f.factors[i], nil
}

func TestRecognitionService_SignalIsSettledOnce(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	closedAuctionWithEntry(db)
	factors := &factorSequence{factors: []float64{0.9, 0.7, 0.05}}
	s := NewRecognitionService(gmcRepo{db}, auctionRepo{db}, db, identity.MustDefault(),
		recognition.DefaultPolicy(), factors, &seqIDs{}, nil)
	s.now = fixedNow

	first, err := s.EvaluateBridge(ctx, "auc-1", "alice", hr)
	require.NoError(t, err)
	assert.Equal(t, domain.RecognitionNotEligible, first.Status)
	assert.False(t, first.Replayed)

	for i := 0; i < 2; i++ {
		again, err := s.EvaluateBridge(ctx, "auc-1", "alice", hr)
		require.NoError(t, err)
		assert.Equal(t, domain.RecognitionNotEligible, again.Status)
		assert.Equal(t, 0.9, again.RandomFactor)
		assert.True(t, again.Replayed)
	}

	assert.Equal(t, 1, factors.drawn)
	assert.Len(t, db.events(domain.AuditRecognitionEvaluated), 1)
	assert.Empty(t, db.events(domain.AuditRecognitionFlagged))
}

func TestRecognitionService_DeniedSignalIsNotSettled(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	db.putAuction(liveAuction())
	db.putParticipation(domain.ParticipationRecord{EventID: "auc-1", UserID: "alice", Outcome: domain.OutcomeLost, StakedMC: 10})
	s := newRecognitionService(db, 0.05)

	sig, err := s.EvaluateBridge(ctx, "auc-1", "alice", hr)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonAuctionNotClosed, sig.Reason)

	closedAuctionWithEntry(db)
	sig, err = s.EvaluateBridge(ctx, "auc-1", "alice", hr)
	require.NoError(t, err)
	assert.Equal(t, domain.RecognitionEligible, sig.Status)
	assert.False(t, sig.Replayed)
	assert.Len(t, db.events(domain.AuditRecognitionFlagged), 1)
}

// lateRecognitionRepo misses the settled signal on the first lookup, as if a
// concurrent call committed between the lookup and the insert.
type lateRecognitionRepo struct {
	auctionRepo
	lookups int
}

func (r *lateRecognitionRepo) FindRecognition(ctx context.Context, eventID, userID string) (domain.RecognitionEvaluation, error) {
	r.lookups++
	if r.lookups == 1 {
		return domain.RecognitionEvaluation{}, repository.ErrRecognitionNotFound
	}
	return r.auctionRepo.FindRecognition(ctx, eventID, userID)
}

func TestRecognitionService_CollisionReturnsSettledSignal(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	closedAuctionWithEntry(db)
	db.locked(func(st *memState) {
		st.recognitions["auc-1|alice"] = domain.RecognitionEvaluation{
			ID: "r-0",
			Signal: domain.RecognitionSignal{
				EventID:      "auc-1",
				UserID:       "alice",
				Status:       domain.RecognitionNotEligible,
				Reason:       domain.ReasonNotSelected,
				RandomFactor: 0.8,
				Threshold:    0.1,
			},
			EvaluatedBy: "hr.lead",
			EvaluatedAt: clock,
		}
	})
	repo := &lateRecognitionRepo{auctionRepo: auctionRepo{db}}
	s := NewRecognitionService(gmcRepo{db}, repo, db, identity.MustDefault(),
		recognition.DefaultPolicy(), random.Fixed(0.05), &seqIDs{}, nil)
	s.now = fixedNow

	sig, err := s.EvaluateBridge(ctx, "auc-1", "alice", hr)
	require.NoError(t, err)
	assert.Equal(t, domain.RecognitionNotEligible, sig.Status)
	assert.Equal(t, 0.8, sig.RandomFactor)
	assert.True(t, sig.Replayed)
	assert.Equal(t, 2, repo.lookups)
	assert.Empty(t, db.events(domain.AuditRecognitionFlagged))
	assert.Empty(t, db.events(domain.AuditRecognitionEvaluated))
}

func TestRecognitionService_BridgeOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(db *memDB)
		eventID string
		factor  float64
		status  domain.RecognitionStatus
		reason  domain.ReasonCode
		audited domain.AuditEventType
	}{
		{
			name:    "not selected",
			setup:   closedAuctionWithEntry,
			eventID: "auc-1",
			factor:  0.5,
			status:  domain.RecognitionNotEligible,
			reason:  domain.ReasonNotSelected,
			audited: domain.AuditRecognitionEvaluated,
		},
		{
			name:    "unknown auction",
			eventID: "ghost",
			factor:  0.05,
			status:  domain.RecognitionDenied,
			reason:  domain.ReasonMissingSnapshot,
			audited: domain.AuditRecognitionDenied,
		},
		{
			name: "auction still active",
			setup: func(db *memDB) {
				db.putAuction(liveAuction())
				db.putParticipation(domain.ParticipationRecord{EventID: "auc-1", UserID: "alice", Outcome: domain.OutcomeWon, StakedMC: 10})
			},
			eventID: "auc-1",
			factor:  0.05,
			status:  domain.RecognitionDenied,
			reason:  domain.ReasonAuctionNotClosed,
			audited: domain.AuditRecognitionDenied,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			if tt.setup != nil {
				tt.setup(db)
			}
			s := newRecognitionService(db, tt.factor)

			sig, err := s.EvaluateBridge(context.Background(), tt.eventID, "alice", hr)
			require.NoError(t, err)
			assert.Equal(t, tt.status, sig.Status)
			assert.Equal(t, tt.reason, sig.Reason)

			recorded := db.events(tt.audited)
			require.Len(t, recorded, 1)
			assert.Equal(t, string(tt.reason), recorded[0].Payload["reason"])
			assert.Empty(t, db.events(domain.AuditRecognitionFlagged))
		})
	}
}

func TestRecognitionService_Recognize(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	s := newRecognitionService(db, 0.5)
	justification := strings.Repeat("Led the onboarding of three new teams. ", 2)

	rec, err := s.Recognize(ctx, RecognizeInput{
		UserID:        "alice",
		Amount:        1,
		Category:      domain.GMCMentorship,
		Justification: justification,
		RecognizedBy:  hr,
	})
	require.NoError(t, err)
	assert.Equal(t, "hr.lead", rec.RecognizedBy)

	list, err := s.ListGMC(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.GMCRecord{rec}, list)
	assert.Len(t, db.events(domain.AuditGMCRecognized), 1)

	_, err = s.Recognize(ctx, RecognizeInput{
		UserID:        "alice",
		Amount:        1,
		Category:      domain.GMCMentorship,
		Justification: "great job",
		RecognizedBy:  hr,
	})
	require.Equal(t, domain.ReasonJustificationTooShort, domain.ReasonOf(err))

	_, err = s.Recognize(ctx, RecognizeInput{
		UserID:        "alice",
		Amount:        1,
		Category:      domain.GMCMentorship,
		Justification: justification,
		RecognizedBy:  domain.Actor{ID: "AI-assistant"},
	})
	require.ErrorIs(t, err, domain.ErrForbiddenActor)

	assert.Len(t, db.events(domain.AuditGMCDenied), 2)
	list, _ = s.ListGMC(ctx, "alice")
	assert.Len(t, list, 1)
}
