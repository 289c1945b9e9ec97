package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vietanh2810/mc-economy/internal/domain"
)

func newIntegrationService(t *testing.T, db *memDB) *IntegrationService {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	s := NewIntegrationService([]Consumer{
		{Name: "payroll", KeyHash: string(hash), Scopes: []string{ScopeMCRead, ScopeGMCRead}},
		{Name: "auditor", KeyHash: string(hash), Scopes: []string{ScopeAuditRead, ScopeAuditStream}},
	}, db, db, gmcRepo{db}, db, time.Minute, nil)
	s.now = fixedNow
	return s
}

func TestIntegrationService_ScopedReadsAreAudited(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	db.putMC(activeMC("mc-1", "alice", 10))
	s := newIntegrationService(t, db)

	sum, err := s.MCSummary(ctx, Credentials{Name: "payroll", Key: "s3cret"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.UsableBalance)

	gmcs, err := s.ListGMC(ctx, Credentials{Name: "payroll", Key: "s3cret"}, "alice")
	require.NoError(t, err)
	assert.Empty(t, gmcs)

	_, err = s.ListAudit(ctx, Credentials{Name: "payroll", Key: "s3cret"}, domain.AuditFilter{})
	require.ErrorIs(t, err, domain.ErrScopeDenied)

	_, err = s.MCSummary(ctx, Credentials{Name: "payroll", Key: "wrong"}, "alice")
	require.ErrorIs(t, err, domain.ErrUnknownConsumer)

	_, err = s.MCSummary(ctx, Credentials{Name: "stranger", Key: "s3cret"}, "alice")
	require.ErrorIs(t, err, domain.ErrUnknownConsumer)

	reads := db.events(domain.AuditIntegrationRead)
	require.Len(t, reads, 2)
	assert.Equal(t, "payroll", reads[0].ActorID)
	assert.Equal(t, ScopeMCRead, reads[0].Payload["scope"])
	assert.Len(t, db.events(domain.AuditIntegrationDenied), 3)
}

func TestIntegrationService_AuditFeed(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	require.NoError(t, db.Append(ctx,
		domain.NewAuditEvent(domain.AuditMCGranted, hr, "mc-1", clock, nil),
		domain.NewAuditEvent(domain.AuditMCFrozen, hr, "mc-1", clock, nil),
	))
	s := newIntegrationService(t, db)
	cred := Credentials{Name: "auditor", Key: "s3cret"}

	events, err := s.ListAudit(ctx, cred, domain.AuditFilter{EventType: domain.AuditMCFrozen})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].Seq)

	require.NoError(t, s.OpenStream(ctx, cred))

	tail, cur, err := s.Tail(ctx, "auditor", StreamCursor{AfterSeq: 2}, 0)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, domain.AuditIntegrationRead, tail[0].EventType)
	assert.Equal(t, ScopeAuditStream, tail[1].Payload["scope"])
	assert.Equal(t, int64(4), cur.AfterSeq)

	batches := db.events(domain.AuditIntegrationStreamed)
	require.Len(t, batches, 1)
	assert.Equal(t, "auditor", batches[0].ActorID)
	assert.Equal(t, int64(3), batches[0].Payload["from_seq"])
	assert.Equal(t, int64(4), batches[0].Payload["to_seq"])
	assert.Equal(t, 2, batches[0].Payload["count"])

	// The batch record is the only new entry: it moves the cursor but is
	// neither delivered nor audited again.
	tail, cur, err = s.Tail(ctx, "auditor", cur, 0)
	require.NoError(t, err)
	assert.Empty(t, tail)
	assert.Equal(t, int64(5), cur.AfterSeq)
	assert.Len(t, db.events(domain.AuditIntegrationStreamed), 1)
}

// holeyLedger serves entries whose seqs need not be contiguous.
type holeyLedger struct {
	events []domain.AuditEvent
}

func (l *holeyLedger) add(seq int64, at time.Time) {
	l.events = append(l.events, domain.AuditEvent{
		EventID:    fmt.Sprintf("evt-%d", seq),
		EventType:  domain.AuditMCGranted,
		ActorID:    "hr.lead",
		OccurredAt: at,
		Seq:        seq,
	})
	sort.Slice(l.events, func(i, j int) bool { return l.events[i].Seq < l.events[j].Seq })
}

func (l *holeyLedger) List(_ context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for _, e := range l.events {
		if e.Seq <= f.AfterSeq {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func seqs(events []domain.AuditEvent) []int64 {
	out := make([]int64, len(events))
	for i, e := range events {
		out[i] = e.Seq
	}
	return out
}

func TestIntegrationService_TailWaitsForLateCommit(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	ledger := &holeyLedger{}
	ledger.add(1, clock)
	ledger.add(2, clock)
	ledger.add(4, clock) // 3 belongs to a transaction still in flight

	s := NewIntegrationService(nil, ledger, db, gmcRepo{db}, db, time.Minute, nil)
	s.now = fixedNow

	got, cur, err := s.Tail(ctx, "auditor", StreamCursor{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, seqs(got))
	assert.Equal(t, int64(2), cur.AfterSeq)

	s.now = func() time.Time { return clock.Add(10 * time.Second) }
	got, cur, err = s.Tail(ctx, "auditor", cur, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int64(2), cur.AfterSeq)

	ledger.add(3, clock)
	got, cur, err = s.Tail(ctx, "auditor", cur, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, seqs(got))
	assert.Equal(t, int64(4), cur.AfterSeq)
}

func TestIntegrationService_TailSkipsHoleAfterGrace(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	ledger := &holeyLedger{}
	ledger.add(1, clock)
	ledger.add(3, clock)

	s := NewIntegrationService(nil, ledger, db, gmcRepo{db}, db, time.Minute, nil)
	s.now = fixedNow

	got, cur, err := s.Tail(ctx, "auditor", StreamCursor{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, seqs(got))

	s.now = func() time.Time { return clock.Add(59 * time.Second) }
	got, cur, err = s.Tail(ctx, "auditor", cur, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	s.now = func() time.Time { return clock.Add(time.Minute) }
	got, cur, err = s.Tail(ctx, "auditor", cur, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, seqs(got))
	assert.Equal(t, int64(3), cur.AfterSeq)
}

func TestIntegrationService_TailDoesNotWaitOnOldHoles(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	ledger := &holeyLedger{}
	ledger.add(1, clock.Add(-time.Hour))
	ledger.add(3, clock.Add(-time.Hour))
	ledger.add(4, clock)
	ledger.add(6, clock)

	s := NewIntegrationService(nil, ledger, db, gmcRepo{db}, db, time.Minute, nil)
	s.now = fixedNow

	got, cur, err := s.Tail(ctx, "auditor", StreamCursor{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, seqs(got))
	assert.Equal(t, int64(4), cur.AfterSeq)
}
