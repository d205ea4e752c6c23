package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/afridiag/fieldsync/internal/core/domain"
	"github.com/afridiag/fieldsync/internal/storage/memory"
)

func TestEnqueueAssignsIdentityAndPersists(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	q := New(store)

	m, err := q.Enqueue(ctx, domain.DomainPatient, map[string]any{"unique_id": "P-001", "first_name": "Amina"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if m.LocalID == "" {
		t.Error("LocalID not generated")
	}
	if m.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
	if m.AttemptCount != 0 {
		t.Errorf("AttemptCount = %d, want 0", m.AttemptCount)
	}

	// Survives a fresh Queue over the same store.
	pending, err := New(store).List(ctx, domain.DomainPatient)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].LocalID != m.LocalID {
		t.Errorf("persisted LocalID = %s, want %s", pending[0].LocalID, m.LocalID)
	}
	if pending[0].Payload["unique_id"] != "P-001" {
		t.Errorf("payload round trip lost unique_id: %v", pending[0].Payload)
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	q := New(memory.NewStore())

	m1, _ := q.Enqueue(ctx, domain.DomainTreatment, map[string]any{"diagnosis_id": "d1"})
	m2, _ := q.Enqueue(ctx, domain.DomainTreatment, map[string]any{"diagnosis_id": "d2"})
	m3, _ := q.Enqueue(ctx, domain.DomainTreatment, map[string]any{"diagnosis_id": "d3"})

	pending, err := q.List(ctx, domain.DomainTreatment)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{m1.LocalID, m2.LocalID, m3.LocalID}
	if len(pending) != len(want) {
		t.Fatalf("pending = %d, want %d", len(pending), len(want))
	}
	for i, id := range want {
		if pending[i].LocalID != id {
			t.Errorf("pending[%d] = %s, want %s", i, pending[i].LocalID, id)
		}
	}
}

func TestEnqueuePersistenceFailureIsNotQueued(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	q := New(store)

	store.FailPuts = errors.New("disk full")
	if _, err := q.Enqueue(ctx, domain.DomainDiagnosis, map[string]any{"patient_id": "p1"}); err == nil {
		t.Fatal("Enqueue should propagate persistence failure")
	}

	store.FailPuts = nil
	pending, err := q.List(ctx, domain.DomainDiagnosis)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0 after failed enqueue", len(pending))
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	q := New(memory.NewStore())

	m1, _ := q.Enqueue(ctx, domain.DomainReview, map[string]any{"diagnosis_id": "d1"})
	m2, _ := q.Enqueue(ctx, domain.DomainReview, map[string]any{"diagnosis_id": "d2"})

	if err := q.Remove(ctx, domain.DomainReview, m1.LocalID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	pending, _ := q.List(ctx, domain.DomainReview)
	if len(pending) != 1 || pending[0].LocalID != m2.LocalID {
		t.Errorf("pending after remove = %+v", pending)
	}

	// Absent id is a no-op.
	if err := q.Remove(ctx, domain.DomainReview, "missing"); err != nil {
		t.Errorf("Remove absent id: %v", err)
	}
}

func TestReplaceAllUpdatesRetainedEntries(t *testing.T) {
	ctx := context.Background()
	q := New(memory.NewStore())

	m1, _ := q.Enqueue(ctx, domain.DomainFollowUp, map[string]any{"patient_id": "p1"})
	m2, _ := q.Enqueue(ctx, domain.DomainFollowUp, map[string]any{"patient_id": "p2"})

	// Simulate a pass that synced m1 and failed m2.
	if err := q.Remove(ctx, domain.DomainFollowUp, m1.LocalID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	m2.AttemptCount = 1
	if err := q.ReplaceAll(ctx, domain.DomainFollowUp, []domain.Mutation{*m2}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	pending, _ := q.List(ctx, domain.DomainFollowUp)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].LocalID != m2.LocalID || pending[0].AttemptCount != 1 {
		t.Errorf("retained entry = %+v", pending[0])
	}
}

func TestReplaceAllPreservesMidPassEnqueues(t *testing.T) {
	ctx := context.Background()
	q := New(memory.NewStore())

	m1, _ := q.Enqueue(ctx, domain.DomainPatient, map[string]any{"unique_id": "P-1"})

	// A new mutation arrives while the pass is dispatching.
	late, _ := q.Enqueue(ctx, domain.DomainPatient, map[string]any{"unique_id": "P-2"})

	m1.AttemptCount = 2
	if err := q.ReplaceAll(ctx, domain.DomainPatient, []domain.Mutation{*m1}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	pending, _ := q.List(ctx, domain.DomainPatient)
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2 (late enqueue preserved)", len(pending))
	}
	if pending[0].AttemptCount != 2 {
		t.Errorf("attempt count not written back: %+v", pending[0])
	}
	if pending[1].LocalID != late.LocalID {
		t.Errorf("late enqueue lost: %+v", pending)
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	q := New(memory.NewStore())

	q.Enqueue(ctx, domain.DomainPatient, map[string]any{"unique_id": "P-1"})
	q.Enqueue(ctx, domain.DomainPatient, map[string]any{"unique_id": "P-2"})
	q.Enqueue(ctx, domain.DomainDiagnosis, map[string]any{"patient_id": "p1"})

	counts, err := q.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts[domain.DomainPatient] != 2 {
		t.Errorf("patients = %d, want 2", counts[domain.DomainPatient])
	}
	if counts[domain.DomainDiagnosis] != 1 {
		t.Errorf("diagnoses = %d, want 1", counts[domain.DomainDiagnosis])
	}
	if counts[domain.DomainReview] != 0 {
		t.Errorf("reviews = %d, want 0", counts[domain.DomainReview])
	}
}

func TestUnknownDomainRejected(t *testing.T) {
	ctx := context.Background()
	q := New(memory.NewStore())

	if _, err := q.Enqueue(ctx, domain.Domain("ledgers"), map[string]any{}); err == nil {
		t.Error("Enqueue accepted unknown domain")
	}
	if _, err := q.List(ctx, domain.Domain("ledgers")); err == nil {
		t.Error("List accepted unknown domain")
	}
}
