package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/domain/receipt"
)

// StoreFactory builds an empty store driven by clock
type StoreFactory func(t *testing.T, clock *Clock) port.ApplicationStore

// RunStoreContract exercises the behaviour every ApplicationStore must share
func RunStoreContract(t *testing.T, newStore StoreFactory) {
	start := time.Date(2025, 5, 28, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("create assigns identity and pending status", func(t *testing.T) {
		store := newStore(t, NewClock(start))

		for _, sub := range AllSubmissions() {
			app, err := store.Create(ctx, sub)
			require.NoError(t, err)

			assert.NotEmpty(t, app.ID)
			assert.Equal(t, sub.Type, app.Type)
			assert.Equal(t, entity.StatusPending, app.Status)
			assert.True(t, app.CreatedAt.Equal(app.UpdatedAt))
			assert.Regexp(t, receipt.Pattern, app.Receipt)
			assert.Empty(t, app.RejectionReason)
		}
	})

	t.Run("create preserves variant payload", func(t *testing.T) {
		store := newStore(t, NewClock(start))

		created, err := store.Create(ctx, GroupVisitSubmission())
		require.NoError(t, err)

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got.GroupVisit)
		assert.Nil(t, got.PortAccess)
		assert.Equal(t, "한국산업기술원", got.GroupVisit.Organization)
		assert.True(t, got.GroupVisit.VisitStartDate.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
		require.Len(t, got.GroupVisit.Visitors, 2)
		assert.Equal(t, "김철수", got.GroupVisit.Visitors[1].Name)
		assert.Equal(t, "연구원", got.GroupVisit.Visitors[1].Position)
		require.Len(t, got.Files, 1)
		assert.Equal(t, "uploads/visitors.pdf", got.Files[0].FileKey)
		assert.Equal(t, "12가3456", got.VehicleNumber)

		goods, err := store.Create(ctx, GoodsSubmission())
		require.NoError(t, err)
		got, err = store.GetByReceipt(ctx, goods.Receipt)
		require.NoError(t, err)
		require.NotNil(t, got.GoodsInOut)
		assert.Equal(t, entity.InOutIn, got.GoodsInOut.InOutType)
		require.Len(t, got.GoodsInOut.Items, 2)
		assert.Equal(t, 10, got.GoodsInOut.Items[1].Quantity)
		assert.Equal(t, "예비품", got.GoodsInOut.Items[1].Remarks)

		access, err := store.Create(ctx, PortAccessSubmission())
		require.NoError(t, err)
		got, err = store.GetByID(ctx, access.ID)
		require.NoError(t, err)
		require.Len(t, got.PortAccess.Personnel, 2)
		assert.Equal(t, "부산항만공사", got.PortAccess.Personnel[0].Organization)
		assert.True(t, got.PortAccess.AccessEnd.Equal(time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)))

		visit, err := store.Create(ctx, VisitR3Submission())
		require.NoError(t, err)
		got, err = store.GetByID(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, "visitor@example.com", got.VisitR3.ContactEmail)
		assert.True(t, got.VisitR3.VisitDatetime.Equal(time.Date(2025, 5, 28, 14, 0, 0, 0, time.UTC)))
	})

	t.Run("receipts count up per type and day", func(t *testing.T) {
		clock := NewClock(start)
		store := newStore(t, clock)

		first, err := store.Create(ctx, GroupVisitSubmission())
		require.NoError(t, err)
		second, err := store.Create(ctx, GroupVisitSubmission())
		require.NoError(t, err)
		other, err := store.Create(ctx, VisitR3Submission())
		require.NoError(t, err)

		clock.Advance(24 * time.Hour)
		nextDay, err := store.Create(ctx, GroupVisitSubmission())
		require.NoError(t, err)

		assert.Equal(t, "GV-20250528-0001", first.Receipt)
		assert.Equal(t, "GV-20250528-0002", second.Receipt)
		assert.Equal(t, "VR-20250528-0001", other.Receipt)
		assert.Equal(t, "GV-20250529-0001", nextDay.Receipt)
	})

	t.Run("concurrent creates get unique receipts", func(t *testing.T) {
		store := newStore(t, NewClock(start))

		const n = 20
		receipts := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				app, err := store.Create(ctx, PortAccessSubmission())
				if assert.NoError(t, err) {
					receipts <- app.Receipt
				}
			}()
		}
		wg.Wait()
		close(receipts)

		seen := make(map[string]bool)
		for r := range receipts {
			assert.False(t, seen[r], "duplicate receipt %s", r)
			seen[r] = true
		}
		assert.Len(t, seen, n)
	})

	t.Run("lookups are idempotent and return copies", func(t *testing.T) {
		store := newStore(t, NewClock(start))
		created, err := store.Create(ctx, GroupVisitSubmission())
		require.NoError(t, err)

		a, err := store.GetByReceipt(ctx, created.Receipt)
		require.NoError(t, err)
		b, err := store.GetByReceipt(ctx, created.Receipt)
		require.NoError(t, err)
		assert.Equal(t, a, b)

		a.Status = entity.StatusApproved
		a.GroupVisit.Visitors[0].Name = "tampered"
		created.GroupVisit.Organization = "tampered"

		c, err := store.GetByReceipt(ctx, created.Receipt)
		require.NoError(t, err)
		assert.Equal(t, b, c)
	})

	t.Run("missing records", func(t *testing.T) {
		store := newStore(t, NewClock(start))

		_, err := store.GetByReceipt(ctx, "GV-20250528-0001")
		assert.ErrorIs(t, err, entity.ErrNotFound)
		_, err = store.GetByID(ctx, "no-such-id")
		assert.ErrorIs(t, err, entity.ErrNotFound)
		_, err = store.UpdateStatus(ctx, "no-such-id", entity.StatusChange{Status: entity.StatusApproved})
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("get all is newest first", func(t *testing.T) {
		clock := NewClock(start)
		store := newStore(t, clock)

		var ids []string
		for _, sub := range AllSubmissions() {
			app, err := store.Create(ctx, sub)
			require.NoError(t, err)
			ids = append(ids, app.ID)
			clock.Advance(time.Minute)
		}

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i, app := range all {
			assert.Equal(t, ids[len(ids)-1-i], app.ID)
		}
	})

	t.Run("reject requires reason and leaves record unchanged", func(t *testing.T) {
		store := newStore(t, NewClock(start))
		created, err := store.Create(ctx, VisitR3Submission())
		require.NoError(t, err)

		_, err = store.UpdateStatus(ctx, created.ID, entity.StatusChange{Status: entity.StatusRejected, RejectionReason: "  "})
		assert.ErrorIs(t, err, entity.ErrMissingParameter)

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("reject with reason advances updated_at", func(t *testing.T) {
		store := newStore(t, NewClock(start))
		created, err := store.Create(ctx, VisitR3Submission())
		require.NoError(t, err)

		// clock not advanced: updated_at must still move forward
		updated, err := store.UpdateStatus(ctx, created.ID, entity.StatusChange{Status: entity.StatusRejected, RejectionReason: "reason text"})
		require.NoError(t, err)
		assert.Equal(t, entity.StatusRejected, updated.Status)

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusRejected, got.Status)
		assert.Equal(t, "reason text", got.RejectionReason)
		assert.True(t, got.UpdatedAt.After(created.UpdatedAt))
		assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
		assert.Equal(t, created.Receipt, got.Receipt)
		assert.Equal(t, created.Type, got.Type)
	})

	t.Run("non-reject status clears reason", func(t *testing.T) {
		clock := NewClock(start)
		store := newStore(t, clock)
		created, err := store.Create(ctx, GoodsSubmission())
		require.NoError(t, err)

		_, err = store.UpdateStatus(ctx, created.ID, entity.StatusChange{Status: entity.StatusRejected, RejectionReason: "서류 미비"})
		require.NoError(t, err)
		clock.Advance(time.Second)

		got, err := store.UpdateStatus(ctx, created.ID, entity.StatusChange{Status: entity.StatusUnderReview, RejectionReason: "ignored"})
		require.NoError(t, err)
		assert.Equal(t, entity.StatusUnderReview, got.Status)
		assert.Empty(t, got.RejectionReason)
	})

	t.Run("compare and swap on previous status", func(t *testing.T) {
		store := newStore(t, NewClock(start))
		created, err := store.Create(ctx, GroupVisitSubmission())
		require.NoError(t, err)

		_, err = store.UpdateStatus(ctx, created.ID, entity.StatusChange{Status: entity.StatusApproved, From: entity.StatusPending})
		require.NoError(t, err)

		_, err = store.UpdateStatus(ctx, created.ID, entity.StatusChange{Status: entity.StatusRejected, RejectionReason: "late", From: entity.StatusPending})
		assert.ErrorIs(t, err, entity.ErrStatusConflict)

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusApproved, got.Status)
	})

	t.Run("stats totals agree", func(t *testing.T) {
		clock := NewClock(start)
		store := newStore(t, clock)

		for _, sub := range AllSubmissions() {
			_, err := store.Create(ctx, sub)
			require.NoError(t, err)
		}
		extra, err := store.Create(ctx, GroupVisitSubmission())
		require.NoError(t, err)
		_, err = store.UpdateStatus(ctx, extra.ID, entity.StatusChange{Status: entity.StatusApproved})
		require.NoError(t, err)

		stats, err := store.GetStats(ctx)
		require.NoError(t, err)

		assert.Equal(t, 5, stats.TotalApplications)
		statusSum, typeSum := 0, 0
		for _, v := range stats.StatusStats {
			statusSum += v
		}
		for _, v := range stats.TypeStats {
			typeSum += v
		}
		assert.Equal(t, 5, statusSum)
		assert.Equal(t, 5, typeSum)
		assert.Equal(t, 1, stats.StatusStats[entity.StatusApproved])
		assert.Equal(t, 2, stats.TypeStats[entity.TypeGroupVisit])
		require.Len(t, stats.MonthlyStats, 6)
		assert.Equal(t, "2025년 5월", stats.MonthlyStats[5].Month)
		assert.Equal(t, 5, stats.MonthlyStats[5].Count)
		require.NotEmpty(t, stats.OrganizationStats)
		assert.Equal(t, "한국산업기술원", stats.OrganizationStats[0].Organization)
		assert.Equal(t, 2, stats.OrganizationStats[0].Count)
	})
}
