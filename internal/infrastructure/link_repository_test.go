package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linktrack/internal/domain"
)

func TestRepositoryStoreAndFind(t *testing.T) {
	repo := NewLinkRepository(testLogger())
	link := activeLink("trk_storeandfind01")

	require.NoError(t, repo.Store(context.Background(), link))

	got, err := repo.Find(context.Background(), link.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, link.TrackingID, got.TrackingID)
	assert.Equal(t, "spring-sale", got.CampaignName)

	_, err = repo.Find(context.Background(), "trk_missing")
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestRepositoryStoreRejectsDuplicates(t *testing.T) {
	repo := NewLinkRepository(testLogger())
	link := activeLink("trk_duplicate0001")

	require.NoError(t, repo.Store(context.Background(), link))
	assert.Error(t, repo.Store(context.Background(), link))
}

func TestRepositorySnapshotsAreIsolated(t *testing.T) {
	repo := NewLinkRepository(testLogger())
	link := activeLink("trk_snapshotiso01")
	require.NoError(t, repo.Store(context.Background(), link))

	// Mutating the stored-from value must not leak into the repository
	link.CampaignName = "mutated"
	link.Sessions["x"] = &domain.Session{ID: "x"}

	got, err := repo.Find(context.Background(), link.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, "spring-sale", got.CampaignName)
	assert.Empty(t, got.Sessions)

	// Mutating a returned snapshot must not leak either
	got.Clicks = append(got.Clicks, domain.Click{ID: "rogue"})
	again, err := repo.Find(context.Background(), link.TrackingID)
	require.NoError(t, err)
	assert.Empty(t, again.Clicks)
}

func TestRepositoryFindActive(t *testing.T) {
	repo := NewLinkRepository(testLogger())
	now := time.Now()

	active := activeLink("trk_findactive001")
	require.NoError(t, repo.Store(context.Background(), active))

	lapsed := activeLink("trk_findactive002")
	lapsed.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, repo.Store(context.Background(), lapsed))

	capped := activeLink("trk_findactive003")
	capped.Status = domain.StatusLimitReached
	require.NoError(t, repo.Store(context.Background(), capped))

	swept := activeLink("trk_findactive004")
	swept.Status = domain.StatusExpired
	require.NoError(t, repo.Store(context.Background(), swept))

	_, err := repo.FindActive(context.Background(), active.TrackingID)
	assert.NoError(t, err)

	_, err = repo.FindActive(context.Background(), lapsed.TrackingID)
	assert.ErrorIs(t, err, domain.ErrLinkExpired)

	_, err = repo.FindActive(context.Background(), capped.TrackingID)
	assert.ErrorIs(t, err, domain.ErrClickLimitReached)

	_, err = repo.FindActive(context.Background(), swept.TrackingID)
	assert.ErrorIs(t, err, domain.ErrLinkExpired)

	_, err = repo.FindActive(context.Background(), "trk_missing")
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestRepositoryUpdateKeepsMutationOnError(t *testing.T) {
	repo := NewLinkRepository(testLogger())
	link := activeLink("trk_partialwrite1")
	require.NoError(t, repo.Store(context.Background(), link))

	sentinel := fmt.Errorf("rejected")
	_, err := repo.Update(context.Background(), link.TrackingID, func(l *domain.TrackingLink) error {
		l.Status = domain.StatusLimitReached
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	got, err := repo.Find(context.Background(), link.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLimitReached, got.Status)
}

func TestRepositoryConcurrentUpdates(t *testing.T) {
	repo := NewLinkRepository(testLogger())
	link := activeLink("trk_concurrent001")
	require.NoError(t, repo.Store(context.Background(), link))

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			_, err := repo.Update(context.Background(), link.TrackingID, func(l *domain.TrackingLink) error {
				l.Clicks = append(l.Clicks, domain.Click{ID: fmt.Sprintf("click-%d", n)})
				l.RecomputeTotals()
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Find(context.Background(), link.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, writers, got.TotalClicks)
	assert.Len(t, got.Clicks, writers)
}

func TestRepositoryListFiltersAndPaginates(t *testing.T) {
	repo := NewLinkRepository(testLogger())

	for i := 0; i < 5; i++ {
		link := activeLink(fmt.Sprintf("trk_listpage%05d", i))
		link.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		if i%2 == 1 {
			link.Status = domain.StatusExpired
		}
		require.NoError(t, repo.Store(context.Background(), link))
	}

	all, err := repo.List(context.Background(), domain.LinkFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, all.Total)
	assert.Equal(t, 5, all.Summary.TotalLinks)
	assert.Equal(t, 3, all.Summary.ActiveLinks)
	// Newest first
	assert.Equal(t, "trk_listpage00004", all.Links[0].TrackingID)

	expired, err := repo.List(context.Background(), domain.LinkFilter{Status: domain.StatusExpired})
	require.NoError(t, err)
	assert.Equal(t, 2, expired.Total)

	page, err := repo.List(context.Background(), domain.LinkFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page.Links, 2)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore)

	tail, err := repo.List(context.Background(), domain.LinkFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, tail.Links, 1)
	assert.False(t, tail.HasMore)
}

func TestRepositoryActiveIDs(t *testing.T) {
	repo := NewLinkRepository(testLogger())

	a := activeLink("trk_activeids0001")
	require.NoError(t, repo.Store(context.Background(), a))

	b := activeLink("trk_activeids0002")
	b.Status = domain.StatusExpired
	require.NoError(t, repo.Store(context.Background(), b))

	c := activeLink("trk_activeids0003")
	require.NoError(t, repo.Store(context.Background(), c))

	ids, err := repo.ActiveIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"trk_activeids0001", "trk_activeids0003"}, ids)
}
