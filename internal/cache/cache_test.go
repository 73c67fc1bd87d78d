package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, zerolog.Nop()), mr
}

func TestLocalOnlyCacheExpires(t *testing.T) {
	c := New(nil, zerolog.Nop())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, KeySchedule, []string{"a"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got []string
	if !c.Get(ctx, KeySchedule, &got) || len(got) != 1 {
		t.Fatalf("expected local hit, got %v", got)
	}

	now = now.Add(time.Minute)
	if c.Get(ctx, KeySchedule, &got) {
		t.Fatal("expected entry to expire at ttl")
	}
}

func TestRedisTierServesOtherInstances(t *testing.T) {
	writer, mr := newRedisCache(t)
	ctx := context.Background()

	if err := writer.SetAlbumArt(ctx, "Song", "Artist", CachedAlbumArt{URL: "https://img/x.jpg", Found: true}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists(AlbumArtKey("Song", "Artist")) {
		t.Fatal("expected key in Redis")
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	reader := New(client, zerolog.Nop())

	got, ok := reader.GetAlbumArt(ctx, "  song ", "ARTIST")
	if !ok {
		t.Fatal("expected Redis hit for normalized pair")
	}
	if got.URL != "https://img/x.jpg" || !got.Found {
		t.Fatalf("unexpected cached art: %+v", got)
	}
}

func TestRedisErrorDisablesTierButKeepsLocal(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, KeyPodcasts, []int{1, 2}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.Close()

	if err := c.Set(ctx, KeyPodcast+"1", 1, time.Minute); err == nil {
		t.Fatal("expected Redis error once server is gone")
	}
	if c.IsAvailable() {
		t.Fatal("expected Redis tier to be disabled")
	}

	var got []int
	if !c.Get(ctx, KeyPodcasts, &got) || len(got) != 2 {
		t.Fatalf("expected local tier hit, got %v", got)
	}
}

func TestDeletePrefix(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, KeyEpisodes+"1", 1, time.Minute)
	_ = c.Set(ctx, KeyEpisodes+"2", 2, time.Minute)
	_ = c.Set(ctx, KeySchedule, 3, time.Minute)

	if err := c.DeletePrefix(ctx, KeyEpisodes); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}

	var v int
	if c.Get(ctx, KeyEpisodes+"1", &v) {
		t.Fatal("expected episodes key to be gone")
	}
	if mr.Exists(KeyEpisodes + "2") {
		t.Fatal("expected Redis episodes key to be gone")
	}
	if !c.Get(ctx, KeySchedule, &v) {
		t.Fatal("expected unrelated key to survive")
	}
}

func TestInvalidateAnnouncements(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, KeyActiveAnnouncements, []string{"x"}, time.Minute)
	if err := c.InvalidateAnnouncements(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	var got []string
	if c.Get(ctx, KeyActiveAnnouncements, &got) {
		t.Fatal("expected announcements to be invalidated")
	}
}

func TestSweepDropsExpiredEntriesWithoutReads(t *testing.T) {
	c := New(nil, zerolog.Nop())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := c.SetAlbumArt(ctx, fmt.Sprintf("title %d", i), "artist", CachedAlbumArt{}, time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if err := c.Set(ctx, KeySchedule, []string{"a"}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if removed := c.Sweep(); removed != 50 {
		t.Fatalf("removed=%d, want 50", removed)
	}
	if got := c.LocalLen(); got != 1 {
		t.Fatalf("local entries=%d, want 1 live entry", got)
	}
}

func TestLocalTierIsBounded(t *testing.T) {
	c := New(nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < maxLocalEntries+25; i++ {
		if err := c.SetAlbumArt(ctx, fmt.Sprintf("title %d", i), "artist", CachedAlbumArt{Found: true}, time.Hour); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if got := c.LocalLen(); got != maxLocalEntries {
		t.Fatalf("local entries=%d, want cap %d", got, maxLocalEntries)
	}
	if _, ok := c.GetAlbumArt(ctx, fmt.Sprintf("title %d", maxLocalEntries+24), "artist"); !ok {
		t.Fatal("newest entry was evicted")
	}
}
