package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"vidsift/pkg/vhash"
)

func testKey(b byte) Key {
	var k Key
	for i := range k.File {
		k.File[i] = b
	}
	k.Params = vhash.DefaultParams().Digest()
	return k
}

func testVideoHash(path string) *vhash.VideoHash {
	return &vhash.VideoHash{
		Path:         path,
		DurationMS:   60_000,
		Spatial:      []uint64{0x1111, 0x2222, 0x3333},
		Temporal:     0x4444,
		Crop:         vhash.FullRect(640, 480),
		ParamsDigest: vhash.DefaultParams().Digest(),
	}
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCache_MissThenHit(t *testing.T) {
	c := newTestCache(t)
	key := testKey(1)

	if _, ok := c.Lookup(key); ok {
		t.Fatal("empty cache reported a hit")
	}

	want := testVideoHash("a.mp4")
	got, hit, err := c.GetOrBuild(context.Background(), key, func(context.Context) (*vhash.VideoHash, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if hit {
		t.Fatal("first build reported as hit")
	}
	if got.Path != want.Path {
		t.Fatalf("built hash path = %q, want %q", got.Path, want.Path)
	}

	cached, ok := c.Lookup(key)
	if !ok {
		t.Fatal("entry not readable after store")
	}
	if cached.Path != want.Path || cached.Temporal != want.Temporal {
		t.Fatalf("cached hash = %+v, want %+v", cached, want)
	}
}

func TestCache_SecondRunHits(t *testing.T) {
	dir := t.TempDir()
	key := testKey(2)

	c1, err := New(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := c1.GetOrBuild(context.Background(), key, func(context.Context) (*vhash.VideoHash, error) {
		return testVideoHash("b.mp4"), nil
	}); err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}

	// A fresh Cache over the same directory must serve the entry without
	// invoking the builder.
	c2, err := New(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, hit, err := c2.GetOrBuild(context.Background(), key, func(context.Context) (*vhash.VideoHash, error) {
		t.Fatal("builder invoked on warm cache")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if !hit {
		t.Fatal("warm cache reported a miss")
	}
	if c2.Len() == 0 {
		t.Fatal("index hint not loaded across runs")
	}
}

func TestCache_AtMostOnceBuild(t *testing.T) {
	c := newTestCache(t)
	key := testKey(3)

	var builds atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	const workers = 8
	results := make([]*vhash.VideoHash, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vh, _, err := c.GetOrBuild(context.Background(), key, func(context.Context) (*vhash.VideoHash, error) {
				builds.Add(1)
				<-release
				return testVideoHash("c.mp4"), nil
			})
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = vh
		}(i)
	}

	close(release)
	wg.Wait()

	if got := builds.Load(); got != 1 {
		t.Fatalf("builder ran %d times, want exactly 1", got)
	}
	for i, vh := range results {
		if vh == nil || vh.Path != "c.mp4" {
			t.Fatalf("worker %d got %+v", i, vh)
		}
	}
}

func TestCache_BuildErrorNotCached(t *testing.T) {
	c := newTestCache(t)
	key := testKey(4)

	wantErr := errors.New("decode exploded")
	_, _, err := c.GetOrBuild(context.Background(), key, func(context.Context) (*vhash.VideoHash, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetOrBuild error = %v, want %v", err, wantErr)
	}

	// The failure must not leave an entry behind; the next call rebuilds.
	vh, hit, err := c.GetOrBuild(context.Background(), key, func(context.Context) (*vhash.VideoHash, error) {
		return testVideoHash("d.mp4"), nil
	})
	if err != nil || hit || vh == nil {
		t.Fatalf("rebuild after failure: vh=%v hit=%v err=%v", vh, hit, err)
	}
}

func TestCache_CorruptEntryIsRemoved(t *testing.T) {
	c := newTestCache(t)
	key := testKey(5)

	if _, _, err := c.GetOrBuild(context.Background(), key, func(context.Context) (*vhash.VideoHash, error) {
		return testVideoHash("e.mp4"), nil
	}); err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}

	entry := filepath.Join(c.Dir(), key.Hex()+".vhash")
	if err := os.WriteFile(entry, []byte("VHSHgarbage"), 0o644); err != nil {
		t.Fatalf("corrupting entry: %v", err)
	}

	if _, ok := c.Lookup(key); ok {
		t.Fatal("corrupt entry served as a hit")
	}
	if _, err := os.Stat(entry); !os.IsNotExist(err) {
		t.Fatal("corrupt entry not removed on read")
	}
}

func TestCache_KeyIsolation(t *testing.T) {
	c := newTestCache(t)

	// Same file digest, different params digest: distinct entries.
	keyA := testKey(6)
	keyB := keyA
	p := vhash.DefaultParams()
	p.CropMode = "letterbox"
	keyB.Params = p.Digest()

	if keyA.Hex() == keyB.Hex() {
		t.Fatal("params digest does not influence the cache key")
	}

	if _, _, err := c.GetOrBuild(context.Background(), keyA, func(context.Context) (*vhash.VideoHash, error) {
		return testVideoHash("f.mp4"), nil
	}); err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if _, ok := c.Lookup(keyB); ok {
		t.Fatal("entry for different params served as a hit")
	}
}

func TestCache_Purge(t *testing.T) {
	c := newTestCache(t)
	key := testKey(7)

	if _, _, err := c.GetOrBuild(context.Background(), key, func(context.Context) (*vhash.VideoHash, error) {
		return testVideoHash("g.mp4"), nil
	}); err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}

	if err := c.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, ok := c.Lookup(key); ok {
		t.Fatal("entry survived purge")
	}
	if c.Len() != 0 {
		t.Fatalf("index has %d entries after purge", c.Len())
	}
}
