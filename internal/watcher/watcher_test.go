package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brandkit/internal/build"
	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/testutils"
)

// recorder collects delivered batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]ChangeEvent
}

func (r *recorder) handle(events []ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]ChangeEvent(nil), events...))
	return nil
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.batches {
		for _, e := range b {
			out = append(out, filepath.Base(e.Path))
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func startWatcher(t *testing.T, dir string, setup func(fw *FileWatcher)) *recorder {
	t.Helper()
	fw, err := NewFileWatcher(40*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Stop() })

	fw.AddFilter(ImageFilter)
	fw.AddFilter(NoHiddenFilter)
	if setup != nil {
		setup(fw)
	}
	require.NoError(t, fw.AddRecursive(dir))

	rec := &recorder{}
	fw.AddHandler(rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, fw.Start(ctx))
	return rec
}

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestAddPath_Validation(t *testing.T) {
	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	dir := t.TempDir()
	file := testutils.WriteFile(t, dir, "logo.png", []byte("x"))

	assert.NoError(t, fw.AddPath(dir))
	assert.Equal(t, []string{dir}, fw.WatchedPaths())

	err = fw.AddPath(filepath.Join(dir, "missing"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))

	err = fw.AddPath(file)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidPath))

	assert.Error(t, fw.AddPath(""))
}

func TestAddRecursive_SkipsHiddenDirectories(t *testing.T) {
	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "partners", "acme"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))

	require.NoError(t, fw.AddRecursive(root))
	assert.Equal(t, []string{
		root,
		filepath.Join(root, "partners"),
		filepath.Join(root, "partners", "acme"),
	}, fw.WatchedPaths())
}

func TestWatcher_DeliversImageChanges(t *testing.T) {
	dir := t.TempDir()
	rec := startWatcher(t, dir, nil)

	testutils.WritePNG(t, dir, "logo.png", 16, 16, false)
	testutils.WriteFile(t, dir, "notes.txt", []byte("ignored"))
	testutils.WriteFile(t, dir, ".logo.png.swp", []byte("ignored"))

	require.Eventually(t, func() bool { return rec.count() > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"logo.png"}, dedupe(rec.paths()))
}

func TestWatcher_PicksUpNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	rec := startWatcher(t, dir, nil)

	sub := filepath.Join(dir, "globex")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to add the new directory.
	time.Sleep(100 * time.Millisecond)
	testutils.WritePNG(t, sub, "icon.png", 8, 8, false)

	require.Eventually(t, func() bool {
		for _, p := range rec.paths() {
			if p == "icon.png" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_SkipUnchanged(t *testing.T) {
	dir := t.TempDir()
	data := testutils.EncodePNG(t, testutils.NewImage(16, 16, false))
	testutils.WriteFile(t, dir, "logo.png", data)

	rec := startWatcher(t, dir, func(fw *FileWatcher) {
		fw.SkipUnchanged(build.NewHashProvider(nil, nil))
	})

	// Rewriting identical bytes is not a change.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), data, 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, rec.count())

	testutils.WritePNG(t, dir, "logo.png", 32, 32, true)
	require.Eventually(t, func() bool { return rec.count() > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"logo.png"}, dedupe(rec.paths()))
}

func TestDebouncer(t *testing.T) {
	debouncer := &Debouncer{
		delay:   50 * time.Millisecond,
		events:  make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go debouncer.start(ctx)

	debouncer.events <- ChangeEvent{Path: "splash.png", Type: EventTypeCreated}
	debouncer.events <- ChangeEvent{Path: "logo.png", Type: EventTypeCreated}
	debouncer.events <- ChangeEvent{Path: "logo.png", Type: EventTypeModified}

	select {
	case batch := <-debouncer.output:
		require.Len(t, batch, 2)
		assert.Equal(t, "logo.png", batch[0].Path)
		assert.Equal(t, EventTypeModified, batch[0].Type, "last event per path wins")
		assert.Equal(t, "splash.png", batch[1].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}
}

func TestWatcher_HandlerErrorsDoNotStopDelivery(t *testing.T) {
	dir := t.TempDir()
	var calls int
	var mu sync.Mutex
	startWatcher(t, dir, func(fw *FileWatcher) {
		fw.AddHandler(func([]ChangeEvent) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return fmt.Errorf("rebuild failed")
		})
	})

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}

	testutils.WritePNG(t, dir, "a.png", 8, 8, false)
	require.Eventually(t, func() bool { return count() >= 1 }, 5*time.Second, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	before := count()
	testutils.WritePNG(t, dir, "b.png", 8, 8, false)
	require.Eventually(t, func() bool { return count() > before }, 5*time.Second, 20*time.Millisecond)
}

func TestStop_Twice(t *testing.T) {
	fw, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)

	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}

func TestFilters(t *testing.T) {
	tests := []struct {
		path   string
		image  bool
		hidden bool
		temp   bool
	}{
		{"assets/logo.png", true, true, true},
		{"assets/Splash.JPEG", true, true, true},
		{"assets/icon.webp", true, true, true},
		{"assets/partners", true, true, true},
		{"assets/readme.md", false, true, true},
		{"assets/.logo.png", true, false, true},
		{"assets/logo.png~", false, true, false},
		{"assets/logo.png.part", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.image, ImageFilter(tt.path), "image")
			assert.Equal(t, tt.hidden, NoHiddenFilter(tt.path), "hidden")
			assert.Equal(t, tt.temp, NoTempFilter(tt.path), "temp")
		})
	}
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
