package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/notesearch/internal/source"
)

type recordingHandler struct {
	mu      sync.Mutex
	updates []string
	removes []string
	folders []string
}

func (r *recordingHandler) DebouncedUpdate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, path)
}

func (r *recordingHandler) RemoveFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removes = append(r.removes, path)
}

func (r *recordingHandler) RemoveFolder(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.folders = append(r.folders, path)
}

func (r *recordingHandler) sawFolderRemove(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.folders {
		if p == path {
			return true
		}
	}
	return false
}

func (r *recordingHandler) sawUpdate(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.updates {
		if p == path {
			return true
		}
	}
	return false
}

func (r *recordingHandler) sawRemove(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.removes {
		if p == path {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, root string, exclude []string) (*recordingHandler, string) {
	t.Helper()
	src, err := source.New(root, exclude, nil)
	require.NoError(t, err)

	handler := &recordingHandler{}
	w, err := New(src, handler, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Run(ctx) }()

	// Give the watcher time to register the directory tree.
	time.Sleep(100 * time.Millisecond)
	return handler, root
}

func TestWatcherReportsWrites(t *testing.T) {
	handler, root := startWatcher(t, t.TempDir(), nil)

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("hello"), 0o644))

	require.Eventually(t, func() bool {
		return handler.sawUpdate("note.md")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcherReportsRemoves(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doomed.md")
	require.NoError(t, os.WriteFile(path, []byte("bye"), 0o644))

	handler, _ := startWatcher(t, root, nil)
	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		return handler.sawRemove("doomed.md")
	}, 3*time.Second, 20*time.Millisecond)
}

// A directory deleted wholesale emits no per-file events; its removal
// must surface as a folder notification.
func TestWatcherReportsFolderRemoves(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "projects")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "alpha.md"), []byte("x"), 0o644))

	handler, _ := startWatcher(t, root, nil)
	require.NoError(t, os.RemoveAll(sub))

	require.Eventually(t, func() bool {
		return handler.sawFolderRemove("projects")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcherIgnoresNonIndexable(t *testing.T) {
	handler, root := startWatcher(t, t.TempDir(), nil)

	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte{1, 2, 3}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.md"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return handler.sawUpdate("real.md")
	}, 3*time.Second, 20*time.Millisecond)
	assert.False(t, handler.sawUpdate("image.png"))
}

func TestWatcherIgnoresExcludedFolders(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "templates"), 0o755))
	handler, _ := startWatcher(t, root, []string{"templates"})

	require.NoError(t, os.WriteFile(filepath.Join(root, "templates", "tpl.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.md"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return handler.sawUpdate("keep.md")
	}, 3*time.Second, 20*time.Millisecond)
	assert.False(t, handler.sawUpdate("templates/tpl.md"))
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	handler, root := startWatcher(t, t.TempDir(), nil)

	sub := filepath.Join(root, "projects")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Allow the new directory watch to land before writing into it.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "alpha.md"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return handler.sawUpdate("projects/alpha.md")
	}, 3*time.Second, 20*time.Millisecond)
}
