package arena

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchLayouts_ReloadsOnNewFile(t *testing.T) {
	dir := t.TempDir()
	writeLayout(t, dir, "pillars.yaml", pillarLayout)

	got := make(chan map[string]*Layout, 16)
	w, err := WatchLayouts(dir, func(m map[string]*Layout) {
		select {
		case got <- m:
		default:
		}
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	writeLayout(t, dir, "ring.yaml", "rows: [\"...\"]\nboss_spawn: [1, 0.5]\n")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case m := <-got:
			if _, ok := m["ring"]; ok {
				require.Contains(t, m, "pillars")
				return
			}
		case <-deadline:
			t.Fatal("layouts were not reloaded")
		}
	}
}

func TestLayoutWatcher_CloseTwice(t *testing.T) {
	w, err := WatchLayouts(t.TempDir(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatchLayouts_MissingDir(t *testing.T) {
	_, err := WatchLayouts("/nonexistent/layouts", nil, nil)
	require.Error(t, err)
}
