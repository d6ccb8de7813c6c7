package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event channel closed")
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timeout waiting for vault event")
		}
	}
}

func TestVault_Watch_CreateRefreshesIndex(t *testing.T) {
	v := openVault(t, map[string]string{"target.md": "target"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := v.Watch(ctx)
	require.NoError(t, err)

	writeFiles(t, v.Root(), map[string]string{"source.md": "points at [[target]]"})

	ev := waitEvent(t, events, func(ev Event) bool { return ev.Path == "source.md" })
	assert.Contains(t, []Op{OpCreated, OpUpdated}, ev.Op)
	assert.Equal(t, map[string][]string{"source.md": {"target.md"}}, v.Backlinks("target.md"))
}

func TestVault_Watch_Remove(t *testing.T) {
	v := openVault(t, map[string]string{"a.md": "[[b]]", "b.md": ""})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := v.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(v.Root(), "a.md")))

	ev := waitEvent(t, events, func(ev Event) bool { return ev.Path == "a.md" })
	assert.Equal(t, OpRemoved, ev.Op)
	assert.Empty(t, v.Backlinks("b.md"))
}

func TestVault_Watch_NewDirectory(t *testing.T) {
	v := openVault(t, map[string]string{"a.md": ""})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := v.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(v.Root(), "new"), 0o755))
	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)
	writeFiles(t, v.Root(), map[string]string{"new/note.md": "[[a]]"})

	waitEvent(t, events, func(ev Event) bool { return ev.Path == "new/note.md" })
	assert.Contains(t, v.Files(), "new/note.md")
}

func TestVault_Watch_ClosesOnCancel(t *testing.T) {
	v := openVault(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := v.Watch(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			for range events {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after context cancellation")
	}

	// The watcher is released, so a new watch can start.
	require.Eventually(t, func() bool {
		again, err := v.Watch(context.Background())
		return err == nil && again != nil
	}, time.Second, 20*time.Millisecond)
}

func TestVault_Watch_Errors(t *testing.T) {
	v := openVault(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := v.Watch(ctx)
	require.NoError(t, err)
	_, err = v.Watch(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already")

	require.NoError(t, v.Close())
	events, err := v.Watch(ctx)
	require.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, events)
}

func TestVault_HandleFsEvent(t *testing.T) {
	v := openVault(t, map[string]string{
		"file.md":        "x",
		".hidden.md":     "x",
		"dir/nested.txt": "x",
	})
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		name   string
		path   string
		op     fsnotify.Op
		want   Op
		wantOK bool
	}{
		{name: "create file", path: "file.md", op: fsnotify.Create, want: OpCreated, wantOK: true},
		{name: "write file", path: "file.md", op: fsnotify.Write, want: OpUpdated, wantOK: true},
		{name: "remove file", path: "gone.md", op: fsnotify.Remove, want: OpRemoved, wantOK: true},
		{name: "rename file", path: "gone.md", op: fsnotify.Rename, want: OpRemoved, wantOK: true},
		{name: "chmod ignored", path: "file.md", op: fsnotify.Chmod},
		{name: "create directory skipped", path: "dir", op: fsnotify.Create},
		{name: "hidden skipped", path: ".hidden.md", op: fsnotify.Write},
		{name: "create of vanished file skipped", path: "never.md", op: fsnotify.Create},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := v.handleFsEvent(w, fsnotify.Event{
				Name: filepath.Join(v.Root(), filepath.FromSlash(tt.path)),
				Op:   tt.op,
			})

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, Event{Path: tt.path, Op: tt.want}, ev)
			}
		})
	}
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "created", OpCreated.String())
	assert.Equal(t, "updated", OpUpdated.String())
	assert.Equal(t, "removed", OpRemoved.String())
	assert.Equal(t, "unknown", Op(0).String())
}
