package zoneconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writePeerFile(t *testing.T, path string, peers []PeerEntry) {
	t.Helper()
	d := PeerDirectory{Peers: peers}
	data, err := json.Marshal(&d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestPeerDirectoryLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")
	writePeerFile(t, path, []PeerEntry{
		{ZoneName: "b", Network: "tcp", Address: "127.0.0.1:9000"},
	})

	d, err := loadPeerDirectory(path)
	require.NoError(t, err)

	p, ok := d.Lookup("b")
	require.True(t, ok)
	require.Equal(t, "tcp", p.Network)
	require.Equal(t, "127.0.0.1:9000", p.Address)

	_, ok = d.Lookup("nonexistent")
	require.False(t, ok)
}

func TestLoadPeerDirectoryRejectsMissingFile(t *testing.T) {
	_, err := loadPeerDirectory(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadPeerDirectoryRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := loadPeerDirectory(path)
	require.Error(t, err)
}

func TestNewWatcherLoadsInitialDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")
	writePeerFile(t, path, []PeerEntry{{ZoneName: "b", Network: "local", Address: "/tmp/b.sock"}})

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	p, ok := w.Current().Lookup("b")
	require.True(t, ok)
	require.Equal(t, "local", p.Network)
}

func TestWatcherReloadsOnWriteAndFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")
	writePeerFile(t, path, []PeerEntry{{ZoneName: "b", Network: "tcp", Address: "127.0.0.1:9000"}})

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	fired := make(chan *PeerDirectory, 1)
	w.OnChange(func(d *PeerDirectory) {
		fired <- d
	})

	writePeerFile(t, path, []PeerEntry{{ZoneName: "b", Network: "tcp", Address: "127.0.0.1:9001"}})

	select {
	case d := <-fired:
		p, ok := d.Lookup("b")
		require.True(t, ok)
		require.Equal(t, "127.0.0.1:9001", p.Address)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire OnChange after file write")
	}

	p, ok := w.Current().Lookup("b")
	require.True(t, ok)
	require.Equal(t, "127.0.0.1:9001", p.Address)
}

func TestWatcherKeepsLastGoodDirectoryOnTransientParseFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")
	writePeerFile(t, path, []PeerEntry{{ZoneName: "b", Network: "tcp", Address: "127.0.0.1:9000"}})

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("{not valid"), 0644))
	time.Sleep(200 * time.Millisecond)

	p, ok := w.Current().Lookup("b")
	require.True(t, ok, "watcher should still serve the last good directory after a malformed rewrite")
	require.Equal(t, "127.0.0.1:9000", p.Address)
}

func TestWatcherCloseStopsWatching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")
	writePeerFile(t, path, []PeerEntry{{ZoneName: "b", Network: "tcp", Address: "127.0.0.1:9000"}})

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "Close must be idempotent")
}
