// Package zoneconfig loads the peer-directory file that tells a zone's
// embedding application which transport to dial for each known peer
// zone name, and optionally hot-reloads it -- finishing the
// `--authfile` reload the teacher's own CLI help text promises but
// never wires up.
package zoneconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PeerEntry describes how to reach one peer zone.
type PeerEntry struct {
	ZoneName string `json:"zone_name"`
	Network  string `json:"network"` // "local", "tcp", "websocket"
	Address  string `json:"address"`
}

// PeerDirectory is the parsed contents of a peer-directory file: an
// ordered list of peers plus a lookup index by zone name.
type PeerDirectory struct {
	Peers []PeerEntry `json:"peers"`

	byName map[string]PeerEntry
}

func (d *PeerDirectory) index() {
	d.byName = make(map[string]PeerEntry, len(d.Peers))
	for _, p := range d.Peers {
		d.byName[p.ZoneName] = p
	}
}

// Lookup returns the peer entry for zoneName, or false if unknown.
func (d *PeerDirectory) Lookup(zoneName string) (PeerEntry, bool) {
	p, ok := d.byName[zoneName]
	return p, ok
}

func loadPeerDirectory(path string) (*PeerDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zoneconfig: reading %s: %w", path, err)
	}
	var d PeerDirectory
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("zoneconfig: parsing %s: %w", path, err)
	}
	d.index()
	return &d, nil
}

// Watcher holds the live, hot-reloadable PeerDirectory loaded from one
// file path. Callers read the current snapshot with Current; OnChange
// registers a callback fired after each successful reload.
type Watcher struct {
	path string

	mu      sync.RWMutex
	current *PeerDirectory

	watcher   *fsnotify.Watcher
	onChange  []func(*PeerDirectory)
	closeOnce sync.Once
	doneChan  chan struct{}
}

// NewWatcher loads path once synchronously and begins watching it for
// changes with fsnotify. Call Close to stop watching.
func NewWatcher(path string) (*Watcher, error) {
	d, err := loadPeerDirectory(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("zoneconfig: creating watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("zoneconfig: watching %s: %w", path, err)
	}

	w := &Watcher{
		path:     path,
		current:  d,
		watcher:  fw,
		doneChan: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded PeerDirectory.
func (w *Watcher) Current() *PeerDirectory {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers fn to be called, with the new directory, after
// each successful reload triggered by a filesystem event.
func (w *Watcher) OnChange(fn func(*PeerDirectory)) {
	w.mu.Lock()
	w.onChange = append(w.onChange, fn)
	w.mu.Unlock()
}

func (w *Watcher) loop() {
	defer close(w.doneChan)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			d, err := loadPeerDirectory(w.path)
			if err != nil {
				// Keep serving the last good directory on a transient
				// parse failure (e.g. a writer still mid-write).
				continue
			}
			w.mu.Lock()
			w.current = d
			callbacks := append([]func(*PeerDirectory){}, w.onChange...)
			w.mu.Unlock()
			for _, cb := range callbacks {
				cb(d)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops watching the file.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		<-w.doneChan
	})
	return err
}
