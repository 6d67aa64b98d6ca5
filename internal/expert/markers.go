package expert

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/logging"
)

// MarkerCache tracks readiness markers in the session queue directory
// without touching disk on the hot path. Agents drop "ready-<id>" files when
// their startup hook runs; fsnotify events keep the in-memory set current so
// the control loop can check readiness every tick for free.
type MarkerCache struct {
	queueDir string
	logger   *logging.Logger

	mu    sync.RWMutex
	ready map[int]bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewMarkerCache scans the queue directory once, then watches it for marker
// changes. Close must be called to release the watcher.
func NewMarkerCache(queueDir string, logger *logging.Logger) (*MarkerCache, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	c := &MarkerCache{
		queueDir: queueDir,
		logger:   logger,
		ready:    make(map[int]bool),
		done:     make(chan struct{}),
	}

	if err := c.rescan(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(queueDir); err != nil {
		watcher.Close()
		return nil, err
	}
	c.watcher = watcher

	go c.watch()
	return c, nil
}

// Ready reports whether the readiness marker for an expert is present.
func (c *MarkerCache) Ready(expertID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready[expertID]
}

// Clear removes an expert's readiness marker from disk and from the cache.
// Called before a launch so a marker from the previous agent cannot satisfy
// the new readiness wait.
func (c *MarkerCache) Clear(expertID int) error {
	path := filepath.Join(c.queueDir, markerName(expertID))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	c.mu.Lock()
	delete(c.ready, expertID)
	c.mu.Unlock()
	return nil
}

// Close stops the watcher. The cache remains readable but goes stale.
func (c *MarkerCache) Close() error {
	close(c.done)
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func (c *MarkerCache) watch() {
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			id, isMarker := parseMarkerName(filepath.Base(event.Name))
			if !isMarker {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				c.mu.Lock()
				c.ready[id] = true
				c.mu.Unlock()
				c.logger.Debug("readiness marker observed", "expert", id)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				c.mu.Lock()
				delete(c.ready, id)
				c.mu.Unlock()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("marker watcher error", "error", err)
			// Events may have been dropped; resync from disk.
			if err := c.rescan(); err != nil {
				c.logger.Warn("marker rescan failed", "error", err)
			}
		}
	}
}

// rescan rebuilds the cache from a directory listing.
func (c *MarkerCache) rescan() error {
	entries, err := os.ReadDir(c.queueDir)
	if err != nil {
		return err
	}

	fresh := make(map[int]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := parseMarkerName(entry.Name()); ok {
			fresh[id] = true
		}
	}

	c.mu.Lock()
	c.ready = fresh
	c.mu.Unlock()
	return nil
}

func markerName(expertID int) string {
	return "ready-" + strconv.Itoa(expertID)
}

func parseMarkerName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "ready-")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return id, true
}
