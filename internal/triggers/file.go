package triggers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
)

// Format of a trigger file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Repository persists the trigger list.
type Repository interface {
	Load(ctx context.Context) ([]Trigger, error)
	Save(ctx context.Context, ts []Trigger) error
}

// FileRepository stores triggers as one flat ordered list in a JSON or
// YAML file.
type FileRepository struct {
	path   string
	format Format

	mu  sync.Mutex
	sum [sha256.Size]byte
}

// NewFileRepository creates a repository for path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path, format: FormatFor(path)}
}

// Path returns the file path.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads and validates the file. A missing file is an empty list.
// The first malformed entry fails the whole load.
func (r *FileRepository) Load(ctx context.Context) ([]Trigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return []Trigger{}, nil
	}
	if err != nil {
		return nil, errors.InternalError("failed to read triggers file", err).WithContext("path", r.path)
	}

	ts, err := r.decode(raw)
	if err != nil {
		return nil, err
	}
	r.sum = sha256.Sum256(raw)
	return ts, nil
}

// Save writes ts atomically through a temporary file and rename.
func (r *FileRepository) Save(ctx context.Context, ts []Trigger) error {
	raw, err := r.encode(ts)
	if err != nil {
		return errors.InternalError("failed to encode triggers", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.InternalError("failed to create triggers directory", err).WithContext("path", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*")
	if err != nil {
		return errors.InternalError("failed to create temporary file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.InternalError("failed to write triggers", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.InternalError("failed to write triggers", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.InternalError("failed to replace triggers file", err).WithContext("path", r.path)
	}

	r.sum = sha256.Sum256(raw)
	return nil
}

// changed reads the file and reports whether its content differs from
// the last one loaded or saved.
func (r *FileRepository) changed() (bool, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return sha256.Sum256(raw) != r.sum, nil
}

func (r *FileRepository) decode(raw []byte) ([]Trigger, error) {
	var ts []Trigger
	if len(bytes.TrimSpace(raw)) == 0 {
		return []Trigger{}, nil
	}

	switch r.format {
	case FormatYAML:
		var nodes []yaml.Node
		if err := yaml.Unmarshal(raw, &nodes); err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("triggers file is not a YAML list: %v", err))
		}
		for n := range nodes {
			var t Trigger
			if err := nodes[n].Decode(&t); err != nil {
				return nil, errors.ValidationError(fmt.Sprintf("trigger %d: %v", n, err))
			}
			ts = append(ts, t)
		}
	default:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("triggers file is not a JSON list: %v", err))
		}
		for n, item := range items {
			var t Trigger
			if err := json.Unmarshal(item, &t); err != nil {
				return nil, errors.ValidationError(fmt.Sprintf("trigger %d: %v", n, err))
			}
			ts = append(ts, t)
		}
	}

	if err := ValidateAll(ts); err != nil {
		return nil, err
	}
	if ts == nil {
		ts = []Trigger{}
	}
	return ts, nil
}

func (r *FileRepository) encode(ts []Trigger) ([]byte, error) {
	if ts == nil {
		ts = []Trigger{}
	}
	if r.format == FormatYAML {
		return yaml.Marshal(ts)
	}
	raw, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}

// DefaultDebounce is how long the watcher waits after the last file event.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the store when the trigger file changes on disk.
// Writes made through the repository itself do not cause a reload.
type Watcher struct {
	repo     *FileRepository
	store    *Store
	logger   logging.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher; a non-positive debounce uses the default.
func NewWatcher(repo *FileRepository, store *Store, logger logging.Logger, debounce time.Duration) *Watcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		repo:     repo,
		store:    store,
		logger:   logger.WithFields(logging.String("component", "trigger_watcher")),
		debounce: debounce,
	}
}

// Start watches the directory of the trigger file. Editors and Save
// replace the file by rename, so the directory is watched rather than
// the file itself.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.InternalError("failed to create file watcher", err)
	}
	dir := filepath.Dir(w.repo.Path())
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return errors.InternalError("failed to watch triggers directory", err).WithContext("dir", dir)
	}

	w.watcher = fw
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("Hot reload watcher started", logging.String("path", w.repo.Path()))
	return nil
}

// Stop ends the watch loop.
func (w *Watcher) Stop() error {
	if w.watcher == nil {
		return nil
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	w.watcher = nil
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	target := filepath.Clean(w.repo.Path())
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			w.Reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", err)
		}
	}
}

// Reload loads the file and swaps the store contents when the file
// changed since the last load or save. Invalid files leave the store as
// it was.
func (w *Watcher) Reload(ctx context.Context) {
	changed, err := w.repo.changed()
	if err != nil {
		w.logger.Error("Failed to read triggers file", err)
		return
	}
	if !changed {
		return
	}

	ts, err := w.repo.Load(ctx)
	if err != nil {
		w.logger.Error("Rejected triggers file", err)
		return
	}
	if err := w.store.Replace(ts); err != nil {
		w.logger.Error("Failed to apply triggers file", err)
		return
	}
	w.logger.Info("Triggers reloaded", logging.Int("triggers", len(ts)))
}
