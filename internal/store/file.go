package store

import (
	"os"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/dchest/safefile"
	"github.com/gofrs/flock"

	"github.com/iamrichardD/pharos/internal/log"
)

// persistVersion is the envelope version written by this implementation.
// Older files (a bare JSON array, with no envelope at all) are still read
// for backward compatibility, per §6's persisted-state note.
const persistVersion = 1

type envelope struct {
	Version int      `json:"version"`
	Records []Record `json:"records"`
}

// FileStore wraps a MemoryStore and persists it as JSON on every Add. It
// reuses MemoryStore's matching logic verbatim for Query and Count (§9 —
// "keep the file backend as a decorator ... so file-backend queries reuse
// in-memory matching").
type FileStore struct {
	mem  *MemoryStore
	path string
	lock *flock.Flock
	wmu  sync.Mutex
	lg   *log.Logger
}

// NewFileStore constructs a FileStore backed by path. If path exists and
// is non-empty it is parsed as the persisted JSON form (either the
// versioned envelope or a bare record array); a corrupt file logs an
// error and yields an empty store without touching the file until the
// next successful Add (§4.2).
func NewFileStore(path string, lg *log.Logger) *FileStore {
	if lg == nil {
		lg = log.NewDiscardLogger()
	}
	fs := &FileStore{
		mem:  NewMemoryStore(),
		path: path,
		lock: flock.New(path + ".lock"),
		lg:   lg,
	}
	fs.load()
	return fs
}

func (fs *FileStore) load() {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.lg.Error("failed to read storage file", log.KVErr(err), log.KV("path", fs.path))
		}
		return
	}
	if len(b) == 0 {
		return
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err == nil && env.Records != nil {
		fs.mem.restore(env.Records)
		return
	}

	var records []Record
	if err := json.Unmarshal(b, &records); err != nil {
		fs.lg.Error("corrupt storage file, starting empty", log.KVErr(err), log.KV("path", fs.path))
		return
	}
	fs.mem.restore(records)
}

func (fs *FileStore) Count() int { return fs.mem.Count() }

func (fs *FileStore) Query(selections []Selection, defaultType RecordType) ([]Record, error) {
	return fs.mem.Query(selections, defaultType)
}

// Add appends to the in-memory store and rewrites the whole backing file.
// The rewrite uses safefile (temp file + atomic rename) and an advisory
// flock sidecar so a crash mid-write cannot corrupt the last committed
// state, matching §9's durability note ("an implementer may upgrade to
// atomic rename-on-write without changing the wire contract" — we do so
// from the start).
func (fs *FileStore) Add(fields map[string]string) (Record, error) {
	fs.wmu.Lock()
	defer fs.wmu.Unlock()

	fs.mem.mu.Lock()
	rec, _ := fs.mem.addLocked(fields)
	snapshot := fs.mem.snapshotLocked()
	fs.mem.mu.Unlock()

	if err := fs.lock.Lock(); err != nil {
		fs.lg.Error("failed to acquire storage file lock", log.KVErr(err))
		return rec, nil
	}
	defer fs.lock.Unlock()

	if err := fs.rewrite(snapshot); err != nil {
		fs.lg.Error("failed to persist storage file", log.KVErr(err), log.KV("path", fs.path))
	}
	return rec, nil
}

func (fs *FileStore) rewrite(records []Record) error {
	env := envelope{Version: persistVersion, Records: records}
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	return safefile.WriteFile(fs.path, b, 0640)
}
