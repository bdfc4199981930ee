// Package store implements the fixed-width sorted binary file that
// backs membership queries: twenty bytes per record, big-endian SHA-1
// digests, globally sorted, no header and no separate index. The file
// is the index.
//
// The write-then-rename publication protocol and the buffered-writer
// /  Sync-before-rename sequencing are grounded on the teacher's
// preindex/preindex.go Build() path; the binary-search probe is
// grounded on the same file's binarySearchSlab, adapted from an
// in-memory slab to a per-probe positional read (ReadAt) against an
// open descriptor since this store does not load the file into RAM.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rpcpool/hibp-store/internal/pwned"
)

func newBufWriter(f *os.File, size int) *bufio.Writer {
	return bufio.NewWriterSize(f, size)
}

// RecordSize is the on-disk width of one record: a raw SHA-1 digest.
// count is discarded; it is never written.
const RecordSize = pwned.SHA1Size

const defaultBufferSize = 8 * 1024

const defaultTmpName = "download_tmp"

// OrderRequirement describes whether a Store requires its save input
// to already be sorted. LocalStore requires it; a future store that
// sorts internally would advertise Unordered and let callers skip the
// reorder stage.
type OrderRequirement int

const (
	Ordered OrderRequirement = iota
	Unordered
)

func (r OrderRequirement) String() string {
	if r == Unordered {
		return "unordered"
	}
	return "ordered"
}

// ExistenceBehaviour controls how Save publishes the new file relative
// to any existing one at path.
type ExistenceBehaviour int

const (
	// RemoveOldThenCreateNew unlinks the final path up front and
	// streams writes directly into it. No atomic publish: a crash
	// mid-save leaves a partial or absent file.
	RemoveOldThenCreateNew ExistenceBehaviour = iota
	// DownloadThenReplace writes to a temporary path and renames it
	// onto the final path on success, leaving the previous file
	// intact if the save fails. TmpPath must share a filesystem with
	// the final path; the default is a sibling "download_tmp".
	DownloadThenReplace
)

// StrictOrderEnv, when set to a truthy value, makes Save assert that
// each incoming sha1 is not less than the last and panic otherwise. Off by default: the assertion costs a comparison per
// record and the precondition is the caller's responsibility (see
// spec.md §4.4), but it is cheap insurance to enable in CI.
const StrictOrderEnv = "HIBPSTORE_STRICT_ORDER"

// Option configures a LocalStore.
type Option func(*LocalStore)

// WithBufferSize overrides the default 8 KiB buffered-writer size used
// during Save.
func WithBufferSize(n int) Option {
	return func(s *LocalStore) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// WithExistenceBehaviour selects the publication strategy. Default is
// DownloadThenReplace.
func WithExistenceBehaviour(b ExistenceBehaviour) Option {
	return func(s *LocalStore) { s.behaviour = b }
}

// WithTmpPath overrides the temporary path used by DownloadThenReplace.
// It must be on the same filesystem as the store's final path.
func WithTmpPath(p string) Option {
	return func(s *LocalStore) { s.tmpPath = p }
}

// WithStrictOrder forces the debug monotonicity assertion on or off,
// overriding StrictOrderEnv.
func WithStrictOrder(on bool) Option {
	return func(s *LocalStore) { s.strictOrder = &on }
}

// LocalStore is the fixed-width sorted binary store described by
// spec.md §4.4-4.5.
type LocalStore struct {
	path        string
	behaviour   ExistenceBehaviour
	tmpPath     string
	bufferSize  int
	strictOrder *bool
}

// New constructs a LocalStore backed by the file at path.
func New(path string, opts ...Option) *LocalStore {
	s := &LocalStore{
		path:       path,
		behaviour:  DownloadThenReplace,
		bufferSize: defaultBufferSize,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OrderRequirement reports that LocalStore requires its Save input to
// already be sorted in non-decreasing sha1 order.
func (s *LocalStore) OrderRequirement() OrderRequirement { return Ordered }

func (s *LocalStore) strictOrderEnabled() bool {
	if s.strictOrder != nil {
		return *s.strictOrder
	}
	v := os.Getenv(StrictOrderEnv)
	return v != "" && v != "0" && v != "false"
}

func (s *LocalStore) writePath() string {
	if s.behaviour == RemoveOldThenCreateNew {
		return s.path
	}
	if s.tmpPath != "" {
		return s.tmpPath
	}
	return filepath.Join(filepath.Dir(s.path), defaultTmpName)
}

// openWritePath creates the file Save will write to. When the caller
// pinned tmpPath explicitly (WithTmpPath) or is using
// RemoveOldThenCreateNew, that path is the caller's responsibility: a
// stale file there is removed and recreated unconditionally. Otherwise
// writePath is the shared default "download_tmp" sibling, which a
// second concurrent ingest run could already hold open; in that case
// O_EXCL creation fails with os.IsExist, and this falls back to a
// uuid-disambiguated sibling path instead of clobbering the other
// run's in-progress file.
func (s *LocalStore) openWritePath() (*os.File, string, error) {
	path := s.writePath()
	ownsPath := s.behaviour == RemoveOldThenCreateNew || s.tmpPath != ""

	if ownsPath {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("store: remove stale write path %s: %w", path, err)
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return nil, "", fmt.Errorf("store: create %s: %w", path, err)
		}
		return f, path, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		return f, path, nil
	}
	if !os.IsExist(err) {
		return nil, "", fmt.Errorf("store: create %s: %w", path, err)
	}

	fallback := DisambiguatedTmpPath(filepath.Dir(s.path))
	f, ferr := os.OpenFile(fallback, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if ferr != nil {
		return nil, "", fmt.Errorf("store: %s already held by another run, and create %s: %w", path, fallback, ferr)
	}
	return f, fallback, nil
}

// Save consumes next, a callback that yields one pwned.Pwd at a time
// (ok=false signals clean end of stream), and writes the sha1 of each
// to disk in the order received. The caller must guarantee the stream
// is non-decreasing in sha1 (see spec.md §4.4); with strict
// ordering enabled, a violation panics rather than silently corrupting
// the file.
func (s *LocalStore) Save(next func() (pwned.Pwd, bool, error)) error {
	f, writePath, err := s.openWritePath()
	if err != nil {
		return err
	}

	w := newBufWriter(f, s.bufferSize)
	strict := s.strictOrderEnabled()
	var last [RecordSize]byte
	haveLast := false
	n := 0

	if err := func() error {
		for {
			rec, ok, err := next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if strict && haveLast && bytes.Compare(last[:], rec.SHA1[:]) > 0 {
				panic(fmt.Sprintf("store: %s violated: record %x sorts before %x", StrictOrderEnv, rec.SHA1, last))
			}
			if _, err := w.Write(rec.SHA1[:]); err != nil {
				return fmt.Errorf("store: write record %d: %w", n, err)
			}
			last = rec.SHA1
			haveLast = true
			n++
		}
	}(); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("store: flush %s: %w", writePath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("store: sync %s: %w", writePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", writePath, err)
	}

	if s.behaviour == DownloadThenReplace {
		if err := os.Rename(writePath, s.path); err != nil {
			return fmt.Errorf("store: publish %s -> %s: %w", writePath, s.path, err)
		}
		if dirF, err := os.Open(filepath.Dir(s.path)); err == nil {
			_ = dirF.Sync()
			_ = dirF.Close()
		}
	}

	return nil
}

// Exists answers membership by binary search directly against the
// on-disk file. Each call opens its own file descriptor so it is safe
// to call concurrently from multiple goroutines.
func (s *LocalStore) Exists(sha1 [RecordSize]byte) (bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return false, fmt.Errorf("store: open %s: %w", s.path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("store: stat %s: %w", s.path, err)
	}
	size := fi.Size()
	if size%RecordSize != 0 {
		return false, fmt.Errorf("store: %s: corrupt length %d not a multiple of %d", s.path, size, RecordSize)
	}
	count := size / RecordSize

	var buf [RecordSize]byte
	lo, hi := int64(0), count
	for lo < hi {
		mid := lo + (hi-lo)/2
		if _, err := f.ReadAt(buf[:], mid*RecordSize); err != nil && err != io.EOF {
			return false, fmt.Errorf("store: read record %d: %w", mid, err)
		}
		switch bytes.Compare(buf[:], sha1[:]) {
		case 0:
			return true, nil
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false, nil
}

// Stats reports the record count and byte size of the store's final
// file.
type Stats struct {
	Records int64
	Bytes   int64
}

// Stat reports record count and file size, failing if the file length
// is not a multiple of RecordSize.
func (s *LocalStore) Stat() (Stats, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stat %s: %w", s.path, err)
	}
	if fi.Size()%RecordSize != 0 {
		return Stats{}, fmt.Errorf("store: %s: corrupt length %d not a multiple of %d", s.path, fi.Size(), RecordSize)
	}
	return Stats{Records: fi.Size() / RecordSize, Bytes: fi.Size()}, nil
}

// DisambiguatedTmpPath returns a temp path suffixed with a random UUID.
// openWritePath falls back to it when the default "download_tmp"
// sibling is already held by another concurrent ingest run.
func DisambiguatedTmpPath(dir string) string {
	return filepath.Join(dir, defaultTmpName+"-"+uuid.NewString())
}
