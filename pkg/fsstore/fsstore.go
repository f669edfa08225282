// Package fsstore implements the content-addressed, collision-free file
// store described by the path model: atomic writes via temp-file-then-rename,
// streaming SHA-256 hashing, and cross-filesystem import with a copy fallback.
package fsstore

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/pathmodel"
)

const maxCollisionAttempts = 10

// StoreInfo describes the result of a successful write.
type StoreInfo struct {
	FinalPath pathmodel.ValidPath
	Size      int64
	Hash      string
}

// Store is a root-anchored mapping from ValidPath to a file on disk.
// The mutex below serialises only destination-selection and rename; the
// data copy that precedes it is unsynchronised.
type Store struct {
	root string
	mu   sync.Mutex
}

// New returns a Store rooted at root. root is created if it does not exist.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Store{root: root}, nil
}

func (s *Store) fsPath(p pathmodel.ValidPath) string {
	return filepath.Join(s.root, filepath.FromSlash(p.String()))
}

// LocalPath returns a filesystem path consumers may hand to an external
// process (the metadata extractor).
func (s *Store) LocalPath(p pathmodel.ValidPath) string {
	return s.fsPath(p)
}

// StoreStream writes r to a collision-free variant of path, computing its
// SHA-256 digest while streaming, and returns the StoreInfo describing what
// was actually written.
func (s *Store) StoreStream(path pathmodel.ValidPath, r io.Reader) (StoreInfo, error) {
	destDir := filepath.Join(s.root, filepath.Dir(filepath.FromSlash(path.String())))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return StoreInfo{}, errors.WithStack(err)
	}

	tmp, err := os.CreateTemp(destDir, ".tmp-"+uuid.NewString())
	if err != nil {
		return StoreInfo{}, errors.WithStack(err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		_ = tmp.Close()
		return StoreInfo{}, errors.WithStack(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return StoreInfo{}, errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return StoreInfo{}, errors.WithStack(err)
	}

	finalPath, err := s.reserveAndRename(tmpPath, path)
	if err != nil {
		return StoreInfo{}, err
	}
	cleanup = false

	return StoreInfo{
		FinalPath: finalPath,
		Size:      size,
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// StoreData is a convenience wrapper over StoreStream for in-memory content.
func (s *Store) StoreData(path pathmodel.ValidPath, data []byte) (StoreInfo, error) {
	return s.StoreStream(path, strings.NewReader(string(data)))
}

// StoreDataOverwrite writes data to path via a temp file in the same
// directory, overwriting any existing file at that exact path. Used for
// small, authoritative updates where collision suffixing is not wanted.
func (s *Store) StoreDataOverwrite(path pathmodel.ValidPath, data []byte) (StoreInfo, error) {
	destDir := filepath.Join(s.root, filepath.Dir(filepath.FromSlash(path.String())))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return StoreInfo{}, errors.WithStack(err)
	}

	dest := s.fsPath(path)
	tmpPath := dest + ".tmp"
	hasher := sha256.New()
	hasher.Write(data)

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return StoreInfo{}, errors.WithStack(err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return StoreInfo{}, errors.WithStack(err)
	}

	return StoreInfo{FinalPath: path, Size: int64(len(data)), Hash: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// reserveAndRename picks a collision-free name under the mutex and renames
// tmpPath onto it. The (possibly large) data copy has already happened by
// the time this is called, so the critical section is just stat+rename.
func (s *Store) reserveAndRename(tmpPath string, want pathmodel.ValidPath) (pathmodel.ValidPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for n := 0; n <= maxCollisionAttempts; n++ {
		candidate := want
		if n > 0 {
			candidate = suffixed(want, n)
		}
		dest := s.fsPath(candidate)
		if _, err := os.Stat(dest); err == nil {
			continue // occupied, try next suffix
		} else if !os.IsNotExist(err) {
			return pathmodel.ValidPath{}, errors.WithStack(err)
		}
		if err := os.Rename(tmpPath, dest); err != nil {
			return pathmodel.ValidPath{}, errors.WithStack(err)
		}
		return candidate, nil
	}
	return pathmodel.ValidPath{}, errcodes.Conflict("could not find a free name after 10 attempts")
}

// suffixed returns path with "(n)" inserted before the extension, e.g.
// "a/b.txt" -> "a/b(1).txt".
func suffixed(path pathmodel.ValidPath, n int) pathmodel.ValidPath {
	raw := path.String()
	dir, base := filepath.Split(raw)
	dir = strings.TrimSuffix(dir, "/")
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	newBase := stem + "(" + strconv.Itoa(n) + ")" + ext

	newRaw := newBase
	if dir != "" {
		newRaw = dir + "/" + newBase
	}
	p, _ := pathmodel.NewValidPath(newRaw)
	return p
}

// LoadData opens path for reading. The caller must Close the returned
// ReadCloser; the backing file descriptor is released on Close.
func (s *Store) LoadData(path pathmodel.ValidPath) (io.ReadCloser, error) {
	f, err := os.Open(s.fsPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errcodes.NotFound("file")
		}
		return nil, errors.WithStack(err)
	}
	return f, nil
}

// Size returns the size in bytes of the file at path.
func (s *Store) Size(path pathmodel.ValidPath) (int64, error) {
	info, err := os.Stat(s.fsPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errcodes.NotFound("file")
		}
		return 0, errors.WithStack(err)
	}
	return info.Size(), nil
}

// Delete removes the file at path. Deleting a non-existent file is a no-op.
func (s *Store) Delete(path pathmodel.ValidPath) error {
	if err := os.Remove(s.fsPath(path)); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

// Rename validates that from is a regular file, picks a collision-free
// destination under to (same suffix scheme as StoreStream), and renames
// atomically.
func (s *Store) Rename(from, to pathmodel.ValidPath) (pathmodel.ValidPath, error) {
	fromPath := s.fsPath(from)
	info, err := os.Stat(fromPath)
	if err != nil {
		if os.IsNotExist(err) {
			return pathmodel.ValidPath{}, errcodes.NotFound("file")
		}
		return pathmodel.ValidPath{}, errors.WithStack(err)
	}
	if !info.Mode().IsRegular() {
		return pathmodel.ValidPath{}, errcodes.ValidationError("source is not a regular file")
	}

	destDir := filepath.Join(s.root, filepath.Dir(filepath.FromSlash(to.String())))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return pathmodel.ValidPath{}, errors.WithStack(err)
	}

	return s.reserveAndRename(fromPath, to)
}

// ImportFile brings an external filesystem path into the store at `to`,
// trying an atomic rename first and falling back to copy-via-temp on
// cross-device errors. If move is true, the source is removed after a
// successful copy-fallback import (rename always removes the source).
func (s *Store) ImportFile(externalPath string, to pathmodel.ValidPath, move bool) (StoreInfo, error) {
	destDir := filepath.Join(s.root, filepath.Dir(filepath.FromSlash(to.String())))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return StoreInfo{}, errors.WithStack(err)
	}

	if move {
		if info, hash, err := s.tryRenameImport(externalPath, to); err == nil {
			return StoreInfo{FinalPath: info, Size: hash.size, Hash: hash.hash}, nil
		} else if !errors.Is(err, errCrossDevice) {
			return StoreInfo{}, err
		}
	}

	// Cross-device, or caller wants a copy: stream through StoreStream and
	// optionally remove the source afterward.
	src, err := os.Open(externalPath)
	if err != nil {
		return StoreInfo{}, errors.WithStack(err)
	}
	defer src.Close()

	info, err := s.StoreStream(to, src)
	if err != nil {
		return StoreInfo{}, err
	}
	if move {
		_ = os.Remove(externalPath)
	}
	return info, nil
}

var errCrossDevice = errors.New("cross-device link")

type importHash struct {
	size int64
	hash string
}

// tryRenameImport attempts the fast path: hash the source in place, then
// os.Rename it directly onto a collision-free destination name.
func (s *Store) tryRenameImport(externalPath string, to pathmodel.ValidPath) (pathmodel.ValidPath, importHash, error) {
	f, err := os.Open(externalPath)
	if err != nil {
		return pathmodel.ValidPath{}, importHash{}, errors.WithStack(err)
	}
	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	_ = f.Close()
	if err != nil {
		return pathmodel.ValidPath{}, importHash{}, errors.WithStack(err)
	}

	dest, err := s.reserveAndRename(externalPath, to)
	if err != nil {
		var pathErr *os.LinkError
		if errors.As(err, &pathErr) && isCrossDevice(pathErr) {
			return pathmodel.ValidPath{}, importHash{}, errCrossDevice
		}
		return pathmodel.ValidPath{}, importHash{}, err
	}
	return dest, importHash{size: size, hash: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// GuessMimeType returns the Format-table lookup's fallback MIME guess when
// neither an explicit Content-Type nor a Format.extension match resolved one.
func GuessMimeType(path string) string {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return m.String()
}
