package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/observability"
)

const recordExt = ".json"

// FileStore keeps one JSON record per session under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir: dir,
	}
}

// Dir returns the sessions directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the record location for id.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

// Save overwrites the whole record through a temp file and rename,
// so a crash mid-write leaves the previous record intact.
func (s *FileStore) Save(ctx context.Context, session *domain.Session) (string, error) {
	if session == nil {
		return "", errors.New("session cannot be nil")
	}
	if !ValidID(session.ID) {
		return "", fmt.Errorf("invalid session id %q", session.ID)
	}

	data, err := Encode(session)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create sessions directory: %w", err)
	}

	path := s.Path(session.ID)
	if err := writeAtomic(s.dir, path, data); err != nil {
		return "", fmt.Errorf("failed to write session %s: %w", session.ID, err)
	}

	observability.FromContext(ctx).Debug("session record written",
		zap.String("path", path),
		zap.Int("turns", len(session.Turns)))

	return path, nil
}

// Load reads the record for id.
func (s *FileStore) Load(_ context.Context, id string) (*domain.Session, error) {
	if !ValidID(id) {
		return nil, NotFound(id)
	}

	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NotFound(id)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	return Decode(id, data)
}

// List summarizes every readable record, newest first. Corrupt records are skipped.
func (s *FileStore) List(ctx context.Context) ([]domain.SessionSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.SessionSummary{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	logger := observability.FromContext(ctx)
	summaries := make([]domain.SessionSummary, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			continue
		}

		loaded, err := s.Load(ctx, strings.TrimSuffix(name, recordExt))
		if err != nil {
			logger.Warn("skipping unreadable session record",
				zap.String("file", name),
				zap.Error(err))
			continue
		}

		summaries = append(summaries, Summarize(loaded))
	}

	SortSummaries(summaries)
	return summaries, nil
}

// Summarize reduces a session to its listing entry.
func Summarize(s *domain.Session) domain.SessionSummary {
	return domain.SessionSummary{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Turns:     len(s.Turns),
	}
}

// SortSummaries orders summaries newest first, then by id.
func SortSummaries(summaries []domain.SessionSummary) {
	slices.SortFunc(summaries, func(a, b domain.SessionSummary) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}
