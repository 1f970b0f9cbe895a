package rawdata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultBaseDir = "data/raw_data"

	dateLayout = "2006-01-02"
	dirPerm    = 0o755
	filePerm   = 0o644
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

var SystemClock Clock = ClockFunc(time.Now)

// Store writes raw payloads under <baseDir>/<YYYY-MM-DD>/. The date is
// taken from the clock on every write, never cached.
type Store struct {
	baseDir string
	clock   Clock
}

func NewStore(baseDir string, clock Clock) *Store {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	if clock == nil {
		clock = SystemClock
	}

	return &Store{baseDir: baseDir, clock: clock}
}

func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) Today() string {
	return s.clock.Now().Format(dateLayout)
}

func (s *Store) DayDir() string {
	return filepath.Join(s.baseDir, s.Today())
}

type Artifact struct {
	Date string
	Path string
}

// Save overwrites <day dir>/<fileName> with payload. The returned date is
// the one the directory was named after.
func (s *Store) Save(payload []byte, fileName string) (Artifact, error) {
	if fileName == "" || fileName != filepath.Base(fileName) {
		return Artifact{}, fmt.Errorf("invalid file name: %q", fileName)
	}

	date := s.Today()
	dir := filepath.Join(s.baseDir, date)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return Artifact{}, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, payload, filePerm); err != nil {
		return Artifact{}, fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return Artifact{Date: date, Path: path}, nil
}
