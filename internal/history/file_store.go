package history

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simonyos/whisper/internal/llm"
)

const (
	logExt = ".jsonl"

	// maxStem bounds the readable part of a log name
	maxStem = 64
)

// record is one line of a problem log
type record struct {
	ID      string      `json:"id"`
	Problem string      `json:"problem"`
	Time    time.Time   `json:"time"`
	Message llm.Message `json:"message"`
}

// logIndex locates complete records inside a log file
type logIndex struct {
	offsets []int64 // start of each decodable record
	valid   int64   // end of the last complete line
	size    int64   // file size when indexed
	modTime time.Time
}

// FileStore persists each problem's history as an append-only JSON-lines
// log. An in-memory index of line offsets lets Fetch read only the lines
// a page needs and Append write only the new ones.
type FileStore struct {
	baseDir string
	now     func() time.Time

	mu      sync.Mutex
	indexes map[string]*logIndex
}

// NewFileStore creates a file-backed history store rooted at baseDir
func NewFileStore(baseDir string) (*FileStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("base directory must be provided")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
		now:     time.Now,
		indexes: make(map[string]*logIndex),
	}, nil
}

// Dir returns the directory holding the logs
func (s *FileStore) Dir() string {
	return s.baseDir
}

// Append writes messages as new lines at the end of the problem log.
// A torn line left by an interrupted write is cut off first.
func (s *FileStore) Append(ctx context.Context, problemID string, messages []llm.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(problemID) == "" {
		return ErrEmptyProblemID
	}
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.index(problemID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	offsets := make([]int64, 0, len(messages))
	now := s.now().UTC()
	for _, msg := range messages {
		line, err := json.Marshal(record{
			ID:      uuid.NewString(),
			Problem: problemID,
			Time:    now,
			Message: msg,
		})
		if err != nil {
			return fmt.Errorf("encode history record: %w", err)
		}
		offsets = append(offsets, idx.valid+int64(buf.Len()))
		buf.Write(line)
		buf.WriteByte('\n')
	}

	f, err := os.OpenFile(s.logPath(problemID), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	if idx.size > idx.valid {
		if err := f.Truncate(idx.valid); err != nil {
			return fmt.Errorf("truncate torn history record: %w", err)
		}
	}

	n, err := f.WriteAt(buf.Bytes(), idx.valid)
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		// Rebuild from disk next time; a partial line reads as torn
		delete(s.indexes, problemID)
		return fmt.Errorf("write history log: %w", err)
	}

	idx.offsets = append(idx.offsets, offsets...)
	idx.valid += int64(n)
	idx.size = idx.valid
	if st, err := f.Stat(); err == nil {
		idx.modTime = st.ModTime()
	}
	s.indexes[problemID] = idx
	return nil
}

// Fetch reads one page of a problem's history, newest first
func (s *FileStore) Fetch(ctx context.Context, problemID string, limit, offset int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if strings.TrimSpace(problemID) == "" {
		return Page{}, ErrEmptyProblemID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.index(problemID)
	if err != nil {
		return Page{}, err
	}

	total := len(idx.offsets)
	start, end := pageBounds(total, limit, offset)
	if start == end {
		return Page{TotalCount: total, Messages: []llm.Message{}}, nil
	}

	from := idx.offsets[start]
	to := idx.valid
	if end < total {
		to = idx.offsets[end]
	}

	f, err := os.Open(s.logPath(problemID))
	if err != nil {
		return Page{}, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	span, err := io.ReadAll(io.NewSectionReader(f, from, to-from))
	if err != nil {
		return Page{}, fmt.Errorf("read history log: %w", err)
	}

	msgs := make([]llm.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		line := span[idx.offsets[i]-from:]
		if nl := bytes.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return Page{}, fmt.Errorf("%w: %s line at byte %d: %v", ErrCorruptRecord, problemID, idx.offsets[i], err)
		}
		if rec.Problem != problemID {
			return Page{}, fmt.Errorf("%w: %s line at byte %d belongs to %q", ErrCorruptRecord, problemID, idx.offsets[i], rec.Problem)
		}
		msgs = append(msgs, rec.Message)
	}

	return Page{TotalCount: total, Messages: msgs}, nil
}

// Delete removes the problem log
func (s *FileStore) Delete(ctx context.Context, problemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.indexes, problemID)
	if err := os.Remove(s.logPath(problemID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete history log: %w", err)
	}
	return nil
}

// List returns the problem ids that have a log, sorted
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read history directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), logExt) {
			continue
		}
		id, err := problemOf(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		// Logs without a complete record, or not written under this id, hold no history
		if id == "" || logName(id) != entry.Name() {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// index returns the cached index for a problem, rebuilding it when the
// file changed behind our back
func (s *FileStore) index(problemID string) (*logIndex, error) {
	path := s.logPath(problemID)
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			delete(s.indexes, problemID)
			return &logIndex{}, nil
		}
		return nil, fmt.Errorf("stat history log: %w", err)
	}

	if idx, ok := s.indexes[problemID]; ok && idx.size == st.Size() && idx.modTime.Equal(st.ModTime()) {
		return idx, nil
	}

	idx, err := buildIndex(path, problemID)
	if err != nil {
		return nil, err
	}
	idx.modTime = st.ModTime()
	s.indexes[problemID] = idx
	return idx, nil
}

// buildIndex scans a log once. Lines without a trailing newline are torn
// writes and are left out; complete lines that do not decode, or that
// belong to another problem, are skipped.
func buildIndex(path, problemID string) (*logIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	idx := &logIndex{}
	reader := bufio.NewReader(f)
	var pos int64
	for {
		line, err := reader.ReadBytes('\n')
		pos += int64(len(line))
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("scan history log: %w", err)
		}

		var rec record
		if json.Unmarshal(line, &rec) == nil && rec.Problem == problemID {
			idx.offsets = append(idx.offsets, pos-int64(len(line)))
		}
		idx.valid = pos
	}
	idx.size = pos
	return idx, nil
}

// problemOf returns the problem id of the first complete record in a log
func problemOf(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", nil
			}
			return "", fmt.Errorf("scan history log: %w", err)
		}
		var rec struct {
			Problem string `json:"problem"`
		}
		if json.Unmarshal(line, &rec) == nil && rec.Problem != "" {
			return rec.Problem, nil
		}
	}
}

// logPath names a log by the readable stem of the id plus a hash of the
// raw id, so ids that sanitize alike still get their own file
func (s *FileStore) logPath(problemID string) string {
	return filepath.Join(s.baseDir, logName(problemID))
}

func logName(problemID string) string {
	stem := sanitizeKey(problemID)
	if len(stem) > maxStem {
		stem = stem[:maxStem]
	}
	sum := sha256.Sum256([]byte(problemID))
	return stem + "-" + hex.EncodeToString(sum[:6]) + logExt
}

func sanitizeKey(value string) string {
	if value == "" {
		return "_"
	}

	var builder strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-' || r == '_' || r == '.':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}

	return builder.String()
}

var _ Store = (*FileStore)(nil)
