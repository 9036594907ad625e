package persistence

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"hermes/internal/logging"
)

// streamPollInterval is how often Stream checks the log file for new lines.
const streamPollInterval = 100 * time.Millisecond

// timestampLayout is ISO-8601 with a numeric UTC offset.
const timestampLayout = "2006-01-02T15:04:05-07:00"

// LogRepository appends structured lines to the daily log files. Every
// line goes to debug_log/; lines at or above the configured level also go
// to log/. It implements logging.LineWriter so component loggers can use
// it as their sink.
type LogRepository struct {
	paths Paths
	level logging.Level
	mu    sync.Mutex
	now   func() time.Time
}

// NewLogRepository returns a repository writing under the given layout.
// level is the minimum severity recorded in the main log file.
func NewLogRepository(paths Paths, level logging.Level) *LogRepository {
	return &LogRepository{paths: paths, level: level, now: time.Now}
}

// WriteLine implements logging.LineWriter.
func (r *LogRepository) WriteLine(level logging.Level, component, message string) {
	r.Write(level, component, message)
}

// Write appends one formatted line. kv pairs are appended as k=v fields
// in the order given.
func (r *LogRepository) Write(level logging.Level, component, message string, kv ...string) {
	var b strings.Builder
	b.WriteString(r.now().Format(timestampLayout))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] [")
	b.WriteString(component)
	b.WriteString("] ")
	b.WriteString(message)
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteString(" ")
		b.WriteString(kv[i])
		b.WriteString("=")
		b.WriteString(kv[i+1])
	}
	b.WriteString("\n")
	line := b.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	day := r.now().Format("20060102")
	r.appendLine(filepath.Join(r.paths.DebugLogDir(), "hermes-"+day+".log"), line)
	if level >= r.level {
		r.appendLine(filepath.Join(r.paths.LogDir(), "hermes-"+day+".log"), line)
	}
}

func (r *LogRepository) appendLine(path, line string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line)
}

// currentFile is today's log file under dir.
func (r *LogRepository) currentFile(dir string) string {
	return filepath.Join(dir, "hermes-"+r.now().Format("20060102")+".log")
}

// Tail returns the last n lines across the main log files, oldest first.
func (r *LogRepository) Tail(n int) ([]string, error) {
	return r.tail(r.paths.LogDir(), n)
}

// TailDebug is Tail over the unfiltered debug log files.
func (r *LogRepository) TailDebug(n int) ([]string, error) {
	return r.tail(r.paths.DebugLogDir(), n)
}

func (r *LogRepository) tail(dir string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	files, err := r.logFiles(dir)
	if err != nil {
		return nil, err
	}

	var lines []string
	for i := len(files) - 1; i >= 0 && len(lines) < n; i-- {
		fileLines, err := readLines(files[i])
		if err != nil {
			continue
		}
		needed := n - len(lines)
		if len(fileLines) > needed {
			fileLines = fileLines[len(fileLines)-needed:]
		}
		lines = append(fileLines, lines...)
	}
	return lines, nil
}

// Stream follows today's log file like tail -f, sending new lines on the
// returned channel until ctx is done. The channel is closed on return.
func (r *LogRepository) Stream(ctx context.Context) <-chan string {
	return r.stream(ctx, r.paths.LogDir())
}

// StreamDebug is Stream over the unfiltered debug log file.
func (r *LogRepository) StreamDebug(ctx context.Context) <-chan string {
	return r.stream(ctx, r.paths.DebugLogDir())
}

func (r *LogRepository) stream(ctx context.Context, dir string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		path := r.currentFile(dir)
		var offset int64
		if info, err := os.Stat(path); err == nil {
			offset = info.Size()
		}

		ticker := time.NewTicker(streamPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			// Day rollover starts a fresh file.
			if current := r.currentFile(dir); current != path {
				path = current
				offset = 0
			}

			newLines, newOffset, err := readFrom(path, offset)
			if err != nil {
				continue
			}
			offset = newOffset
			for _, line := range newLines {
				select {
				case out <- line:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (r *LogRepository) logFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing log files: %w", err)
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "hermes-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func readFrom(path string, offset int64) ([]string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return nil, offset, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}

	data := make([]byte, info.Size()-offset)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, offset, err
	}

	// Only consume whole lines; a partial trailing line waits for the
	// next poll.
	text := string(data)
	lastNewline := strings.LastIndexByte(text, '\n')
	if lastNewline < 0 {
		return nil, offset, nil
	}
	consumed := text[:lastNewline]
	newOffset := offset + int64(lastNewline) + 1

	var lines []string
	for _, line := range strings.Split(consumed, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, newOffset, nil
}
