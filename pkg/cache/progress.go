package cache

import (
	"fmt"
	"io"
	"time"

	"github.com/flanksource/clicky/task"
)

// progressReader wraps an io.Reader and reports download progress to a task
type progressReader struct {
	io.Reader
	total      int64
	current    int64
	task       *task.Task
	lastUpdate time.Time
	startTime  time.Time
}

func newProgressReader(r io.Reader, total int64, t *task.Task) *progressReader {
	now := time.Now()
	return &progressReader{
		Reader:     r,
		total:      total,
		task:       t,
		lastUpdate: now,
		startTime:  now,
	}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	pr.current += int64(n)

	// Update at most once per 100ms to avoid excessive redraws
	now := time.Now()
	if now.Sub(pr.lastUpdate) >= 100*time.Millisecond {
		if pr.total > 0 {
			pr.task.SetProgress(int(pr.current), int(pr.total))
		}
		elapsed := now.Sub(pr.startTime).Seconds()
		if elapsed > 0 {
			speed := float64(pr.current) / elapsed / (1 << 20)
			pr.task.SetDescription(fmt.Sprintf("%s (%.1f MB/s)", formatBytes(pr.current), speed))
		}
		pr.lastUpdate = now
	}

	return n, err
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
