package eastmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/ports"
)

// FileSourceName identifies the file source inside the registry.
const FileSourceName = "file"

// FileSource replays a saved API response (or a bare JSON array of rows) from disk.
type FileSource struct {
	path string
}

var _ ports.ReportSource = (*FileSource)(nil)

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string {
	return FileSourceName
}

// Fetch re-reads the file on every call.
func (f *FileSource) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	if raw[0] == '[' {
		var rows []domain.RawRecord
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.path, err)
		}
		return rows, nil
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if resp.Result == nil {
		return nil, nil
	}
	return resp.Result.Data, nil
}
