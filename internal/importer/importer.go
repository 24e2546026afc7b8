// Package importer feeds .eml files from a local directory through the
// ingestion pipeline, for users who export bank mail instead of connecting
// an account. Imported files move to a processed/ subdirectory.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.io/infrasutra/bankfeed/internal/ingest"
	"github.io/infrasutra/bankfeed/internal/mail"
)

// FileInfo describes one .eml file found in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// Scan returns the .eml files directly inside dir. A missing directory is
// treated as empty.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read import dir: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".eml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, FileInfo{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves an imported file into dir/processed/.
func MarkProcessed(dir, fileName string) error {
	processedDir := filepath.Join(dir, "processed")
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}
	if err := os.Rename(filepath.Join(dir, fileName), filepath.Join(processedDir, fileName)); err != nil {
		return fmt.Errorf("move %s to processed: %w", fileName, err)
	}
	return nil
}

type Importer struct {
	ingestor *ingest.Ingestor
	logger   *slog.Logger
}

func New(ingestor *ingest.Ingestor, logger *slog.Logger) *Importer {
	return &Importer{ingestor: ingestor, logger: logger}
}

// Run imports every .eml file in dir for userID through one ingestion pass.
// The message's Message-Id header becomes the dedupe reference, with the
// file name as fallback, so re-importing the same export is idempotent.
func (imp *Importer) Run(ctx context.Context, userID, dir string) (ingest.Result, error) {
	files, err := Scan(dir)
	if err != nil {
		return ingest.Result{}, err
	}

	var emails []mail.RawEmail
	for _, file := range files {
		raw, err := os.ReadFile(file.Path)
		if err != nil {
			return ingest.Result{}, fmt.Errorf("read %s: %w", file.Name, err)
		}
		reference := mail.MessageID(raw)
		if reference == "" {
			reference = file.Name
		}
		email, err := mail.FromRFC822(reference, raw)
		if err != nil {
			imp.logger.Warn("skip unparseable eml file", "file", file.Name, "error", err)
			continue
		}
		emails = append(emails, email)
	}

	result, err := imp.ingestor.ProcessInbox(ctx, staticProvider(emails), userID)
	if err != nil {
		return ingest.Result{}, err
	}

	for _, file := range files {
		if err := MarkProcessed(dir, file.Name); err != nil {
			imp.logger.Warn("leave file in place", "file", file.Name, "error", err)
		}
	}
	return result, nil
}

type staticProvider []mail.RawEmail

func (p staticProvider) Fetch(context.Context) ([]mail.RawEmail, error) {
	return p, nil
}
