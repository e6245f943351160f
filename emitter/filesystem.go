package emitter

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chainforensics/sigharvest/logger"

	"github.com/pkg/errors"
)

// DefaultDirMode is the permission used when the output directory has to be
// created.
const DefaultDirMode = os.FileMode(0755)

// Filesystem is a Sink that writes records to a temporary file in a caller
// specified directory, and renames that file to its final, height-tagged
// name on Complete. This is the same ensure-directory-then-atomic-rename
// idiom the teacher's storage.FilesystemStorage uses for Write/Copy, adapted
// here to a single long-lived append-only writer rather than one-shot blobs.
type Filesystem struct {
	dir string

	lock   sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewFilesystem opens (creating if necessary) the output directory and the
// temporary records file within it. Per spec.md's error policy, a directory
// that cannot be created aborts startup.
func NewFilesystem(ctx context.Context, dir string) (*Filesystem, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirMode); err != nil {
			return nil, errors.Wrap(err, "create output directory")
		}
	}

	path := filepath.Join(dir, tempFileName)
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}

	return &Filesystem{
		dir:    dir,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Append writes one record's line to the buffered writer.
func (f *Filesystem) Append(ctx context.Context, record Record) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if _, err := f.writer.WriteString(record.Line()); err != nil {
		return errors.Wrap(err, "write record")
	}
	return nil
}

// Flush pushes buffered bytes to the underlying file. Best-effort during
// processing, per spec.md §4.8.
func (f *Filesystem) Flush(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := f.writer.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	return nil
}

// Complete flushes and closes the temp file, then renames it to its final,
// height-tagged name, atomically publishing the batch.
func (f *Filesystem) Complete(ctx context.Context, startHeight, endHeight uint64) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := f.writer.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	if err := f.file.Close(); err != nil {
		return errors.Wrap(err, "close")
	}

	oldPath := filepath.Join(f.dir, tempFileName)
	newName := fmt.Sprintf("signatures-%d-%d.csv", startHeight, endHeight)
	newPath := filepath.Join(f.dir, newName)

	if err := os.Rename(oldPath, newPath); err != nil {
		return errors.Wrap(err, "rename")
	}

	logger.Info(ctx, "Published %s", newName)
	return nil
}
