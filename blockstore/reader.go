// Package blockstore is the thin adapter between the CLI and the already
// decoded block stream the extraction engine consumes. Raw on-disk block
// file parsing (the bitcoind block file format, P2P wire framing) is an
// external collaborator's job, out of scope for this engine; this package
// only walks a directory of already-decoded, height-ordered block files in
// the layout wire.Block.Serialize writes, the same way a production
// deployment would sit downstream of a real parser.
package blockstore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/chainforensics/sigharvest/wire"

	"github.com/pkg/errors"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)\.blk$`)

// entry pairs a block file's path with the height its name encodes.
type entry struct {
	height uint64
	path   string
}

// Reader iterates <height>.blk files within a directory in ascending height
// order.
type Reader struct {
	entries []entry
	next    int
}

// NewReader lists dir for files named "<height>.blk" and sorts them by
// height. An empty or missing directory is not an error; Next simply
// reports no more blocks.
func NewReader(dir string) (*Reader, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Reader{}, nil
		}
		return nil, errors.Wrap(err, "read directory")
	}

	var entries []entry
	for _, f := range files {
		if f.IsDir() {
			continue
		}

		match := fileNamePattern.FindStringSubmatch(f.Name())
		if match == nil {
			continue
		}

		height, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}

		entries = append(entries, entry{height: height, path: filepath.Join(dir, f.Name())})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].height < entries[j].height })

	return &Reader{entries: entries}, nil
}

// StartHeight returns the height of the first block Next will return, or 0
// if the store is empty.
func (r *Reader) StartHeight() uint64 {
	if len(r.entries) == 0 {
		return 0
	}
	return r.entries[0].height
}

// Next returns the next block in height order. ok is false once every block
// file has been returned.
func (r *Reader) Next(ctx context.Context) (*wire.Block, uint64, bool, error) {
	if r.next >= len(r.entries) {
		return nil, 0, false, nil
	}

	e := r.entries[r.next]
	r.next++

	file, err := os.Open(e.path)
	if err != nil {
		return nil, 0, false, errors.Wrapf(err, "open %s", e.path)
	}
	defer file.Close()

	block := &wire.Block{}
	if err := block.Deserialize(file); err != nil {
		return nil, 0, false, errors.Wrapf(err, "deserialize %s", e.path)
	}

	return block, e.height, true, nil
}
