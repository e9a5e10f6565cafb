package artimel

import (
	log "github.com/sirupsen/logrus"

	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// subsetBuffer accumulates routed rows for one subset and flushes them to
// disk in fixed-size output shards. Rows leave the buffer oldest-first, so
// output shard contents preserve arrival order. Output shard indices
// increment monotonically; a shard file is written once and never touched
// again.
type subsetBuffer struct {
	subset    Subset
	language  string
	outputDir string
	shardSize int

	fs        artfs.FileSystem
	rows      []Row
	nextIndex int
}

func newSubsetBuffer(fs artfs.FileSystem, subset Subset, outputDir, language string, shardSize int) *subsetBuffer {
	return &subsetBuffer{
		subset:    subset,
		language:  language,
		outputDir: outputDir,
		shardSize: shardSize,
		fs:        fs,
		rows:      make([]Row, 0, shardSize),
	}
}

func (b *subsetBuffer) append(row Row) {
	b.rows = append(b.rows, row)
}

func (b *subsetBuffer) len() int {
	return len(b.rows)
}

// drain writes full output shards while the buffer holds at least
// shardSize rows, leaving any remainder buffered.
func (b *subsetBuffer) drain() error {
	for len(b.rows) >= b.shardSize {
		if err := b.writeShard(b.rows[:b.shardSize]); err != nil {
			return err
		}
		b.rows = b.rows[b.shardSize:]
		log.Infof("Length of the %s buffer after writing: %d", b.subset, len(b.rows))
	}
	return nil
}

// flush writes the remaining rows as one final, possibly short, shard.
func (b *subsetBuffer) flush() error {
	if len(b.rows) == 0 {
		return nil
	}
	if err := b.writeShard(b.rows); err != nil {
		return err
	}
	b.rows = b.rows[:0]
	return nil
}

func (b *subsetBuffer) writeShard(rows []Row) error {
	name := OutputShardName(b.subset, b.language, b.nextIndex)
	path := b.fs.Join(b.outputDir, name)
	log.Infof("Writing %s file: %s (%d rows)", b.subset, name, len(rows))
	if err := WriteShard(b.fs, path, rows); err != nil {
		return err
	}
	b.nextIndex++
	return nil
}
