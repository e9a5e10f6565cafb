package artimel

import (
	"path"
	"runtime"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// ErrInsufficientDiskSpace aborts a partition run whose output volume has
// dropped below the free-space floor. The run's quota state is persisted
// before the abort, so the next invocation can resume with the appropriate
// skip index.
var ErrInsufficientDiskSpace = errors.New("insufficient disk space")

// PartitionStats counts the fate of every source row of a run. Rows are
// either routed to exactly one subset or discarded for exactly one reason,
// so RowsRead == Routed[...] + Mismatched + Duplicates always holds.
type PartitionStats struct {
	RowsRead   int
	Mismatched int
	Duplicates int
	Routed     [3]int
}

// Partitioner streams source corpus shards and splits their rows into
// test/validation/training output shards according to a QuotaSet.
// A Partitioner owns its quota state and buffers for the duration of one
// run; it is not safe for concurrent invocation against the same output
// directory, and callers must serialize runs.
type Partitioner struct {
	DataPath        string
	OutputPath      string
	Language        string
	ShardSize       int
	SkipShards      int
	MinFreeBytes    int64
	CheckpointEvery int

	fs         artfs.FileSystem
	quotas     *QuotaSet
	duplicates *CorrectionList
	buffers    [3]*subsetBuffer
	stats      PartitionStats
}

// NewPartitioner creates a partition run over the given quota state.
// The quotas are mutated in place as rows are consumed.
func NewPartitioner(fs artfs.FileSystem, quotas *QuotaSet, duplicates *CorrectionList) *Partitioner {
	return &Partitioner{
		ShardSize:       50000,
		MinFreeBytes:    25 << 30,
		CheckpointEvery: 10,
		fs:              fs,
		quotas:          quotas,
		duplicates:      duplicates,
	}
}

// Stats returns the row accounting of the run so far.
func (p *Partitioner) Stats() PartitionStats {
	return p.stats
}

// Run executes the partition pass: list source shards in lexicographic
// order, fast-forward past the first SkipShards of them, then stream the
// rest one shard at a time. Given identical inputs, two runs produce
// byte-identical output shards.
func (p *Partitioner) Run() error {
	if p.OutputPath == "" {
		p.OutputPath = p.DataPath
	}
	for _, subset := range Subsets {
		p.buffers[subset] = newSubsetBuffer(p.fs, subset, p.OutputPath, p.Language, p.ShardSize)
		if p.SkipShards > 0 {
			// Resumed runs append after the shards a prior run wrote.
			next, err := NextOutputIndex(p.fs, p.OutputPath, subset, p.Language)
			if err != nil {
				return err
			}
			p.buffers[subset].nextIndex = next
		}
	}

	shards, err := ListSourceShards(p.fs, p.DataPath)
	if err != nil {
		return err
	}
	log.Infof("Found %d source shards in %s", len(shards), p.DataPath)

	bar := pb.New(len(shards)).Prefix("Partition").Start()
	skip := p.SkipShards
	processed := p.SkipShards

	for _, shard := range shards {
		if skip > 0 {
			skip--
			log.Infof("Skipping %s", shard)
			bar.Increment()
			continue
		}

		if err := p.checkDiskSpace(processed); err != nil {
			bar.Finish()
			return err
		}

		if err := p.processShard(shard); err != nil {
			bar.Finish()
			return err
		}
		processed++
		bar.Increment()

		if p.CheckpointEvery > 0 && processed%p.CheckpointEvery == 0 {
			if err := p.checkpoint(processed); err != nil {
				bar.Finish()
				return err
			}
		}
	}
	bar.Finish()

	for _, subset := range Subsets {
		if err := p.buffers[subset].flush(); err != nil {
			return err
		}
	}
	if err := p.checkpoint(processed); err != nil {
		return err
	}

	log.Infof("Partitioning completed: %d rows read, %d test, %d validation, %d training, %d mismatched, %d duplicates",
		p.stats.RowsRead, p.stats.Routed[Test], p.stats.Routed[Validation],
		p.stats.Routed[Training], p.stats.Mismatched, p.stats.Duplicates)
	return nil
}

func (p *Partitioner) processShard(shardPath string) error {
	log.Infof("Processing %s", shardPath)
	rows, err := ReadSourceShard(p.fs, shardPath)
	if err != nil {
		return err
	}
	shardID := path.Base(shardPath)

	for i, row := range rows {
		if i%1000 == 0 {
			log.Infof("Processing row %d of %d", i, len(rows))
		}
		p.stats.RowsRead++

		cleanedWord := NormalizeWord(row.LexicalWord)
		cleanedMFAWord := NormalizeWord(row.MFAWord)
		if cleanedWord != cleanedMFAWord {
			log.Warnf("Word %q is not the same as the mfa_word %q: no match for %q and %q",
				row.LexicalWord, row.MFAWord, cleanedWord, cleanedMFAWord)
			p.stats.Mismatched++
			continue
		}

		if p.duplicates.Matches(cleanedWord, i) {
			log.Infof("Skipping row %d with duplicate vector %q", i, row.LexicalWord)
			p.stats.Duplicates++
			continue
		}

		subset, err := p.quotas.Route(cleanedWord)
		if err != nil {
			return errors.Wrapf(err, "routing row %d of %s", i, shardID)
		}
		p.stats.Routed[subset]++
		p.buffers[subset].append(Row{
			LexicalWord:        row.LexicalWord,
			CPNorm:             row.CPNorm,
			MelspecRecorded:    row.MelspecRecorded,
			MelspecSynthesized: row.MelspecSynthesized,
			Vector:             row.Vector,
			Origin:             Origin{Shard: shardID, Index: i},
		})
	}

	// Shard files are large relative to memory; drop the loaded rows
	// before touching the next shard.
	rows = nil
	runtime.GC()

	for _, subset := range Subsets {
		log.Infof("%s buffer length: %d", p.buffers[subset].subset, p.buffers[subset].len())
		if err := p.buffers[subset].drain(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Partitioner) checkDiskSpace(processed int) error {
	usage, err := p.fs.DiskUsage(p.OutputPath)
	if err != nil {
		return errors.Wrapf(err, "checking disk usage of %s", p.OutputPath)
	}

	log.Infof("Total: %s", humanize.IBytes(uint64(usage.Total)))
	log.Infof("Used: %s", humanize.IBytes(uint64(usage.Used)))
	log.Infof("Free: %s", humanize.IBytes(uint64(usage.Free)))

	if usage.Free < p.MinFreeBytes {
		log.Errorf("Free space %s is below the %s floor, persisting quota state and aborting",
			humanize.IBytes(uint64(usage.Free)), humanize.IBytes(uint64(p.MinFreeBytes)))
		if err := p.checkpoint(processed); err != nil {
			return err
		}
		return ErrInsufficientDiskSpace
	}
	return nil
}

func (p *Partitioner) checkpoint(processed int) error {
	state := &ResumeState{
		ShardsProcessed: processed,
		Quotas:          p.quotas,
	}
	log.Infof("Checkpointing quota state after %d shards", processed)
	return SaveResumeState(p.fs, p.OutputPath, p.Language, state)
}
