package artimel

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// Driver controls the execution of a corpus partition run.
type Driver struct {
	config *config
	fs     artfs.FileSystem
}

// config configures a Driver's partition run
type config struct {
	DataPath        string
	Language        string
	SkipIndex       int
	SplitWords      bool
	ShardSize       int
	MinFreeBytes    int64
	CheckpointEvery int
}

func newConfig() *config {
	LoadConfig() // Load viper config from settings file(s) and environment
	return &config{
		Language:        viper.GetString("language"),
		ShardSize:       viper.GetInt("data_size"),
		MinFreeBytes:    viper.GetInt64("min_free_space"),
		CheckpointEvery: viper.GetInt("checkpoint_every"),
	}
}

// Option allows configuration of a Driver
type Option func(*config)

// NewDriver creates a new Driver with the provided optional configuration
func NewDriver(options ...Option) *Driver {
	d := &Driver{}

	c := newConfig()
	for _, f := range options {
		f(c)
	}

	d.config = c
	log.Debugf("Loaded config: %#v", c)

	return d
}

// WithDataPath sets the corpus directory of the Driver
func WithDataPath(path string) Option {
	return func(c *config) {
		c.DataPath = path
	}
}

// WithLanguage sets the corpus language of the Driver
func WithLanguage(language string) Option {
	return func(c *config) {
		c.Language = language
	}
}

// WithShardSize sets the output shard row count of the Driver
func WithShardSize(size int) Option {
	return func(c *config) {
		c.ShardSize = size
	}
}

// WithSkipIndex sets the number of source shards to fast-forward past
func WithSkipIndex(skip int) Option {
	return func(c *config) {
		c.SkipIndex = skip
	}
}

// WithSplitWords makes the run recompute quotas from the raw word counter
// before partitioning, instead of loading previously persisted quotas.
func WithSplitWords(split bool) Option {
	return func(c *config) {
		c.SplitWords = split
	}
}

// run executes the partition pass described by the Driver's config.
func (d *Driver) run() error {
	c := d.config
	if d.fs == nil {
		d.fs = artfs.InferFilesystem(c.DataPath)
	}

	incongruent, err := LoadCorrectionList(d.fs, fmt.Sprintf("incongruent_words_%s.csv", c.Language))
	if err != nil {
		return err
	}
	duplicates, err := LoadCorrectionList(d.fs, fmt.Sprintf("dublicate_vectors_%s.csv", c.Language))
	if err != nil {
		return err
	}

	var quotas *QuotaSet
	switch {
	case c.SplitWords:
		words, err := LoadWordCount(d.fs, fmt.Sprintf("word_counter_%s.pkl", c.Language))
		if err != nil {
			return err
		}
		quotas, err = AllocateQuotas(words, incongruent, duplicates)
		if err != nil {
			return err
		}
		if err := quotas.Save(d.fs, ".", c.Language); err != nil {
			return err
		}
	case c.SkipIndex > 0:
		state, err := LoadResumeState(d.fs, c.DataPath, c.Language)
		if err != nil {
			return errors.Wrap(err, "resuming requires a persisted quota checkpoint")
		}
		if state.ShardsProcessed != c.SkipIndex {
			log.Warnf("Resume state was written after %d shards but skip index is %d",
				state.ShardsProcessed, c.SkipIndex)
		}
		quotas = state.Quotas
	default:
		quotas, err = LoadQuotaSet(d.fs, ".", c.Language)
		if err != nil {
			return err
		}
	}

	partitioner := NewPartitioner(d.fs, quotas, duplicates)
	partitioner.DataPath = c.DataPath
	partitioner.Language = c.Language
	partitioner.ShardSize = c.ShardSize
	partitioner.SkipShards = c.SkipIndex
	partitioner.MinFreeBytes = c.MinFreeBytes
	partitioner.CheckpointEvery = c.CheckpointEvery

	return partitioner.Run()
}

var (
	dataPathFlag   = flag.String("data_path", "", "Path to the corpus directory (without language suffix)")
	skipIndexFlag  = flag.Int("skip_index", 0, "Number of source shards to skip")
	splitWordsFlag = flag.Bool("split_words", false, "Recompute word quotas before partitioning")
	languageFlag   = flag.String("language", "", "Language of the corpus")
	dataSizeFlag   = flag.Int("data_size", 0, "Rows per output shard")
	debugFlag      = flag.Bool("debug", false, "Enable debug logging")
)

// Main starts the Driver from the command line.
func (d *Driver) Main() {
	flag.Parse()

	if *debugFlag {
		log.SetLevel(log.DebugLevel)
	}
	if *languageFlag != "" {
		d.config.Language = *languageFlag
	}
	if *dataSizeFlag > 0 {
		d.config.ShardSize = *dataSizeFlag
	}
	d.config.SkipIndex = *skipIndexFlag
	d.config.SplitWords = *splitWordsFlag
	if *dataPathFlag != "" {
		d.config.DataPath = fmt.Sprintf("%s_%s", *dataPathFlag, d.config.Language)
	}
	if d.config.DataPath == "" {
		log.Error("No data path!")
		os.Exit(1)
	}

	err := d.run()
	if errors.Is(err, ErrInsufficientDiskSpace) {
		log.Error("Run aborted on low disk space; resume with --skip_index once space is available")
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Data splitting completed successfully.")
}
