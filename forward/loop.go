package forward

import (
	"fmt"
	"math/rand"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/stat"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/phonlab/artimel"
	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// Trainer runs epochs of forward-model training over partitioned training
// shards, with periodic validation passes and checkpoints. Shards are
// processed strictly one at a time; a shard's dataset is released before
// the next shard is loaded.
type Trainer struct {
	DataPath      string
	Language      string
	ModelDir      string
	BatchSize     int
	Epochs        int
	StartEpoch    int
	SkipIndex     int
	ValidateEvery int
	SaveEvery     int
	Seed          int64

	fs        artfs.FileSystem
	model     Model
	criterion Criterion
	optimizer *Adam

	validationLosses []float64
}

// NewTrainer wires a model, criterion and optimizer into a training run.
func NewTrainer(fs artfs.FileSystem, model Model, criterion Criterion, optimizer *Adam) *Trainer {
	return &Trainer{
		BatchSize:     8,
		Epochs:        10,
		ValidateEvery: 1,
		SaveEvery:     8,
		ModelDir:      "models",
		Seed:          1,
		fs:            fs,
		model:         model,
		criterion:     criterion,
		optimizer:     optimizer,
	}
}

// listShards returns shard files under DataPath whose base name starts
// with prefix, sorted for a stable starting order.
func (t *Trainer) listShards(prefix string) ([]string, error) {
	files, err := t.fs.ListFiles(t.fs.Join(t.DataPath, "*.pkl"))
	if err != nil {
		return nil, err
	}

	shards := make([]string, 0, len(files))
	for _, file := range files {
		base := path.Base(file.Name)
		if strings.HasPrefix(base, prefix) && strings.HasSuffix(base, ".pkl") {
			shards = append(shards, file.Name)
		}
	}
	sort.Strings(shards)
	return shards, nil
}

// Train runs the configured number of epochs. The first epoch skips the
// first SkipIndex training shards (resuming a mid-epoch interruption);
// later epochs see every shard. Shard order is reshuffled each epoch from
// the run's seed, so a resumed run revisits shards in the same order.
func (t *Trainer) Train() error {
	trainingShards, err := t.listShards(fmt.Sprintf("training_data_%s_", t.Language))
	if err != nil {
		return err
	}
	validationShards, err := t.listShards(fmt.Sprintf("validation_data_%s_", t.Language))
	if err != nil {
		return err
	}
	log.Infof("Found %d training shards and %d validation shards",
		len(trainingShards), len(validationShards))
	log.Infof("Trainable parameters in model: %d", t.model.NumParams())

	rng := rand.New(rand.NewSource(t.Seed))
	skipIndex := t.SkipIndex

	for epoch := t.StartEpoch; epoch < t.Epochs; epoch++ {
		rng.Shuffle(len(trainingShards), func(i, j int) {
			trainingShards[i], trainingShards[j] = trainingShards[j], trainingShards[i]
		})

		bar := pb.New(len(trainingShards)).Prefix(fmt.Sprintf("Epoch %d", epoch)).Start()
		for i, shard := range trainingShards {
			if i < skipIndex {
				log.Infof("Skipping %s", shard)
				bar.Increment()
				continue
			}
			if err := t.trainShard(shard); err != nil {
				bar.Finish()
				return err
			}
			bar.Increment()
			runtime.GC()
		}
		bar.Finish()

		if t.ValidateEvery > 0 && epoch%t.ValidateEvery == 0 {
			meanLoss, stdLoss, err := t.validateAll(validationShards)
			if err != nil {
				return err
			}
			log.Infof("Mean validation loss: %f, Std loss: %f", meanLoss, stdLoss)
			t.validationLosses = append(t.validationLosses, meanLoss)
		}

		if (t.SaveEvery > 0 && epoch%t.SaveEvery == 0) || epoch == t.Epochs-1 {
			checkpoint := &Checkpoint{
				Weights:          t.model.State(),
				ValidationLosses: t.validationLosses,
				Epoch:            epoch,
				SkipIndex:        skipIndex,
			}
			if err := SaveCheckpoint(t.fs, t.ModelDir, t.Language, checkpoint); err != nil {
				return err
			}
		}
		skipIndex = 0
	}

	log.Info("Finished training")
	return nil
}

// trainShard runs one optimization pass over a single training shard.
func (t *Trainer) trainShard(shardPath string) error {
	dataset, err := LoadDataset(t.fs, shardPath)
	if err != nil {
		return err
	}
	sampler := NewBatchSampler(dataset.SequenceLengths(), t.BatchSize, false)

	iter := sampler.Iter()
	for indices, ok := iter.Next(); ok; indices, ok = iter.Next() {
		batch, err := Collate(dataset, indices)
		if err != nil {
			return err
		}

		t.model.ZeroGrad()
		predicted, err := t.model.Forward(batch.CP)
		if err != nil {
			return err
		}
		loss, err := t.criterion.Loss(predicted, batch.Melspec)
		if err != nil {
			return err
		}
		log.Debugf("Batch loss: %f", loss)

		grad, err := t.criterion.Grad(predicted, batch.Melspec)
		if err != nil {
			return err
		}
		if err := t.model.Backward(grad); err != nil {
			return err
		}
		if err := t.optimizer.Step(t.model.Params(), t.model.Grads()); err != nil {
			return err
		}
	}
	return nil
}

// validateShard scores one validation shard without updating weights.
func (t *Trainer) validateShard(shardPath string) (meanLoss, stdLoss float64, losses []float64, err error) {
	dataset, err := LoadDataset(t.fs, shardPath)
	if err != nil {
		return 0, 0, nil, err
	}
	sampler := NewBatchSampler(dataset.SequenceLengths(), t.BatchSize, false)

	iter := sampler.Iter()
	for indices, ok := iter.Next(); ok; indices, ok = iter.Next() {
		batch, err := Collate(dataset, indices)
		if err != nil {
			return 0, 0, nil, err
		}

		predicted, err := t.model.Forward(batch.CP)
		if err != nil {
			return 0, 0, nil, err
		}
		loss, err := t.criterion.Loss(predicted, batch.Melspec)
		if err != nil {
			return 0, 0, nil, err
		}
		losses = append(losses, loss)
	}

	if len(losses) == 0 {
		return 0, 0, nil, nil
	}
	return stat.Mean(losses, nil), stat.StdDev(losses, nil), losses, nil
}

// validateAll scores every validation shard and aggregates the per-batch
// losses into one mean/std.
func (t *Trainer) validateAll(shards []string) (float64, float64, error) {
	totalLosses := make([]float64, 0)
	for _, shard := range shards {
		meanLoss, stdLoss, losses, err := t.validateShard(shard)
		if err != nil {
			return 0, 0, err
		}
		log.Infof("Mean loss: %f, Std loss: %f", meanLoss, stdLoss)
		totalLosses = append(totalLosses, losses...)
		runtime.GC()
	}

	if len(totalLosses) == 0 {
		return 0, 0, nil
	}
	return stat.Mean(totalLosses, nil), stat.StdDev(totalLosses, nil), nil
}

// Main starts a training run from the command line.
func (t *Trainer) Main() {
	artimel.LoadConfig()

	flags := flag.NewFlagSet("train", flag.ExitOnError)
	dataPath := flags.String("data_path", "", "Path to the partitioned shard directory (without language suffix)")
	skipIndex := flags.Int("skip_index", 0, "Training shard index to resume the first epoch from")
	startEpoch := flags.Int("start_epoch", 0, "Epoch to start from")
	language := flags.String("language", viper.GetString("language"), "Language of the data")
	optimizerName := flags.String("optimizer", viper.GetString("optimizer"), "Optimizer to use")
	criterionName := flags.String("criterion", viper.GetString("criterion"), "Criterion to use")
	batchSize := flags.Int("batch_size", viper.GetInt("batch_size"), "Batch size")
	lr := flags.Float64("lr", viper.GetFloat64("learning_rate"), "Learning rate")
	epochs := flags.Int("epochs", viper.GetInt("epochs"), "Number of epochs")
	validateEvery := flags.Int("validate_every", viper.GetInt("validate_every"), "Validate every n epochs")
	saveEvery := flags.Int("save_every", viper.GetInt("save_every"), "Save every n epochs")
	debug := flags.Bool("debug", false, "Enable debug logging")
	flags.Parse(os.Args[1:])

	if *debug {
		log.SetLevel(log.DebugLevel)
	}
	if *optimizerName != "adam" {
		log.Fatalf("Optimizer %q not supported", *optimizerName)
	}
	if *criterionName != "rmse" {
		log.Fatalf("Criterion %q not supported", *criterionName)
	}
	if *dataPath == "" {
		log.Fatal("No data path!")
	}

	t.DataPath = fmt.Sprintf("%s_%s", *dataPath, *language)
	t.Language = *language
	if dir := viper.GetString("model_dir"); dir != "" {
		t.ModelDir = dir
	}
	t.SkipIndex = *skipIndex
	t.StartEpoch = *startEpoch
	t.BatchSize = *batchSize
	t.Epochs = *epochs
	t.ValidateEvery = *validateEvery
	t.SaveEvery = *saveEvery

	if t.fs == nil {
		t.fs = artfs.InferFilesystem(t.DataPath)
	}
	t.optimizer = NewAdam(*lr)
	t.criterion = NewRMSELoss()
	if t.model == nil {
		t.model = NewLinearForwardModel(rand.New(rand.NewSource(t.Seed)))
	}

	if err := t.Train(); err != nil {
		log.Fatal(err)
	}
}
