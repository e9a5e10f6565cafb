package forward

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// Checkpoint is everything a run needs to resume mid-epoch: the model
// weights, the cumulative validation-loss history, the epoch it was taken
// in and the in-epoch shard skip index.
type Checkpoint struct {
	Weights          map[string][]float64 `msgpack:"weights"`
	ValidationLosses []float64            `msgpack:"validation_losses"`
	Epoch            int                  `msgpack:"epoch"`
	SkipIndex        int                  `msgpack:"skip_index"`
}

// checkpointDir names the directory of a (language, epoch) checkpoint,
// e.g. "models/forward_model_de_3".
func checkpointDir(fs artfs.FileSystem, modelDir, language string, epoch int) string {
	return fs.Join(modelDir, fmt.Sprintf("forward_model_%s_%d", language, epoch))
}

// SaveCheckpoint writes the checkpoint files under dir/forward_model_<lang>_<epoch>/.
func SaveCheckpoint(fs artfs.FileSystem, modelDir, language string, cp *Checkpoint) error {
	dir := checkpointDir(fs, modelDir, language, cp.Epoch)

	files := map[string]interface{}{
		fmt.Sprintf("forward_model_%s_%d.pkl", language, cp.Epoch): cp.Weights,
		fmt.Sprintf("validation_losses_%s.pkl", language):          cp.ValidationLosses,
		fmt.Sprintf("epoch_%s.pkl", language):                      cp.Epoch,
		fmt.Sprintf("skip_index_%s.pkl", language):                 cp.SkipIndex,
	}
	for name, payload := range files {
		if err := writeMsgpack(fs, fs.Join(dir, name), payload); err != nil {
			return err
		}
	}

	log.Info("Saved model, validation losses and epoch")
	return nil
}

// LoadCheckpoint reads a (language, epoch) checkpoint back.
func LoadCheckpoint(fs artfs.FileSystem, modelDir, language string, epoch int) (*Checkpoint, error) {
	dir := checkpointDir(fs, modelDir, language, epoch)

	cp := &Checkpoint{}
	if err := readMsgpack(fs, fs.Join(dir, fmt.Sprintf("forward_model_%s_%d.pkl", language, epoch)), &cp.Weights); err != nil {
		return nil, err
	}
	if err := readMsgpack(fs, fs.Join(dir, fmt.Sprintf("validation_losses_%s.pkl", language)), &cp.ValidationLosses); err != nil {
		return nil, err
	}
	if err := readMsgpack(fs, fs.Join(dir, fmt.Sprintf("epoch_%s.pkl", language)), &cp.Epoch); err != nil {
		return nil, err
	}
	if err := readMsgpack(fs, fs.Join(dir, fmt.Sprintf("skip_index_%s.pkl", language)), &cp.SkipIndex); err != nil {
		return nil, err
	}
	return cp, nil
}

func writeMsgpack(fs artfs.FileSystem, path string, payload interface{}) error {
	writer, err := fs.OpenWriter(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	if err := msgpack.NewEncoder(writer).Encode(payload); err != nil {
		writer.Close()
		return errors.Wrapf(err, "encoding %s", path)
	}
	return writer.Close()
}

func readMsgpack(fs artfs.FileSystem, path string, target interface{}) error {
	reader, err := fs.OpenReader(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer reader.Close()

	if err := msgpack.NewDecoder(reader).Decode(target); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}
