package artimel

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// ResumeState is the snapshot a partition run persists so a later run can
// continue where it stopped: the number of source shards fully processed
// and the quota counters as of that point. It is written on a fixed shard
// cadence and before a low-disk-space abort. A crash between checkpoints
// loses the buffering of the shards since the last snapshot; those shards
// are simply reprocessed, never merged.
type ResumeState struct {
	ShardsProcessed int       `msgpack:"shards_processed"`
	Quotas          *QuotaSet `msgpack:"quotas"`
}

// ResumeStateName names the resume snapshot file for a language.
func ResumeStateName(language string) string {
	return fmt.Sprintf("partition_resume_%s.pkl", language)
}

// SaveResumeState persists the snapshot under dir.
func SaveResumeState(fs artfs.FileSystem, dir, language string, state *ResumeState) error {
	path := fs.Join(dir, ResumeStateName(language))
	writer, err := fs.OpenWriter(path)
	if err != nil {
		return errors.Wrapf(err, "opening resume state %s", path)
	}

	if err := msgpack.NewEncoder(writer).Encode(state); err != nil {
		writer.Close()
		return errors.Wrapf(err, "encoding resume state %s", path)
	}
	return writer.Close()
}

// LoadResumeState reads a previously persisted snapshot from dir.
func LoadResumeState(fs artfs.FileSystem, dir, language string) (*ResumeState, error) {
	path := fs.Join(dir, ResumeStateName(language))
	reader, err := fs.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening resume state %s", path)
	}
	defer reader.Close()

	state := &ResumeState{}
	if err := msgpack.NewDecoder(reader).Decode(state); err != nil {
		return nil, errors.Wrapf(err, "decoding resume state %s", path)
	}
	return state, nil
}
