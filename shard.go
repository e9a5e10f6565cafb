package artimel

import (
	"fmt"
	"path"
	"regexp"
	"sort"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// sourceShardPattern matches the corpus shard files emitted by the
// upstream alignment step.
var sourceShardPattern = regexp.MustCompile(`^corpus_as_df_mp_epoch_\d+\.pkl$`)

// Origin identifies where a row came from: the base name of its source
// shard file and its row index within that shard.
type Origin struct {
	Shard string `msgpack:"shard"`
	Index int    `msgpack:"index"`
}

// SourceRow is one aligned word occurrence as produced upstream. MFAWord is
// the independently-recorded alignment word used as a data-quality
// cross-check; it is dropped from the partitioned output.
type SourceRow struct {
	LexicalWord        string      `msgpack:"lexical_word"`
	MFAWord            string      `msgpack:"mfa_word"`
	CPNorm             [][]float64 `msgpack:"cp_norm"`
	MelspecRecorded    [][]float64 `msgpack:"melspec_norm_recorded"`
	MelspecSynthesized [][]float64 `msgpack:"melspec_norm_synthesized"`
	Vector             []float64   `msgpack:"vector"`
}

// Row is one partitioned corpus row. Rows are immutable once written: a
// row belongs to exactly one output shard of exactly one subset, and its
// Origin uniquely identifies the source occurrence it was read from.
type Row struct {
	LexicalWord        string      `msgpack:"lexical_word"`
	CPNorm             [][]float64 `msgpack:"cp_norm"`
	MelspecRecorded    [][]float64 `msgpack:"melspec_norm_recorded"`
	MelspecSynthesized [][]float64 `msgpack:"melspec_norm_synthesized"`
	Vector             []float64   `msgpack:"vector"`
	Origin             Origin      `msgpack:"origin"`
}

// ListSourceShards returns the corpus shard files under dataPath in
// lexicographic order. The ordering fixes the processing order and with it
// the row-to-subset assignment, so it must be stable across runs.
func ListSourceShards(fs artfs.FileSystem, dataPath string) ([]string, error) {
	files, err := fs.ListFiles(fs.Join(dataPath, "*.pkl"))
	if err != nil {
		return nil, errors.Wrapf(err, "listing source shards in %s", dataPath)
	}

	shards := make([]string, 0, len(files))
	for _, file := range files {
		if sourceShardPattern.MatchString(path.Base(file.Name)) {
			shards = append(shards, file.Name)
		}
	}
	sort.Strings(shards)
	return shards, nil
}

// OutputShardName names the index-th output shard of a subset, e.g.
// "training_data_de_3.pkl".
func OutputShardName(subset Subset, language string, index int) string {
	return fmt.Sprintf("%s_data_%s_%d.pkl", subset, language, index)
}

// NextOutputIndex returns the shard index following the highest one already
// written for a subset, so a resumed run appends instead of overwriting.
// An empty output directory yields 0.
func NextOutputIndex(fs artfs.FileSystem, dir string, subset Subset, language string) (int, error) {
	files, err := fs.ListFiles(fs.Join(dir, fmt.Sprintf("%s_data_%s_*.pkl", subset, language)))
	if err != nil {
		return 0, errors.Wrapf(err, "listing %s output shards in %s", subset, dir)
	}

	next := 0
	prefix := fmt.Sprintf("%s_data_%s_", subset, language)
	for _, file := range files {
		base := path.Base(file.Name)
		var index int
		if _, err := fmt.Sscanf(base, prefix+"%d.pkl", &index); err != nil {
			continue
		}
		if index+1 > next {
			next = index + 1
		}
	}
	return next, nil
}

// ReadSourceShard decodes one source shard into its rows.
func ReadSourceShard(fs artfs.FileSystem, shardPath string) ([]SourceRow, error) {
	reader, err := fs.OpenReader(shardPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening source shard %s", shardPath)
	}
	defer reader.Close()

	var rows []SourceRow
	if err := msgpack.NewDecoder(reader).Decode(&rows); err != nil {
		return nil, errors.Wrapf(err, "decoding source shard %s", shardPath)
	}
	return rows, nil
}

// WriteShard encodes rows as one output shard. Output shards are written
// once and never modified.
func WriteShard(fs artfs.FileSystem, shardPath string, rows []Row) error {
	writer, err := fs.OpenWriter(shardPath)
	if err != nil {
		return errors.Wrapf(err, "opening output shard %s", shardPath)
	}

	if err := msgpack.NewEncoder(writer).Encode(rows); err != nil {
		writer.Close()
		return errors.Wrapf(err, "encoding output shard %s", shardPath)
	}
	return writer.Close()
}

// ReadShard decodes one partitioned output shard.
func ReadShard(fs artfs.FileSystem, shardPath string) ([]Row, error) {
	reader, err := fs.OpenReader(shardPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening shard %s", shardPath)
	}
	defer reader.Close()

	var rows []Row
	if err := msgpack.NewDecoder(reader).Decode(&rows); err != nil {
		return nil, errors.Wrapf(err, "decoding shard %s", shardPath)
	}
	return rows, nil
}
