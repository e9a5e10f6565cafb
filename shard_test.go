package artimel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListSourceShards(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"corpus_as_df_mp_epoch_10.pkl",
		"corpus_as_df_mp_epoch_2.pkl",
		"corpus_as_df_mp_epoch_0.pkl",
		"training_data_de_0.pkl", // previous output, must be ignored
		"notes.txt",
	}
	for _, name := range names {
		assert.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}

	shards, err := ListSourceShards(testFS(), dir)
	assert.Nil(t, err)

	// Lexicographic order: epoch_10 sorts before epoch_2
	expected := []string{
		filepath.Join(dir, "corpus_as_df_mp_epoch_0.pkl"),
		filepath.Join(dir, "corpus_as_df_mp_epoch_10.pkl"),
		filepath.Join(dir, "corpus_as_df_mp_epoch_2.pkl"),
	}
	assert.Equal(t, expected, shards)
}

func TestOutputShardName(t *testing.T) {
	assert.Equal(t, "test_data_de_0.pkl", OutputShardName(Test, "de", 0))
	assert.Equal(t, "validation_data_en_3.pkl", OutputShardName(Validation, "en", 3))
	assert.Equal(t, "training_data_de_12.pkl", OutputShardName(Training, "de", 12))
}

func TestNextOutputIndex(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"training_data_de_0.pkl",
		"training_data_de_4.pkl",
		"test_data_de_1.pkl",
	} {
		assert.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}

	next, err := NextOutputIndex(testFS(), dir, Training, "de")
	assert.Nil(t, err)
	assert.Equal(t, 5, next)

	next, err = NextOutputIndex(testFS(), dir, Test, "de")
	assert.Nil(t, err)
	assert.Equal(t, 2, next)

	next, err = NextOutputIndex(testFS(), dir, Validation, "de")
	assert.Nil(t, err)
	assert.Equal(t, 0, next)
}

func TestShardRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "training_data_de_0.pkl")

	rows := []Row{
		{
			LexicalWord:        "the",
			CPNorm:             [][]float64{{1, 2}, {3, 4}},
			MelspecRecorded:    [][]float64{{5}},
			MelspecSynthesized: [][]float64{{6}},
			Vector:             []float64{7, 8},
			Origin:             Origin{Shard: "corpus_as_df_mp_epoch_0.pkl", Index: 3},
		},
	}
	assert.Nil(t, WriteShard(testFS(), path, rows))

	loaded, err := ReadShard(testFS(), path)
	assert.Nil(t, err)
	assert.Equal(t, rows, loaded)
}
