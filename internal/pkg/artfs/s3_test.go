package artfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseS3URI(t *testing.T) {
	parsed, err := parseS3URI("s3://corpusbucket/corpus_de/corpus_as_df_mp_epoch_0.pkl")
	assert.Nil(t, err)
	assert.Equal(t, "corpusbucket", parsed.Hostname())
	assert.Equal(t, "corpus_de/corpus_as_df_mp_epoch_0.pkl", parsed.Path)
}

func TestParseS3URIRejectsOtherSchemes(t *testing.T) {
	_, err := parseS3URI("http://bucket/key")
	assert.NotNil(t, err)
}

func TestS3Join(t *testing.T) {
	fs := S3FileSystem{}
	joined := fs.Join("s3://bucket/corpus_de/", "training_data_de_0.pkl")
	assert.Equal(t, "s3://bucket/corpus_de/training_data_de_0.pkl", joined)
}

func TestS3DiskUsageNeverExhausted(t *testing.T) {
	fs := S3FileSystem{}
	usage, err := fs.DiskUsage("s3://bucket/corpus_de")
	assert.Nil(t, err)
	assert.True(t, usage.Free > 25<<30)
}
