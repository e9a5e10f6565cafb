package artimel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResumeStateRoundtrip(t *testing.T) {
	dir := t.TempDir()

	state := &ResumeState{
		ShardsProcessed: 7,
		Quotas: &QuotaSet{
			Test:       WordCount{"the": 1},
			Validation: WordCount{"cat": 2},
			Training:   WordCount{"the": 3, "dog": 4},
		},
	}
	err := SaveResumeState(testFS(), dir, "de", state)
	assert.Nil(t, err)

	loaded, err := LoadResumeState(testFS(), dir, "de")
	assert.Nil(t, err)
	assert.Equal(t, state, loaded)
}

func TestLoadResumeStateMissing(t *testing.T) {
	_, err := LoadResumeState(testFS(), t.TempDir(), "de")
	assert.NotNil(t, err)
}
