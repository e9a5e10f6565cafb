package artimel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func noCorrections() *CorrectionList {
	return NewCorrectionList()
}

func TestAllocateQuotas(t *testing.T) {
	var quotaTests = []struct {
		count      int
		test       int
		validation int
		training   int
	}{
		{1, 1, 0, 0},
		{2, 1, 1, 0},
		{3, 1, 1, 1},
		{10, 1, 1, 8},
		{11, 2, 2, 7},
		{100, 10, 10, 80},
		{95, 10, 10, 75},
	}

	for _, test := range quotaTests {
		quotas, err := AllocateQuotas(WordCount{"word": test.count}, noCorrections(), noCorrections())
		assert.Nil(t, err)

		assert.Equal(t, test.test, quotas.Test["word"], "count %d", test.count)
		assert.Equal(t, test.validation, quotas.Validation["word"], "count %d", test.count)
		assert.Equal(t, test.training, quotas.Training["word"], "count %d", test.count)
	}
}

func TestAllocateQuotasSumInvariant(t *testing.T) {
	for count := 1; count <= 200; count++ {
		quotas, err := AllocateQuotas(WordCount{"word": count}, noCorrections(), noCorrections())
		assert.Nil(t, err)

		testQuota := quotas.Test["word"]
		validationQuota := quotas.Validation["word"]
		trainingQuota := quotas.Training["word"]

		assert.True(t, testQuota >= 1, "count %d", count)
		assert.True(t, validationQuota >= 0, "count %d", count)
		assert.True(t, trainingQuota >= 0, "count %d", count)
		assert.Equal(t, count, testQuota+validationQuota+trainingQuota, "count %d", count)
	}
}

func TestAllocateQuotasCorrections(t *testing.T) {
	words := WordCount{"the": 11, "rare": 1}
	incongruent := NewCorrectionList(
		CorrectionRow{Word: "the", RowIndex: 0},
		CorrectionRow{Word: "rare", RowIndex: 1},
		CorrectionRow{Word: "rare", RowIndex: 2}, // second removal is a no-op
		CorrectionRow{Word: "absent", RowIndex: 3},
	)

	quotas, err := AllocateQuotas(words, incongruent, noCorrections())
	assert.Nil(t, err)

	// "the" dropped from 11 to 10 before allocation
	assert.Equal(t, 1, quotas.Test["the"])
	assert.Equal(t, 1, quotas.Validation["the"])
	assert.Equal(t, 8, quotas.Training["the"])

	// "rare" was removed entirely and gets no quota
	_, exists := quotas.Test["rare"]
	assert.False(t, exists)

	// The input counter is not mutated
	assert.Equal(t, 11, words["the"])
	assert.Equal(t, 1, words["rare"])
}

func TestAllocateQuotasDuplicatesAfterIncongruent(t *testing.T) {
	words := WordCount{"dog": 3}
	incongruent := NewCorrectionList(CorrectionRow{Word: "dog", RowIndex: 0})
	duplicates := NewCorrectionList(CorrectionRow{Word: "dog", RowIndex: 5})

	quotas, err := AllocateQuotas(words, incongruent, duplicates)
	assert.Nil(t, err)

	// 3 - 1 (incongruent) - 1 (duplicate) = 1 -> all test
	assert.Equal(t, 1, quotas.Test["dog"])
	assert.Equal(t, 0, quotas.Validation["dog"])
	assert.Equal(t, 0, quotas.Training["dog"])
}

func TestRouteOrder(t *testing.T) {
	quotas := &QuotaSet{
		Test:       WordCount{"word": 1},
		Validation: WordCount{"word": 1},
		Training:   WordCount{"word": 2},
	}

	expected := []Subset{Test, Validation, Training, Training}
	for _, want := range expected {
		subset, err := quotas.Route("word")
		assert.Nil(t, err)
		assert.Equal(t, want, subset)
	}

	// Quota exhausted: any further occurrence is an invariant violation
	_, err := quotas.Route("word")
	assert.NotNil(t, err)
}

func TestRouteUnknownWord(t *testing.T) {
	quotas := &QuotaSet{
		Test:       WordCount{},
		Validation: WordCount{},
		Training:   WordCount{},
	}
	_, err := quotas.Route("never-counted")
	assert.NotNil(t, err)
}

func TestQuotaSetSaveLoad(t *testing.T) {
	fs := testFS()
	dir := t.TempDir()

	quotas := &QuotaSet{
		Test:       WordCount{"a": 1},
		Validation: WordCount{"b": 2},
		Training:   WordCount{"c": 3},
	}
	err := quotas.Save(fs, dir, "de")
	assert.Nil(t, err)

	loaded, err := LoadQuotaSet(fs, dir, "de")
	assert.Nil(t, err)
	assert.Equal(t, quotas, loaded)
}
