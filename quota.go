package artimel

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// Subset identifies one of the three corpus partitions.
type Subset int

const (
	Test Subset = iota
	Validation
	Training
)

func (s Subset) String() string {
	switch s {
	case Test:
		return "test"
	case Validation:
		return "validation"
	case Training:
		return "training"
	}
	return fmt.Sprintf("subset(%d)", int(s))
}

// Subsets lists the partitions in quota-consumption order: a row goes to
// test while its word has test quota left, then validation, then training.
var Subsets = []Subset{Test, Validation, Training}

// QuotaSet holds the remaining per-word occurrence budget of each subset.
// It is created once by AllocateQuotas, then decremented in place as the
// partitioner consumes rows. A QuotaSet is owned by exactly one partition
// run; it is not safe for concurrent use.
type QuotaSet struct {
	Test       WordCount `msgpack:"test"`
	Validation WordCount `msgpack:"validation"`
	Training   WordCount `msgpack:"training"`
}

// AllocateQuotas computes per-word test/validation/training quotas from the
// raw occurrence counts. Occurrences listed in the incongruent and
// duplicate-vector correction lists are removed first (incongruent first,
// one decrement per listed occurrence). For each remaining word with count
// c, the test subset gets ceil(c/10) occurrences (at least one), the
// validation subset gets min(ceil(c/10), ceil(remaining/2)), and training
// takes the rest, so the three quotas always sum to c exactly.
func AllocateQuotas(words WordCount, incongruent, duplicates *CorrectionList) (*QuotaSet, error) {
	words = words.Clone()

	for _, row := range incongruent.Rows() {
		if _, ok := words[row.Word]; ok {
			log.Infof("Removing one count of %s due to incongruent words", row.Word)
			words.Decrement(row.Word)
		}
	}
	for _, row := range duplicates.Rows() {
		if _, ok := words[row.Word]; ok {
			log.Infof("Removing one count of %s due to duplicate vectors", row.Word)
			words.Decrement(row.Word)
		}
	}

	quotas := &QuotaSet{
		Test:       make(WordCount),
		Validation: make(WordCount),
		Training:   make(WordCount),
	}
	for word, count := range words {
		tenPercent := ceilDiv(count, 10)

		testQuota := tenPercent
		if testQuota < 1 {
			testQuota = 1
		}
		remaining := count - testQuota

		validationQuota := tenPercent
		if half := ceilDiv(remaining, 2); half < validationQuota {
			validationQuota = half
		}
		trainingQuota := remaining - validationQuota

		if testQuota < 0 || validationQuota < 0 || trainingQuota < 0 ||
			testQuota+validationQuota+trainingQuota != count {
			return nil, errors.Errorf(
				"quota allocation for %q is inconsistent: %d+%d+%d != %d",
				word, testQuota, validationQuota, trainingQuota, count)
		}

		quotas.Test[word] = testQuota
		if validationQuota > 0 {
			quotas.Validation[word] = validationQuota
		}
		if trainingQuota > 0 {
			quotas.Training[word] = trainingQuota
		}
	}

	total := words.Total()
	testTotal := quotas.Test.Total()
	validationTotal := quotas.Validation.Total()
	trainingTotal := quotas.Training.Total()
	log.Infof("Allocated quotas: test=%d validation=%d training=%d total=%d",
		testTotal, validationTotal, trainingTotal, total)
	if total > 0 {
		log.Infof("Split ratios: test=%.3f validation=%.3f training=%.3f",
			float64(testTotal)/float64(total),
			float64(validationTotal)/float64(total),
			float64(trainingTotal)/float64(total))
	}

	return quotas, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Route assigns one occurrence of word to a subset, consuming quota in
// test, validation, training order. A word with no remaining quota in any
// subset means the upstream word accounting disagrees with the corpus;
// that is an invariant violation, never clamped.
func (q *QuotaSet) Route(word string) (Subset, error) {
	switch {
	case q.Test[word] > 0:
		q.Test.Decrement(word)
		return Test, nil
	case q.Validation[word] > 0:
		q.Validation.Decrement(word)
		return Validation, nil
	case q.Training[word] > 0:
		q.Training.Decrement(word)
		return Training, nil
	}
	return Training, errors.Errorf(
		"no remaining quota for word %q: upstream word accounting is inconsistent", word)
}

// Counter returns the counter backing the given subset.
func (q *QuotaSet) Counter(subset Subset) WordCount {
	switch subset {
	case Test:
		return q.Test
	case Validation:
		return q.Validation
	default:
		return q.Training
	}
}

// Clone deep-copies the quota set.
func (q *QuotaSet) Clone() *QuotaSet {
	return &QuotaSet{
		Test:       q.Test.Clone(),
		Validation: q.Validation.Clone(),
		Training:   q.Training.Clone(),
	}
}

// Save writes the three quota counters as
// {test,validation,training}_words_<language>.pkl under dir.
func (q *QuotaSet) Save(fs artfs.FileSystem, dir, language string) error {
	for _, subset := range Subsets {
		path := fs.Join(dir, fmt.Sprintf("%s_words_%s.pkl", subset, language))
		if err := SaveWordCount(fs, path, q.Counter(subset)); err != nil {
			return err
		}
	}
	return nil
}

// LoadQuotaSet reads the three persisted quota counters from dir.
func LoadQuotaSet(fs artfs.FileSystem, dir, language string) (*QuotaSet, error) {
	quotas := &QuotaSet{}
	for _, subset := range Subsets {
		path := fs.Join(dir, fmt.Sprintf("%s_words_%s.pkl", subset, language))
		words, err := LoadWordCount(fs, path)
		if err != nil {
			return nil, err
		}
		switch subset {
		case Test:
			quotas.Test = words
		case Validation:
			quotas.Validation = words
		case Training:
			quotas.Training = words
		}
	}
	return quotas, nil
}
