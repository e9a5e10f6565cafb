package artimel

import (
	"encoding/csv"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// WordCount maps a normalized lexical word to a non-negative occurrence
// count. Entries that reach zero are deleted rather than kept at zero.
type WordCount map[string]int

// Decrement lowers word's count by one, deleting the entry when it reaches
// zero. A word that is not present is a no-op.
func (w WordCount) Decrement(word string) {
	if _, ok := w[word]; !ok {
		return
	}
	w[word]--
	if w[word] == 0 {
		delete(w, word)
	}
}

// Total sums all counts.
func (w WordCount) Total() int {
	total := 0
	for _, count := range w {
		total += count
	}
	return total
}

// Clone returns a deep copy of the counter.
func (w WordCount) Clone() WordCount {
	cloned := make(WordCount, len(w))
	for word, count := range w {
		cloned[word] = count
	}
	return cloned
}

// NormalizeWord case-folds a lexical word and strips every character that
// is not a letter or a digit. The same normalization is applied to the
// aligner's word before the two are compared.
func NormalizeWord(word string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, word)
	return strings.ToLower(cleaned)
}

// LoadWordCount reads a msgpack-serialized word counter.
func LoadWordCount(fs artfs.FileSystem, path string) (WordCount, error) {
	reader, err := fs.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening word counter %s", path)
	}
	defer reader.Close()

	words := make(WordCount)
	if err := msgpack.NewDecoder(reader).Decode(&words); err != nil {
		return nil, errors.Wrapf(err, "decoding word counter %s", path)
	}
	return words, nil
}

// SaveWordCount writes a msgpack-serialized word counter.
func SaveWordCount(fs artfs.FileSystem, path string, words WordCount) error {
	writer, err := fs.OpenWriter(path)
	if err != nil {
		return errors.Wrapf(err, "opening word counter %s for writing", path)
	}

	if err := msgpack.NewEncoder(writer).Encode(words); err != nil {
		writer.Close()
		return errors.Wrapf(err, "encoding word counter %s", path)
	}
	return writer.Close()
}

// CorrectionRow is one entry of a correction list. Word is normalized on
// load. RowIndex is the explicit row key used for duplicate-vector
// matching; it is taken from a "row_index" column when the file has one and
// from the record's position otherwise.
type CorrectionRow struct {
	Word     string
	RowIndex int
}

// CorrectionList is a multiset of flagged word occurrences, loaded from
// incongruent_words_<lang>.csv or dublicate_vectors_<lang>.csv.
type CorrectionList struct {
	rows   []CorrectionRow
	byWord map[string]map[int]struct{}
}

// NewCorrectionList builds a correction list from explicit rows. Words are
// normalized the same way corpus words are.
func NewCorrectionList(rows ...CorrectionRow) *CorrectionList {
	list := &CorrectionList{byWord: make(map[string]map[int]struct{})}
	for _, row := range rows {
		row.Word = NormalizeWord(row.Word)
		if row.Word == "" {
			continue
		}
		list.add(row)
	}
	return list
}

// LoadCorrectionList parses a correction CSV. The file must have a header
// with at least a lexical_word column. Records with an empty word are
// dropped before partitioning.
func LoadCorrectionList(fs artfs.FileSystem, path string) (*CorrectionList, error) {
	reader, err := fs.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening correction list %s", path)
	}
	defer reader.Close()

	records, err := csv.NewReader(reader).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing correction list %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("correction list %s has no header", path)
	}

	wordCol, indexCol := -1, -1
	for i, name := range records[0] {
		switch strings.TrimSpace(name) {
		case "lexical_word":
			wordCol = i
		case "row_index":
			indexCol = i
		}
	}
	if wordCol == -1 {
		return nil, errors.Errorf("correction list %s has no lexical_word column", path)
	}

	list := &CorrectionList{byWord: make(map[string]map[int]struct{})}
	for i, record := range records[1:] {
		word := NormalizeWord(record[wordCol])
		if word == "" {
			log.Warnf("Dropping empty record %d of %s", i, path)
			continue
		}

		rowIndex := i
		if indexCol != -1 {
			rowIndex, err = strconv.Atoi(strings.TrimSpace(record[indexCol]))
			if err != nil {
				log.Warnf("Dropping record %d of %s: bad row_index %q", i, path, record[indexCol])
				continue
			}
		}
		list.add(CorrectionRow{Word: word, RowIndex: rowIndex})
	}

	return list, nil
}

func (c *CorrectionList) add(row CorrectionRow) {
	c.rows = append(c.rows, row)
	indices, ok := c.byWord[row.Word]
	if !ok {
		indices = make(map[int]struct{})
		c.byWord[row.Word] = indices
	}
	indices[row.RowIndex] = struct{}{}
}

// Rows returns the listed occurrences in file order.
func (c *CorrectionList) Rows() []CorrectionRow {
	return c.rows
}

// Matches reports whether the (word, rowIndex) key is flagged.
func (c *CorrectionList) Matches(word string, rowIndex int) bool {
	indices, ok := c.byWord[word]
	if !ok {
		return false
	}
	_, ok = indices[rowIndex]
	return ok
}

// Len returns the number of listed occurrences.
func (c *CorrectionList) Len() int {
	return len(c.rows)
}
