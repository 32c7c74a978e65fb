package IO

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/models"
	"github.com/sugarme/tokenizer/normalizers"
	"github.com/sugarme/tokenizer/pretokenizers"
	"github.com/sugarme/tokenizer/processors"
	"github.com/sugarme/tokenizer/trainers"
)

// BPE wraps a trained byte pair encoding tokenizer used to turn parallel text
// files into id batches.
type BPE struct {
	tok *tk.Tokenizer
}

// TrainOrLoadBPE loads the tokenizer from tokPath when present, otherwise
// trains a new one on corpusPath and saves it there.
func TrainOrLoadBPE(corpusPath, tokPath string, vocabSize int) (*BPE, error) {
	if _, err := os.Stat(tokPath); err == nil {
		t, err := tk.FromFile(tokPath)
		if err != nil {
			return nil, errors.Wrap(err, "load tokenizer")
		}
		return &BPE{tok: t}, nil
	}

	bpe := models.NewBPE()
	t := tk.NewTokenizer(bpe)
	t.WithNormalizer(normalizers.NewSequence(
		normalizers.NewNFKC(),
		normalizers.NewLowercase(),
	))
	t.WithPreTokenizer(pretokenizers.NewWhitespaceSplit())
	t.WithPostProcessor(processors.NewTemplateProcessing(
		"<bos> $A <eos>",
		"$A",
		map[string]int{
			"<bos>": 1,
			"<eos>": 2,
		},
	))

	tr := trainers.NewBpeTrainer()
	tr.VocabSize = vocabSize
	tr.SpecialTokens = []string{"<pad>", "<bos>", "<eos>", "<unk>"}
	if err := t.Train(tr, []string{corpusPath}); err != nil {
		return nil, errors.Wrap(err, "train tokenizer")
	}
	if err := os.MkdirAll(filepath.Dir(tokPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create tokenizer dir")
	}
	if err := t.Save(tokPath); err != nil {
		return nil, errors.Wrap(err, "save tokenizer")
	}
	return &BPE{tok: t}, nil
}

// Encode turns raw text into token ids.
func (b *BPE) Encode(text string) ([]int, error) {
	enc, err := b.tok.EncodeSingle(text)
	if err != nil {
		return nil, errors.Wrap(err, "encode text")
	}
	ids := make([]int, len(enc.Ids))
	for i, v := range enc.Ids {
		ids[i] = int(v)
	}
	return ids, nil
}

// VocabSize returns the tokenizer vocabulary size including added tokens.
func (b *BPE) VocabSize() int {
	return len(b.tok.GetVocab(true))
}

// LoadParallelBatches reads aligned source/target text files line by line,
// encodes each pair, and returns one batch per pair. Lines longer than maxLen
// tokens on either side are skipped; maxLen <= 0 keeps everything.
func (b *BPE) LoadParallelBatches(srcPath, tgtPath string, maxLen int) ([]Batch, error) {
	srcLines, err := readLines(srcPath)
	if err != nil {
		return nil, err
	}
	tgtLines, err := readLines(tgtPath)
	if err != nil {
		return nil, err
	}
	if len(srcLines) != len(tgtLines) {
		return nil, errors.Errorf("parallel files differ in length: %d vs %d",
			len(srcLines), len(tgtLines))
	}
	batches := make([]Batch, 0, len(srcLines))
	for i := range srcLines {
		srcIDs, err := b.Encode(srcLines[i])
		if err != nil {
			return nil, err
		}
		tgtIDs, err := b.Encode(tgtLines[i])
		if err != nil {
			return nil, err
		}
		if len(srcIDs) == 0 || len(tgtIDs) == 0 {
			continue
		}
		if maxLen > 0 && (len(srcIDs) > maxLen || len(tgtIDs) > maxLen) {
			continue
		}
		batches = append(batches, NewBatch(srcIDs, tgtIDs))
	}
	return batches, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, errors.Wrapf(sc.Err(), "read %s", path)
}
