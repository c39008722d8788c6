package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer counts tokens with a tiktoken BPE encoding. Local GGUF
// models use their own vocabularies, so cl100k_base is an approximation that
// still tracks prompt growth closely.
type TiktokenTokenizer struct {
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

// NewTiktokenTokenizer creates a tokenizer for encoding ("cl100k_base" when empty).
func NewTiktokenTokenizer(encoding string, maxTokens int) *TiktokenTokenizer {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &TiktokenTokenizer{encoding: encoding, maxTokens: maxTokens}
}

// init lazily loads the encoding (may download BPE data on first use).
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) MaxTokens() int {
	return t.maxTokens
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
