// Package testdata embeds solver transcripts with their expected parse
// results for engine and pipeline tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

//go:embed transcripts/*.out
var transcripts embed.FS

// Expect is the expected snapshot summary of one instance.
type Expect struct {
	Instance   string `json:"instance"`
	Settings   string `json:"settings"`
	Status     string `json:"status"`
	Events     int    `json:"events"`
	Variables  int    `json:"variables"`
	RootBounds int    `json:"root_bounds"`
	Gap        string `json:"gap"`
}

// CorpusEntry is a transcript and the instances it must yield, in order.
type CorpusEntry struct {
	File        string   `json:"file"`
	Description string   `json:"description"`
	Instances   []Expect `json:"instances"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}

// Transcript returns the raw bytes of an embedded transcript.
func Transcript(name string) ([]byte, error) {
	b, err := transcripts.ReadFile("transcripts/" + name)
	if err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", name, err)
	}
	return b, nil
}
