package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Train is a training profile. Zero values mean "not set" and leave the caller's default in place.
type Train struct {
	Corpus          string `yaml:"corpus"`
	Output          string `yaml:"output"`
	VocabSize       int    `yaml:"vocab_size"`
	MaxMerges       int    `yaml:"max_merges"`
	AttachEndOfWord bool   `yaml:"attach_end_of_word"`
	Normalize       bool   `yaml:"normalize"`
}

// Parse decodes a profile. Unknown keys are an error so typos do not silently fall back to defaults.
func Parse(r io.Reader) (*Train, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Train
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error while decoding training config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads the profile at path.
func Load(path string) (*Train, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error while reading training config : %w", err)
	}

	c, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Train) Validate() error {
	if c.VocabSize < 0 {
		return fmt.Errorf("vocab_size must not be negative, got %d", c.VocabSize)
	}
	if c.MaxMerges < 0 {
		return fmt.Errorf("max_merges must not be negative, got %d", c.MaxMerges)
	}
	return nil
}
