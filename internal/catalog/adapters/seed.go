package adapters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"mlwio/internal/catalog/domain"
)

// SeedFile is the on-disk layout of a catalog seed:
//
//	content:
//	  - title: Example
//	    releaseYear: 2021
//	    category: Movie
//	    thumbnail: https://example.com/poster.jpg
//	    driveLink: https://drive.google.com/file/d/abc/view
type SeedFile struct {
	Content []domain.ContentInput `yaml:"content"`
}

// LoadSeedFile reads and decodes a YAML seed file. Unknown keys are
// rejected so typos surface at boot.
func LoadSeedFile(path string) ([]domain.ContentInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return DecodeSeed(data)
}

// DecodeSeed parses seed YAML.
func DecodeSeed(data []byte) ([]domain.ContentInput, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var seed SeedFile
	if err := decoder.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return seed.Content, nil
}
