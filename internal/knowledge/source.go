package knowledge

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed data/portfolio.yaml
var bundledTables []byte

// Source yields the current content of the portfolio tables.
type Source interface {
	Load(ctx context.Context) (Tables, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Tables, error)

func (f SourceFunc) Load(ctx context.Context) (Tables, error) {
	return f(ctx)
}

// BundledSource serves the tables compiled into the binary.
type BundledSource struct{}

func (BundledSource) Load(ctx context.Context) (Tables, error) {
	return ParseTables(bundledTables)
}

// FileSource reads the tables from a YAML file on every Load.
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) (Tables, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Tables{}, errors.Wrapf(err, "failed to read portfolio data: %s", f.Path)
	}
	tables, err := ParseTables(data)
	if err != nil {
		return Tables{}, errors.Wrapf(err, "portfolio data %s", f.Path)
	}
	return tables, nil
}

// ParseTables decodes YAML table content.
func ParseTables(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, errors.Wrap(err, "failed to parse portfolio tables")
	}
	return t, nil
}

// Digest returns the sha256 of the serialized tables.
func Digest(t Tables) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize tables")
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
