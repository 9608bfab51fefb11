package report

import (
	"encoding/json"
	"io"

	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/types"

	"gopkg.in/yaml.v3"
)

type document struct {
	RunID   string        `json:"runId,omitempty" yaml:"runId,omitempty"`
	Root    string        `json:"root" yaml:"root"`
	Entries []entryDoc    `json:"entries" yaml:"entries"`
	Summary types.Summary `json:"summary" yaml:"summary"`
}

type entryDoc struct {
	Name      string `json:"name" yaml:"name"`
	Status    string `json:"status" yaml:"status"`
	Trees     count  `json:"trees,omitempty" yaml:"trees,omitempty"`
	Original  count  `json:"original,omitempty" yaml:"original,omitempty"`
	Capped    bool   `json:"capped,omitempty" yaml:"capped,omitempty"`
	Positions int    `json:"positions,omitempty" yaml:"positions,omitempty"`
	X         *int   `json:"cx,omitempty" yaml:"cx,omitempty"`
	Y         *int   `json:"cy,omitempty" yaml:"cy,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// count is an exact decimal emitted as a bare number, so counts beyond the
// int64 range survive both encodings.
type count string

func (c count) MarshalJSON() ([]byte, error) {
	return []byte(c), nil
}

func (c count) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: string(c)}, nil
}

func newDocument(r *types.Report) document {
	doc := document{
		RunID:   r.RunID,
		Root:    r.Root,
		Entries: make([]entryDoc, 0, len(r.Entries)),
		Summary: r.Summary,
	}

	for _, entry := range r.Entries {
		if entry.Status == types.StatusHidden {
			continue
		}

		e := entryDoc{
			Name:   entry.Dir.Name,
			Status: string(entry.Status),
		}
		if entry.Dir.HasCoords {
			x, y := entry.Dir.X, entry.Dir.Y
			e.X, e.Y = &x, &y
		}

		switch {
		case entry.Status == types.StatusOK:
			e.Trees = count(entry.TreesString())
			e.Capped = entry.Capped
			e.Positions = entry.Positions
			if entry.Capped {
				e.Original = count(entry.OriginalString())
			}
		case entry.Status.Failed():
			if entry.Status == types.StatusWriteError {
				e.Original = count(entry.OriginalString())
			}
			e.Error = errorMessage(entry.Err)
		}

		doc.Entries = append(doc.Entries, e)
	}
	return doc
}

// JSONRenderer writes the report as one indented JSON document.
type JSONRenderer struct{}

func (jr *JSONRenderer) Render(w io.Writer, r *types.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(newDocument(r))
}

// YAMLRenderer writes the report as one YAML document.
type YAMLRenderer struct{}

func (yr *YAMLRenderer) Render(w io.Writer, r *types.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(r)); err != nil {
		return err
	}
	return enc.Close()
}
