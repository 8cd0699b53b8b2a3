// Package settings reads and writes per-workspace settings documents.
//
// Every Inkdown workspace keeps its settings in
// <workspace>/.inkdown/settings.json. The document is owned by the
// desktop shell and carries sections for many features; this package
// only understands the "indexing" section and round-trips every other
// section untouched.
package settings

import "encoding/json"

// indexingSection is the document key this package owns.
const indexingSection = "indexing"

// IndexingConfig is the per-workspace indexing section.
type IndexingConfig struct {
	// EmbeddingProvider selects the embedding backend (e.g. "ollama").
	EmbeddingProvider string `json:"embeddingProvider"`

	// EmbeddingModel is the model name within the provider.
	EmbeddingModel string `json:"embeddingModel"`

	// AutoIndex re-indexes notes automatically as they change on disk.
	AutoIndex bool `json:"autoIndex"`
}

// Configured reports whether the workspace has a usable embedding
// selection.
func (c *IndexingConfig) Configured() bool {
	return c != nil && c.EmbeddingProvider != "" && c.EmbeddingModel != ""
}

// Document is a whole settings file. The indexing section gets a typed
// field; everything else is kept as raw JSON so a load, modify, save
// cycle preserves sections this process knows nothing about.
type Document struct {
	Indexing *IndexingConfig

	extra map[string]json.RawMessage
}

// NewDocument returns an empty settings document.
func NewDocument() *Document {
	return &Document{extra: make(map[string]json.RawMessage)}
}

// Section returns the raw value of a preserved non-indexing section.
func (d *Document) Section(name string) (json.RawMessage, bool) {
	raw, ok := d.extra[name]
	return raw, ok
}

// UnmarshalJSON decodes the document, splitting the indexing section
// from the untouched remainder.
func (d *Document) UnmarshalJSON(data []byte) error {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return err
	}
	if sections == nil {
		sections = make(map[string]json.RawMessage)
	}

	d.Indexing = nil
	if raw, ok := sections[indexingSection]; ok {
		delete(sections, indexingSection)
		var cfg IndexingConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return err
		}
		d.Indexing = &cfg
	}
	d.extra = sections
	return nil
}

// MarshalJSON encodes the document with the indexing section merged
// back beside the preserved sections.
func (d *Document) MarshalJSON() ([]byte, error) {
	sections := make(map[string]json.RawMessage, len(d.extra)+1)
	for k, v := range d.extra {
		sections[k] = v
	}
	if d.Indexing != nil {
		raw, err := json.Marshal(d.Indexing)
		if err != nil {
			return nil, err
		}
		sections[indexingSection] = raw
	}
	return json.Marshal(sections)
}
