// Package json provides the handler for the versions JSON document, the
// canonical serialization of a corpus.
package json

import (
	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/formats/base"
)

// Name is the registry key of this format.
const Name = "json"

// Handler implements formats.Format, formats.Loader and formats.Emitter.
type Handler struct{}

var detectConfig = base.DetectConfig{
	Extensions:     []string{".json"},
	ContentMarkers: []string{`"versions"`},
	CustomValidator: func(_ string, data []byte) bool {
		head := base.Head(data)
		return len(head) > 0 && head[0] == '{'
	},
}

// Register registers this format with the registry.
func Register() {
	formats.Register(&Handler{})
}

// init automatically registers this format when the package is imported.
func init() {
	Register()
}

// Name implements formats.Format.
func (h *Handler) Name() string { return Name }

// Extensions implements formats.Format.
func (h *Handler) Extensions() []string { return []string{".json"} }

// Detect implements formats.Format.
func (h *Handler) Detect(path string, data []byte) bool {
	return detectConfig.Detect(path, data)
}

// Load implements formats.Loader.
func (h *Handler) Load(data []byte, _ formats.LoadOptions) (*corpus.Corpus, error) {
	return corpus.Unmarshal(data)
}

// Emit implements formats.Emitter. Every version is written.
func (h *Handler) Emit(c *corpus.Corpus, _ formats.EmitOptions) ([]byte, error) {
	out, err := corpus.Marshal(c)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
