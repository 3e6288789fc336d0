// Package jsonreport renders reports as an indented JSON document.
package jsonreport

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/report"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	report.Register(Renderer{})
}

// Renderer writes {"metadata": ..., "results": [...], "stats": ...}.
type Renderer struct{}

func (Renderer) Name() string        { return "json" }
func (Renderer) Extension() string   { return ".json" }
func (Renderer) ContentType() string { return "application/json" }

// Document is the JSON shape of a report.
type Document struct {
	Metadata domain.RunMetadata `json:"metadata"`
	Results  []report.Row       `json:"results"`
	Stats    domain.RunStats    `json:"stats"`
}

// NewDocument converts rep to its JSON shape.
func NewDocument(rep *domain.Report) Document {
	md := rep.Metadata
	md.UserMetadata = md.Pairs()
	return Document{
		Metadata: md,
		Results:  report.Rows(rep),
		Stats:    rep.Stats,
	}
}

func (Renderer) Render(w io.Writer, rep *domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(NewDocument(rep))
}
