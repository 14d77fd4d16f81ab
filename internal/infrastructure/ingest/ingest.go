// Package ingest turns uploaded files into canvas nodes. Text-like files
// become document nodes carrying their extracted text; images become
// image-context nodes carrying a data URL the chat backend can consume.
package ingest

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"tangent-backend/internal/application/ports"
	"tangent-backend/internal/application/services"
	"tangent-backend/internal/domain/layout"
	"tangent-backend/internal/domain/node"
	pkgerrors "tangent-backend/pkg/errors"
)

// Parser is the inline ports.FileParser: plain text passes through, images
// are wrapped in data URLs. Anything else is rejected per file.
type Parser struct{}

// NewParser returns the inline parser.
func NewParser() *Parser { return &Parser{} }

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true,
	".yaml": true, ".yml": true, ".log": true, ".xml": true,
}

// Parse implements ports.FileParser.
func (p *Parser) Parse(name, mimeType string, data []byte) (ports.ParsedFile, error) {
	if len(data) == 0 {
		return ports.ParsedFile{}, pkgerrors.NewValidation("empty file")
	}

	if strings.HasPrefix(mimeType, "image/") {
		url := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
		return ports.ParsedFile{Name: name, Text: url, IsImage: true}, nil
	}

	ext := strings.ToLower(filepath.Ext(name))
	if strings.HasPrefix(mimeType, "text/") || textExtensions[ext] || mimeType == "application/json" {
		if !utf8.Valid(data) {
			return ports.ParsedFile{}, pkgerrors.NewValidation("file is not valid UTF-8 text")
		}
		return ports.ParsedFile{Name: name, Text: string(data)}, nil
	}

	return ports.ParsedFile{}, pkgerrors.NewValidation(
		fmt.Sprintf("unsupported file type %q", mimeType))
}

// File is one upload in a batch.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Result records the per-file outcome of a batch ingest.
type Result struct {
	Name   string `json:"name"`
	NodeID string `json:"nodeId,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Ingestor drops parsed files onto the canvas as nodes.
type Ingestor struct {
	svc    *services.GraphService
	parser ports.FileParser
	logger *zap.Logger
}

// NewIngestor creates an ingestor over the graph service.
func NewIngestor(svc *services.GraphService, parser ports.FileParser, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{svc: svc, parser: parser, logger: logger}
}

// IngestBatch parses every file and creates one node per success, spreading
// nodes rightward from the drop point. A file that fails to parse is
// recorded in its result and skipped; the batch itself never fails.
func (i *Ingestor) IngestBatch(files []File, x, y float64) []Result {
	results := make([]Result, 0, len(files))
	for _, f := range files {
		parsed, err := i.parser.Parse(f.Name, f.MimeType, f.Data)
		if err != nil {
			i.logger.Warn("skipping unparseable file",
				zap.String("file", f.Name), zap.Error(err))
			results = append(results, Result{Name: f.Name, Error: err.Error()})
			continue
		}

		typ := node.TypeDocument
		value := fmt.Sprintf("[file: %s]\n\n%s", parsed.Name, parsed.Text)
		if parsed.IsImage {
			typ = node.TypeImageContext
			value = parsed.Text
		}

		n, err := i.svc.CreateNodeAt(typ, x, y, value, layout.DirRight)
		if err != nil {
			results = append(results, Result{Name: f.Name, Error: err.Error()})
			continue
		}
		results = append(results, Result{Name: f.Name, NodeID: n.ID})
	}
	return results
}
