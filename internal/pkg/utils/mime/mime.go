package mime

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLen is how many leading bytes DetectMimeType needs.
const SniffLen = 3072

// extMimeMap refines "text/plain" detections for tabular and structured text
// formats that content sniffing cannot tell apart.
var extMimeMap = map[string]string{
	".csv":    "text/csv",
	".tsv":    "text/tab-separated-values",
	".json":   "application/json",
	".ndjson": "application/x-ndjson",
	".jsonl":  "application/x-ndjson",
	".xml":    "application/xml",
	".yaml":   "text/yaml",
	".yml":    "text/yaml",
	".md":     "text/markdown",
	".sql":    "text/x-sql",
}

// DetectMimeType detects the MIME type from the first SniffLen bytes of
// content, refining text/plain by extension.
func DetectMimeType(content []byte, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType := mimetype.Detect(content).String()

	if strings.HasPrefix(contentType, "text/plain") {
		if refined, ok := extMimeMap[ext]; ok {
			// keep charset parameters
			return strings.Replace(contentType, "text/plain", refined, 1)
		}
	}
	return contentType
}
