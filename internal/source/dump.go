package source

import (
	"bytes"
	"encoding/json"
	"fmt"

	yaml "go.yaml.in/yaml/v3"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// Encode writes a snapshot in a format the FileLoader reads back.
func Encode(snap models.Snapshot, format string) ([]byte, error) {
	snap = normalize(snap)
	switch format {
	case "json":
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case "yaml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (use: json, yaml)", format)
	}
}
