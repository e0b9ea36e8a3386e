// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// Export writes the most recent batches, with outcomes, to w as "yaml" or
// "json".
func (s *Store) Export(ctx context.Context, w io.Writer, format string, limit int) error {
	batches, err := s.exportBatches(ctx, limit)
	if err != nil {
		return err
	}

	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(batches); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(batches); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

func (s *Store) exportBatches(ctx context.Context, limit int) ([]Batch, error) {
	summaries, err := s.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	batches := make([]Batch, 0, len(summaries))
	for _, sum := range summaries {
		b, err := s.Get(ctx, sum.ID)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, nil
}
