package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/arothstein/symdex/pkg/types"
)

// Search ranks documents by L2 distance to queryVector and returns the
// closest limit candidates. When the sqlite-vec extension is compiled
// in, distance is computed in SQL; otherwise embeddings are ranked in
// Go. Both paths return identical results.
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int, filter *Filter) ([]Candidate, error) {
	if limit <= 0 {
		return []Candidate{}, nil
	}
	if VectorExtensionAvailable {
		return s.searchVectorOptimized(ctx, queryVector, limit, filter)
	}
	return s.searchVectorFallback(ctx, queryVector, limit, filter)
}

// searchVectorOptimized pushes distance computation into SQLite.
func (s *Store) searchVectorOptimized(ctx context.Context, queryVector []float32, limit int, filter *Filter) ([]Candidate, error) {
	query := "SELECT " + documentColumns + `, vec_distance_L2(embedding, ?) AS distance
		FROM documents WHERE dimension = ?`
	args := []interface{}{serializeVector(queryVector), len(queryVector)}
	query, args = applySearchFilter(query, args, filter)
	query += " ORDER BY distance ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Candidate
	for rows.Next() {
		var doc types.Document
		var kind, imports, params, called string
		var distance float64
		err := rows.Scan(&doc.ID, &doc.EmbedText, &doc.Content,
			&doc.Meta.FilePath, &doc.Meta.ProjectRoot, &doc.Meta.RelativePath,
			&doc.Meta.Name, &kind, &doc.Meta.Language, &doc.Meta.StartLine, &doc.Meta.EndLine,
			&doc.Meta.ParentName, &doc.Meta.Signature, &doc.Meta.ReturnType,
			&imports, &params, &called, &distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		doc.Meta.Kind = types.SymbolKind(kind)
		doc.Meta.Imports = types.UnmarshalStrings(imports)
		doc.Meta.Parameters = types.UnmarshalStrings(params)
		doc.Meta.CalledNames = types.UnmarshalStrings(called)
		results = append(results, Candidate{Doc: doc, Distance: distance})
	}

	return results, rows.Err()
}

// searchVectorFallback loads candidate embeddings and ranks them in Go.
// Used when the sqlite-vec extension is not compiled in (purego builds).
func (s *Store) searchVectorFallback(ctx context.Context, queryVector []float32, limit int, filter *Filter) ([]Candidate, error) {
	query := "SELECT " + documentColumns + ", embedding FROM documents WHERE dimension = ?"
	args := []interface{}{len(queryVector)}
	query, args = applySearchFilter(query, args, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []Candidate
	for rows.Next() {
		var doc types.Document
		var kind, imports, params, called string
		var blob []byte
		err := rows.Scan(&doc.ID, &doc.EmbedText, &doc.Content,
			&doc.Meta.FilePath, &doc.Meta.ProjectRoot, &doc.Meta.RelativePath,
			&doc.Meta.Name, &kind, &doc.Meta.Language, &doc.Meta.StartLine, &doc.Meta.EndLine,
			&doc.Meta.ParentName, &doc.Meta.Signature, &doc.Meta.ReturnType,
			&imports, &params, &called, &blob)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}

		doc.Meta.Kind = types.SymbolKind(kind)
		doc.Meta.Imports = types.UnmarshalStrings(imports)
		doc.Meta.Parameters = types.UnmarshalStrings(params)
		doc.Meta.CalledNames = types.UnmarshalStrings(called)
		candidates = append(candidates, Candidate{Doc: doc, Distance: l2Distance(queryVector, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Doc.ID < candidates[j].Doc.ID
	})

	if limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// applySearchFilter adds WHERE clause conditions for a search filter
func applySearchFilter(query string, args []interface{}, filter *Filter) (string, []interface{}) {
	if filter == nil {
		return query, args
	}

	if filter.ProjectRoot != "" {
		query += " AND project_root = ?"
		args = append(args, filter.ProjectRoot)
	}
	if filter.FilePath != "" {
		query += " AND file_path = ?"
		args = append(args, filter.FilePath)
	}

	return query, args
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// l2Distance computes the Euclidean distance between two vectors.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// L2Distance is an exported helper for testing
func L2Distance(a, b []float32) float64 {
	return l2Distance(a, b)
}
