// Package identity assigns stable, content-addressed IDs to symbol
// records. IDs are deterministic: re-parsing an unchanged file yields
// the same IDs, so downstream stores can diff by ID alone.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/arothstein/symdex/pkg/types"
)

// field separator inside the outer hash, chosen to never appear in
// paths or identifiers
const sep = "\x1f"

// Assign computes and sets the ID of every record in place. Must be
// called exactly once per parse of a file: collision suffixes depend on
// the records appearing in a single pass, in parser order.
func Assign(records []types.SymbolRecord) {
	seen := make(map[string]int, len(records))

	for i := range records {
		id := computeID(&records[i])
		n := seen[id]
		seen[id] = n + 1
		if n > 0 {
			id = id + "-" + strconv.Itoa(n)
		}
		records[i].ID = id
	}
}

// computeID hashes the record's location and a digest of its content.
// Two textually identical symbols at different locations get different
// IDs; the same symbol re-parsed gets the same one.
func computeID(r *types.SymbolRecord) string {
	content := sha1.Sum([]byte(strings.Join([]string{
		r.Content,
		r.Signature,
		r.ReturnType,
		strings.Join(r.Parameters, ","),
	}, sep)))

	h := xxhash.New()
	fmt.Fprintf(h, "%s%s%s%s%s%s%d%s%s",
		r.FilePath, sep,
		r.Kind, sep,
		r.Name, sep,
		r.StartLine, sep,
		hex.EncodeToString(content[:]))

	return fmt.Sprintf("%016x", h.Sum64())
}
