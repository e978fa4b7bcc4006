package game

import (
	"encoding/hex"
	"encoding/json"

	"lukechampine.com/blake3"

	"starconquest.ai/internal/persistence/snapshot"
)

// Digest is the blake3 hash of the document's canonical JSON. Two games with equal
// documents have equal digests.
func Digest(doc snapshot.GameV1) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func (g *Game) Digest() (string, error) { return Digest(g.Export()) }
