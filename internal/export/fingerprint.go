package export

import (
	"encoding/hex"
	"encoding/json"

	"lukechampine.com/blake3"

	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

// Fingerprint hashes the compact canonical JSON of nodes with BLAKE3 and
// returns the hex digest. Equal node lists in equal order hash equally.
func Fingerprint(nodes []tree.Node) (string, error) {
	if nodes == nil {
		nodes = []tree.Node{}
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
