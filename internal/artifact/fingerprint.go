package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// Fingerprint computes the stable cache key for a stage execution: a hash
// over the stage id, the stage's configuration, and the fingerprints of its
// upstream artifacts. Config is canonicalized through JSON encoding (map
// keys sort, so equal configs always hash equal). The same inputs with the
// same configuration always produce the same fingerprint across runs.
func Fingerprint(stageID string, config any, upstream ...string) (string, error) {
	h := sha256.New()
	_, _ = io.WriteString(h, stageID)
	_, _ = io.WriteString(h, "\x00")

	if config != nil {
		enc, err := json.Marshal(config)
		if err != nil {
			return "", eris.Wrapf(err, "artifact: fingerprint config for %s", stageID)
		}
		h.Write(enc)
	}

	for _, u := range upstream {
		_, _ = io.WriteString(h, "\x00")
		_, _ = io.WriteString(h, u)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
