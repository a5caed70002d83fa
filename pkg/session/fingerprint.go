package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/gowebpki/jcs"
	"github.com/pkg/errors"
)

// Fingerprint returns a stable digest of the summary rows: the sha256 of their RFC 8785 canonical JSON form,
// taken in sessionId order. Rebuilding from unchanged inputs yields the same fingerprint.
func Fingerprint(summaries []Summary) (string, error) {
	sorted := make([]Summary, len(summaries))
	copy(sorted, summaries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SessionID < sorted[j].SessionID
	})

	for i := range sorted {
		sorted[i].SessionTimestamp = sorted[i].SessionTimestamp.UTC()
	}

	raw, err := json.Marshal(sorted)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal summaries")
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", errors.Wrap(err, "failed to canonicalize summaries")
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
