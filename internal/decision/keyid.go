package decision

import (
	"encoding/hex"

	id "keygate/pkg/domain"
	dErrors "keygate/pkg/domain-errors"
)

// DecodeKeyID resolves the custodian-supplied key identifier to a content
// id. The custodian passes the raw content id bytes hex-encoded; anything
// that does not decode to a non-empty id is rejected before the walk starts.
func DecodeKeyID(keyID string) (id.ContentID, error) {
	if keyID == "" {
		return "", dErrors.New(dErrors.CodeInvalidTimestamp, "key id cannot be empty")
	}
	raw, err := hex.DecodeString(keyID)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInvalidTimestamp, "key id is not valid hex", err)
	}
	if len(raw) == 0 {
		return "", dErrors.New(dErrors.CodeInvalidTimestamp, "key id decodes to empty content id")
	}
	return id.ContentID(raw), nil
}
