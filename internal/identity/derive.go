package identity

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	id "keygate/pkg/domain"
)

const saltSize = 32

// newSalt produces the per-root salt: random bytes bound to the owner and a
// monotonic per-owner counter through a one-way hash, so two roots created
// by the same owner can never share derivation inputs.
func newSalt(owner id.Principal, counter uint64) ([]byte, error) {
	entropy := make([]byte, saltSize)
	if _, err := rand.Read(entropy); err != nil {
		return nil, fmt.Errorf("read salt entropy: %w", err)
	}

	h := sha3.New256()
	h.Write([]byte(owner))
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], counter)
	h.Write(seq[:])
	h.Write(entropy)
	return h.Sum(nil), nil
}

// DeriveContextID deterministically derives the opaque context id for an
// application under a root. Calling it twice with the same inputs returns
// byte-identical output; distinct application ids yield distinct outputs.
//
// The id carries no ownership semantics by itself - ownership is established
// separately by registering the sub-identity.
func DeriveContextID(root RootIdentity, appID id.AppID) []byte {
	h := sha3.New256()
	h.Write([]byte(root.Owner))
	h.Write([]byte(appID))
	h.Write(root.Salt)
	return h.Sum(nil)
}
