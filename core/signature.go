package core

import (
	"crypto/ecdsa"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// postAccessDigest hashes (post_id, viewer) the way an access_signer
// presents it to verify_post_access: a deterministic message the signer
// committed to off-chain, recovered on-chain via secp256k1 ECRECOVER.
func postAccessDigest(postID uint64, viewer Address) []byte {
	buf := make([]byte, 8+len(viewer))
	binary.BigEndian.PutUint64(buf[:8], postID)
	copy(buf[8:], viewer[:])
	return crypto.Keccak256(buf)
}

// SignPostAccess produces the 65-byte recoverable signature an access_signer
// issues to authorize viewer for postID. Exposed for tests and for any
// off-chain signer implementation to mirror.
func SignPostAccess(priv *ecdsa.PrivateKey, postID uint64, viewer Address) ([]byte, error) {
	digest := postAccessDigest(postID, viewer)
	return crypto.Sign(digest, priv)
}

// VerifyPostAccessSignature reports whether sig is a valid secp256k1
// signature by signer over (postID, viewer). A malformed signature is a
// verification failure, not an error: query paths stay total.
func VerifyPostAccessSignature(signer Address, postID uint64, viewer Address, sig []byte) bool {
	if len(sig) != 65 {
		return false
	}
	digest := postAccessDigest(postID, viewer)
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}
	recovered := addressFromPubkey(pub)
	return recovered == signer
}

func addressFromPubkey(pub *ecdsa.PublicKey) Address {
	ethAddr := crypto.PubkeyToAddress(*pub)
	var a Address
	copy(a[:], ethAddr.Bytes())
	return a
}
