package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainDocument prefixes document content hashes. The version suffix
// allows the hashed form to change later.
const DomainDocument = "rfcdep/document/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the hash stored next to canonical document content.
func ContentHash(canonical []byte) string {
	return hashWithDomain(DomainDocument, canonical)
}
