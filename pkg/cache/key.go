package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key derives the cache key for text embedded with model: the namespace
// followed by the hex SHA-256 of the model and the normalized text.
//
// Text is NFC normalized and trimmed, so visually identical inputs share an
// entry. The model takes part in the digest, so changing it invalidates every
// previous entry without touching the store.
func Key(namespace, model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(text)))
	return namespace + hex.EncodeToString(h.Sum(nil))
}

// Normalize is the text normalization applied before hashing.
func Normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
