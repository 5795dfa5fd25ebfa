// Package fingerprint computes SimHash content fingerprints for
// duplicate detection. Equal text always produces an equal hex
// fingerprint, and near-identical text lands within a small Hamming
// distance of it.
package fingerprint

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"unicode"
)

// HashBits is the fingerprint width. Fingerprints are hex strings of
// HashBits/4 characters.
const HashBits = 64

// tokenize lowercases the text, strips punctuation and splits on
// whitespace.
func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// hashToken maps a token to a 64-bit value using an md5 prefix. The
// digest choice is load-bearing: fingerprints are persisted and
// compared across runs, so it must never change.
func hashToken(token string) uint64 {
	sum := md5.Sum([]byte(token))
	return binary.BigEndian.Uint64(sum[:8])
}

// SimHash computes the fingerprint of the given text as a
// zero-padded hex string. Empty or punctuation-only text maps to the
// all-zero fingerprint.
func SimHash(text string) string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return strings.Repeat("0", HashBits/4)
	}

	var vector [HashBits]int
	for _, token := range tokens {
		h := hashToken(token)
		for i := 0; i < HashBits; i++ {
			if h&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < HashBits; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fmt.Sprintf("%0*x", HashBits/4, fp)
}

// HammingDistance counts differing bits between two hex fingerprints.
func HammingDistance(a, b string) (int, error) {
	va, err := strconv.ParseUint(a, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fingerprint %q: %w", a, err)
	}
	vb, err := strconv.ParseUint(b, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fingerprint %q: %w", b, err)
	}
	return bits.OnesCount64(va ^ vb), nil
}

// Similarity returns a score in [0,1]; 1.0 means identical
// fingerprints.
func Similarity(a, b string) (float64, error) {
	dist, err := HammingDistance(a, b)
	if err != nil {
		return 0, err
	}
	return 1.0 - float64(dist)/float64(HashBits), nil
}

// IsDuplicate reports whether two fingerprints are similar enough to
// be treated as the same content.
func IsDuplicate(a, b string, threshold float64) bool {
	sim, err := Similarity(a, b)
	if err != nil {
		return false
	}
	return sim >= threshold
}
