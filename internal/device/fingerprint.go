package device

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// Attributes are the request properties a fingerprint is derived from.
type Attributes struct {
	UserAgent      string
	AcceptLanguage string
	IP             string
	ClientHints    map[string]string
}

// Fingerprint returns the deterministic device fingerprint for attrs.
func Fingerprint(attrs Attributes) string {
	h := sha256.New()

	writeField(h, attrs.UserAgent)
	writeField(h, attrs.AcceptLanguage)
	writeField(h, attrs.IP)

	names := make([]string, 0, len(attrs.ClientHints))
	for name := range attrs.ClientHints {
		names = append(names, name)
	}
	sort.Strings(names)

	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(names)))
	h.Write(count[:])
	for _, name := range names {
		writeField(h, name)
		writeField(h, attrs.ClientHints[name])
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ValidFingerprint reports whether fp has the shape Fingerprint produces.
func ValidFingerprint(fp string) bool {
	if len(fp) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(fp); i++ {
		c := fp[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func writeField(h hash.Hash, v string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(v)))
	h.Write(n[:])
	h.Write([]byte(v))
}
