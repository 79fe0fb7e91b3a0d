// Package envelope implements reversible authenticated encryption for opaque
// security tokens.
//
// Every call draws a fresh random salt and IV. The per-call key is derived from
// the process-wide master secret and the salt with HKDF-SHA256, so the master
// secret never keys a cipher directly. The output is a self-describing envelope:
//
//	base64( len(salt) | salt | len(iv) | iv | tag | ciphertext )
//
// where both lengths are single bytes. Any parse, length or tag failure is
// reported as [ErrDecryption] with no further detail.
package envelope
