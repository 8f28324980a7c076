package sdb

import "io"

// Encryptor handles at-rest encryption of snapshot files and unlocking for
// restore. Encryption uses the public key only, so the automatic snapshot
// path never needs user interaction. Decryption requires a passphrase to
// unlock the identity, producing a DecryptionContext for the session.
type Encryptor interface {
	// Setup performs one-time key generation. Called by `sdb config keygen`.
	// Generates a key pair, stores the public key in plaintext, and encrypts
	// the identity with the provided passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	// Uses the public key only; no passphrase required.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the identity using the passphrase and returns a
	// DecryptionContext valid for the rest of the session.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked identity in memory for the duration of
// a restore. Created by Encryptor.Unlock; never written to disk.
type DecryptionContext interface {
	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
