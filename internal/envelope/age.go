// Package envelope wraps finished containers in password-based
// encryption. It is applied as a post-pass after export and a pre-pass
// before import; the archive format itself stays plaintext zip.
package envelope

import (
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"smlb/internal/smlb"
)

// EncryptedExt is appended to the plaintext filename on encryption.
const EncryptedExt = ".age"

// AgeEnvelope implements smlb.Envelope with age's scrypt-based
// passphrase encryption. Decryption with a wrong passphrase fails at the
// age header, never yielding garbage plaintext.
type AgeEnvelope struct{}

var _ smlb.Envelope = (*AgeEnvelope)(nil)

// NewAgeEnvelope creates an AgeEnvelope.
func NewAgeEnvelope() *AgeEnvelope { return &AgeEnvelope{} }

// Encrypt encrypts the file at path into path + ".age", removes the
// plaintext on success, and returns the ciphertext path.
func (e *AgeEnvelope) Encrypt(path string, passphrase string) (string, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return "", fmt.Errorf("creating scrypt recipient: %w", err)
	}

	outPath := path + EncryptedExt
	if err := transform(path, outPath, func(dst io.Writer, src io.Reader) error {
		w, err := age.Encrypt(dst, recipient)
		if err != nil {
			return fmt.Errorf("creating encrypted writer: %w", err)
		}
		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("encrypting data: %w", err)
		}
		return w.Close()
	}); err != nil {
		return "", err
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("removing plaintext: %w", err)
	}
	return outPath, nil
}

// Decrypt decrypts the file at path into outPath. On failure no output
// file is left behind.
func (e *AgeEnvelope) Decrypt(path string, outPath string, passphrase string) error {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	return transform(path, outPath, func(dst io.Writer, src io.Reader) error {
		r, err := age.Decrypt(src, identity)
		if err != nil {
			return fmt.Errorf("decrypting: %w", err)
		}
		if _, err := io.Copy(dst, r); err != nil {
			return fmt.Errorf("reading decrypted data: %w", err)
		}
		return nil
	})
}

// transform streams inPath through fn into outPath, removing the output
// on any failure.
func transform(inPath, outPath string, fn func(dst io.Writer, src io.Reader) error) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inPath, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}

	if err := fn(out, in); err != nil {
		out.Close()
		os.Remove(outPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("closing %s: %w", outPath, err)
	}
	return nil
}
