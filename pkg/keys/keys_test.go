package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureKeyPair_GeneratesAndReloads(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "key.pem")
	pub := filepath.Join(dir, "key.pub.pem")

	key, err := EnsureKeyPair(priv, pub)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, path := range []string{priv, pub} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if perm := info.Mode().Perm(); perm != 0400 {
			t.Errorf("%s mode = %o, want 0400", path, perm)
		}
	}

	// On-disk private key must not be readable without the passphrase.
	raw, err := os.ReadFile(priv)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "ENCRYPTED") {
		t.Error("private key PEM is not encrypted")
	}

	reloaded, err := EnsureKeyPair(priv, pub)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.N.Cmp(key.N) != 0 {
		t.Error("reload produced a different key")
	}
}

func TestKeyPair_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	key, err := EnsureKeyPair(filepath.Join(dir, "key.pem"), filepath.Join(dir, "key.pub.pem"))
	if err != nil {
		t.Fatal(err)
	}

	cipher, err := rsa.EncryptPKCS1v15(rand.Reader, &key.PublicKey, []byte(":user:pass:"))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, key, cipher)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plain) != ":user:pass:" {
		t.Errorf("plaintext = %q", plain)
	}
}

func TestPublicKeyPEM(t *testing.T) {
	dir := t.TempDir()
	pub := filepath.Join(dir, "key.pub.pem")
	if _, err := EnsureKeyPair(filepath.Join(dir, "key.pem"), pub); err != nil {
		t.Fatal(err)
	}

	pemText, err := PublicKeyPEM(pub)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(pemText, "-----BEGIN PUBLIC KEY-----") {
		t.Errorf("pem = %q", pemText)
	}
}
