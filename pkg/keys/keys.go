// Package keys manages the bot's RSA key pair. Users encrypt credentials
// against the public key; only the bot host can recover them.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/prismbot/prism/pkg/logger"
)

// The key is protected at rest with a fixed passphrase. It guards against
// casual file copies, not a hostile host: anyone who can read the key file
// can read this constant too.
const passphrase = "prism"

const keyBits = 2048

// EnsureKeyPair loads the key pair at the given paths, generating and
// persisting a fresh one on first run. Key files end up read-only for the
// owner.
func EnsureKeyPair(privatePath, publicPath string) (*rsa.PrivateKey, error) {
	if _, err := os.Stat(privatePath); err == nil {
		return loadPrivateKey(privatePath)
	}

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	//nolint:staticcheck // encrypted PEM is the interchange format users'
	// tooling expects for this key.
	block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY",
		x509.MarshalPKCS1PrivateKey(key), []byte(passphrase), x509.PEMCipherAES256)
	if err != nil {
		return nil, fmt.Errorf("encrypting private key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}
	pubBlock := &pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}

	for _, f := range []struct {
		path  string
		block *pem.Block
	}{
		{privatePath, block},
		{publicPath, pubBlock},
	} {
		if err := os.WriteFile(f.path, pem.EncodeToMemory(f.block), 0600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.path, err)
		}
		if err := os.Chmod(f.path, 0400); err != nil {
			return nil, fmt.Errorf("sealing %s: %w", f.path, err)
		}
	}

	logger.InfoC("keys", "Generated new RSA key pair")
	return key, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("keys: no PEM block in private key file")
	}

	der := block.Bytes
	//nolint:staticcheck
	if x509.IsEncryptedPEMBlock(block) {
		//nolint:staticcheck
		der, err = x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypting private key: %w", err)
		}
	}

	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return key, nil
}

// PublicKeyPEM reads the persisted public key for display.
func PublicKeyPEM(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
