package jwt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateES256KeyPair generates a new ECDSA P-256 key pair
func GenerateES256KeyPair() (*ecdsa.PrivateKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return privateKey, nil
}

// SavePrivateKeyPEM writes an EC private key to filename with mode 0600
func SavePrivateKeyPEM(privateKey *ecdsa.PrivateKey, filename string) error {
	keyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal ECDSA private key: %w", err)
	}

	data := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	return nil
}

// LoadPrivateKeyPEM loads an EC private key from a PEM file
func LoadPrivateKeyPEM(filename string) (*ecdsa.PrivateKey, error) {
	keyBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("expected ECDSA private key, got %T", key)
		}
		return ecKey, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

// KeyConfig records the key ID published alongside the signing key
type KeyConfig struct {
	KeyID string `json:"kid"`
}

// SaveKeyConfig saves key configuration to a JSON file
func SaveKeyConfig(config *KeyConfig, filename string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadKeyConfig loads key configuration from a JSON file
func LoadKeyConfig(filename string) (*KeyConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config KeyConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.KeyID == "" {
		return nil, fmt.Errorf("key config %s has no kid", filename)
	}

	return &config, nil
}

// NewES256SignerFromFile creates an ES256 signer from PEM and config files
func NewES256SignerFromFile(keyFile, configFile string) (*ES256Signer, error) {
	privateKey, err := LoadPrivateKeyPEM(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	config, err := LoadKeyConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewES256Signer(privateKey, config.KeyID)
}

// LoadOrGenerateSigner loads the signing key from keyFile and configFile,
// generating both when keyFile does not exist yet.
func LoadOrGenerateSigner(keyFile, configFile string) (*ES256Signer, bool, error) {
	if _, err := os.Stat(keyFile); err == nil {
		signer, err := NewES256SignerFromFile(keyFile, configFile)
		return signer, false, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("failed to stat key file: %w", err)
	}

	if err := GenerateKeyPairFiles(keyFile, configFile); err != nil {
		return nil, false, err
	}

	signer, err := NewES256SignerFromFile(keyFile, configFile)
	return signer, true, err
}

// GenerateKeyPairFiles generates a P-256 key pair with a random key ID and
// saves it to files
func GenerateKeyPairFiles(keyFile, configFile string) error {
	privateKey, err := GenerateES256KeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	if err := SavePrivateKeyPEM(privateKey, keyFile); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}

	if err := SaveKeyConfig(&KeyConfig{KeyID: uuid.NewString()}, configFile); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// NewEphemeralSigner returns a signer backed by a fresh in-memory key.
func NewEphemeralSigner() (*ES256Signer, error) {
	privateKey, err := GenerateES256KeyPair()
	if err != nil {
		return nil, err
	}
	return NewES256Signer(privateKey, uuid.NewString())
}
