package client

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoSecret is returned by Load when no secret was saved for a user.
var ErrNoSecret = errors.New("no secret found, register first")

// SecretFilePerm is the mode of saved secret files.
const SecretFilePerm = 0o600

// SecretStore keeps one decimal secret per user in Dir/.secret_<user>.
type SecretStore struct {
	Dir string
}

// Path returns the secret file for user.
func (s SecretStore) Path(user string) (string, error) {
	if user == "" || strings.ContainsAny(user, `/\`) || user == "." || user == ".." {
		return "", fmt.Errorf("user %q cannot be used as a file name", user)
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, ".secret_"+user), nil
}

// Save writes x for user, replacing any earlier secret.
func (s SecretStore) Save(user string, x *big.Int) error {
	staged, err := s.Stage(user, x)
	if err != nil {
		return err
	}
	return staged.Commit()
}

// StagedSecret is a secret written next to its final path but not yet
// visible to Load.
type StagedSecret struct {
	tmp  string
	path string
}

// Stage writes x for user to a temporary file in the store directory.
// The current secret, if any, is untouched until Commit.
func (s SecretStore) Stage(user string, x *big.Int) (*StagedSecret, error) {
	path, err := s.Path(user)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	staged := &StagedSecret{tmp: f.Name(), path: path}

	_, err = f.WriteString(x.Text(10))
	if err == nil {
		err = f.Chmod(SecretFilePerm)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		staged.Discard()
		return nil, err
	}
	return staged, nil
}

// Commit replaces the user's secret with the staged one.
func (s *StagedSecret) Commit() error {
	if err := os.Rename(s.tmp, s.path); err != nil {
		s.Discard()
		return err
	}
	return nil
}

// Discard removes the staged file. It is a no-op after Commit.
func (s *StagedSecret) Discard() {
	_ = os.Remove(s.tmp)
}

// Load reads the secret saved for user.
func (s SecretStore) Load(user string) (*big.Int, error) {
	path, err := s.Path(user)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w for user %q", ErrNoSecret, user)
	}
	if err != nil {
		return nil, err
	}

	x, ok := new(big.Int).SetString(strings.TrimSpace(string(data)), 10)
	if !ok {
		return nil, fmt.Errorf("secret file %s is corrupt", path)
	}
	return x, nil
}
