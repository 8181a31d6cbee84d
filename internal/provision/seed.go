package provision

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aliuyar1234/taskhub/internal/validation"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSeed []byte

// UserSeed is one user to place in an organization. Entries are validated
// when the user is provisioned so a bad entry fails alone.
type UserSeed struct {
	Email    string `yaml:"email" validate:"required,email,max=255"`
	FullName string `yaml:"fullName" validate:"max=255"`
	Password string `yaml:"password"`
	Role     string `yaml:"role" validate:"required"`
}

// Group is an organization and the users it should contain. The name is
// validated when the group is provisioned.
type Group struct {
	Organization string     `yaml:"name" validate:"required,max=255"`
	Users        []UserSeed `yaml:"users"`
}

type seedFile struct {
	Organizations []Group `yaml:"organizations" validate:"required"`
}

// Load parses a seed document. Only the document shape is checked here;
// invalid groups and users are reported per entry by Provisioner.Run.
func Load(r io.Reader) ([]Group, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("seed file is empty")
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := validation.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return f.Organizations, nil
}

// LoadFile parses the seed document at path
func LoadFile(path string) ([]Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the built-in demo tenants
func Default() []Group {
	groups, err := Load(bytes.NewReader(defaultSeed))
	if err != nil {
		panic(fmt.Sprintf("embedded seed file is invalid: %v", err))
	}
	return groups
}

// Source returns the groups from path, or the built-in ones when path is
// empty
func Source(path string) ([]Group, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
