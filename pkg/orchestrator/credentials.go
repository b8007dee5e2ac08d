package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultCredentialEnv is the variable holding the online model key
const DefaultCredentialEnv = "OPENAI_API_KEY"

// Credentials tells the orchestrator whether online mode has access configured
type Credentials interface {
	// Name describes where the credential is expected
	Name() string
	// Lookup returns the credential when configured
	Lookup() (string, bool)
}

// EnvCredentials reads the credential from an environment variable
type EnvCredentials struct {
	Var string
}

// NewEnvCredentials returns credentials read from variable (DefaultCredentialEnv when empty)
func NewEnvCredentials(variable string) EnvCredentials {
	if variable == "" {
		variable = DefaultCredentialEnv
	}
	return EnvCredentials{Var: variable}
}

// Name returns the environment variable name
func (c EnvCredentials) Name() string {
	return c.Var
}

// Lookup returns the non-blank value of the variable
func (c EnvCredentials) Lookup() (string, bool) {
	v, ok := os.LookupEnv(c.Var)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// LoadEnvFile loads KEY=value pairs from path into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
