package classifier

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrInterpreterNotFound is returned when no interpreter can be located
var ErrInterpreterNotFound = errors.New("no python interpreter found")

var lookPath = exec.LookPath

// FindInterpreter returns the interpreter inside venv when present,
// otherwise python3 or python from PATH.
func FindInterpreter(venv string) (string, error) {
	if venv != "" {
		candidate := filepath.Join(venv, "bin", "python")
		if runtime.GOOS == "windows" {
			candidate = filepath.Join(venv, "Scripts", "python.exe")
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrInterpreterNotFound
}
