package rename

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sdejongh/fylr/internal/platform"
)

// SanitizeName trims and NFC-normalizes a generated file name and rejects
// names that are not a single path component.
func SanitizeName(name string) (string, error) {
	cleaned := norm.NFC.String(strings.TrimSpace(name))
	if err := platform.ValidateName(cleaned); err != nil {
		return "", fmt.Errorf("invalid new name %q: %w", name, err)
	}
	return cleaned, nil
}

// maxSuffix bounds the _<n> candidates tried for one name
const maxSuffix = 10000

// ErrNoUniqueName is returned when every suffix up to maxSuffix is taken
var ErrNoUniqueName = errors.New("no free name")

// UniqueName returns name, or the first "<base>_<n><ext>" (n = 1, 2, ...) for
// which taken reports false. The second result is true when a suffix was added.
// An error from taken stops the search and is returned.
func UniqueName(name string, taken func(candidate string) (bool, error)) (string, bool, error) {
	used, err := taken(name)
	if err != nil {
		return "", false, err
	}
	if !used {
		return name, false, nil
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		// Dot files like ".env" have no extension to preserve
		base, ext = name, ""
	}

	for n := 1; n <= maxSuffix; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		used, err := taken(candidate)
		if err != nil {
			return "", false, err
		}
		if !used {
			return candidate, true, nil
		}
	}
	return "", false, fmt.Errorf("%w for %q after %d attempts", ErrNoUniqueName, name, maxSuffix)
}
