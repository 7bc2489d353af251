package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/yukikurage/project-tracker/internal/constants"
)

// SanitizeFilename strips directories and keeps only letters, digits, dots,
// dashes and underscores. Anything else becomes an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if strings.Trim(out, "._") == "" {
		return constants.DefaultUploadName
	}
	return out
}

// UploadFilename prefixes the sanitized name with a UTC timestamp, e.g.
// 20250102030405_report.pdf
func UploadFilename(now time.Time, name string) string {
	return now.UTC().Format(constants.UploadTimeFormat) + "_" + SanitizeFilename(name)
}

// RandomSuffix returns a short random hex string for breaking filename ties.
func RandomSuffix() (string, error) {
	bytes := make([]byte, 3)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// WithSuffix inserts suffix before the extension: a.txt -> a_suffix.txt
func WithSuffix(name, suffix string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + suffix + ext
}
