package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnsafeManifestPath is returned for members the concat demuxer cannot
// read back: the manifest format has no escaping for single quotes.
var ErrUnsafeManifestPath = errors.New("path cannot be listed in a concat manifest")

// FormatManifest renders the concat demuxer list, one "file '<path>'" line
// per member, in the given order.
func FormatManifest(members []string) (string, error) {
	if len(members) == 0 {
		return "", fmt.Errorf("concat manifest needs at least one member")
	}
	var b strings.Builder
	for _, m := range members {
		if strings.ContainsAny(m, "'\n\r") {
			return "", fmt.Errorf("%w: %q", ErrUnsafeManifestPath, m)
		}
		fmt.Fprintf(&b, "file '%s'\n", m)
	}
	return b.String(), nil
}

// WriteManifest validates members and writes the manifest to path,
// replacing any previous file. Nothing is written if a member is rejected.
func WriteManifest(path string, members []string) error {
	body, err := FormatManifest(members)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("could not write concat manifest: %w", err)
	}
	return nil
}
