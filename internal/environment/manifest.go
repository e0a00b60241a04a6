package environment

import (
	"fmt"
	"os"

	"howett.net/plist"
)

type bundleManifest struct {
	ShortVersion string `plist:"CFBundleShortVersionString"`
	BuildVersion string `plist:"CFBundleVersion"`
}

// ManifestVersion reads the application version label from an Info.plist manifest,
// e.g. "2.3.1 (412)". Both XML and binary plists are accepted.
func ManifestVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest bundleManifest
	if _, err := plist.Unmarshal(data, &manifest); err != nil {
		return "", fmt.Errorf("failed to parse manifest: %w", err)
	}

	switch {
	case manifest.ShortVersion != "" && manifest.BuildVersion != "" && manifest.BuildVersion != manifest.ShortVersion:
		return fmt.Sprintf("%s (%s)", manifest.ShortVersion, manifest.BuildVersion), nil
	case manifest.ShortVersion != "":
		return manifest.ShortVersion, nil
	case manifest.BuildVersion != "":
		return manifest.BuildVersion, nil
	}
	return "", fmt.Errorf("manifest %s has no version", path)
}
