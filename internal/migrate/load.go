package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Migration filename parsing constants.
const (
	// filenameParts is the number of "_" separated parts in a migration
	// filename: YYYYMMDD, HHMMSS and the description.
	filenameParts = 3

	// versionParts is the number of leading parts forming the version.
	versionParts = 2
)

// Migration is a single versioned schema change.
type Migration struct {
	// Version orders migrations, e.g. 20260118_120000.
	Version string

	// Name is the description part of the filename.
	Name string

	UpSQL   string
	DownSQL string
}

// Load reads every migration script in dir of fsys, sorted by version.
// Files not matching the naming scheme are ignored.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", dir, err)
	}

	ups := make(map[string]string)
	downs := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, isUp, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}
		target := downs
		if isUp {
			target = ups
		}
		if prev, dup := target[version]; dup {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, prev, entry.Name())
		}
		target[version] = entry.Name()
	}

	migrations := make([]Migration, 0, len(ups))
	for version, upFile := range ups {
		m, err := readMigration(fsys, dir, version, upFile, downs[version])
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func readMigration(fsys fs.FS, dir, version, upFile, downFile string) (Migration, error) {
	up, err := fs.ReadFile(fsys, path.Join(dir, upFile))
	if err != nil {
		return Migration{}, fmt.Errorf("reading %s: %w", upFile, err)
	}
	m := Migration{
		Version: version,
		Name:    migrationName(upFile),
		UpSQL:   string(up),
	}
	if downFile != "" {
		down, err := fs.ReadFile(fsys, path.Join(dir, downFile))
		if err != nil {
			return Migration{}, fmt.Errorf("reading %s: %w", downFile, err)
		}
		m.DownSQL = string(down)
	}
	return m, nil
}

// parseFilename extracts the version and direction of a migration filename.
func parseFilename(name string) (version string, isUp bool, ok bool) {
	base, found := strings.CutSuffix(name, ".sql")
	if !found {
		return "", false, false
	}
	switch {
	case strings.HasSuffix(base, ".up"):
		isUp = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", false, false
	}

	parts := strings.SplitN(base, "_", filenameParts)
	if len(parts) < versionParts || !digits(parts[0]) || !digits(parts[1]) {
		return "", false, false
	}
	return parts[0] + "_" + parts[1], isUp, true
}

// migrationName returns the description part of a filename:
// "20260118_120000_initial_schema.up.sql" gives "initial_schema".
func migrationName(filename string) string {
	base := strings.TrimSuffix(filename, ".sql")
	base = strings.TrimSuffix(base, ".up")
	base = strings.TrimSuffix(base, ".down")

	parts := strings.SplitN(base, "_", filenameParts)
	if len(parts) == filenameParts {
		return parts[versionParts]
	}
	return base
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
