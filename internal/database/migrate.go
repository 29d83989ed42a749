package database

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Migration is one versioned pair of SQL scripts.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Checksum identifies the up script so edits to applied migrations are caught.
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.Up))
	return hex.EncodeToString(sum[:])
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var embeddedFS embed.FS

var (
	embeddedOnce sync.Once
	embedded     []Migration
	embeddedErr  error
)

// EmbeddedMigrations returns the migrations compiled into the binary, oldest first.
func EmbeddedMigrations() ([]Migration, error) {
	embeddedOnce.Do(func() {
		sub, err := fs.Sub(embeddedFS, "migrations")
		if err != nil {
			embeddedErr = err
			return
		}
		embedded, embeddedErr = LoadMigrations(sub)
	})
	return embedded, embeddedErr
}

// LoadMigrations reads NNNNNN_name.up.sql / .down.sql pairs from the root of fsys.
// Every up script needs a down script and versions must be unique.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(names))
	out := make([]Migration, 0, len(names))
	for _, name := range names {
		base := strings.TrimSuffix(path.Base(name), ".up.sql")
		rawVersion, label, ok := strings.Cut(base, "_")
		if !ok || label == "" {
			return nil, fmt.Errorf("migration %s: expected <version>_<name>.up.sql", name)
		}
		version, err := strconv.Atoi(rawVersion)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: invalid version %q", name, rawVersion)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", version, prev, name)
		}
		seen[version] = name

		up, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(fsys, base+".down.sql")
		if err != nil {
			return nil, fmt.Errorf("migration %s: missing down script: %w", base, err)
		}

		out = append(out, Migration{Version: version, Name: label, Up: string(up), Down: string(down)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
