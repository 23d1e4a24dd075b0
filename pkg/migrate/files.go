package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	filenameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeRe   = regexp.MustCompile(`[^a-z0-9]+`)
)

type migrationFile struct {
	version int64
	name    string
}

func parseFilename(filename string) (migrationFile, bool) {
	m := filenameRe.FindStringSubmatch(filename)
	if m == nil {
		return migrationFile{}, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return migrationFile{}, false
	}
	return migrationFile{version: v, name: m[2]}, true
}

func slug(name string) string {
	return strings.Trim(unsafeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// nextVersion stamps now, bumped past latest so files always sort after what exists.
func nextVersion(now time.Time, latest int64) int64 {
	v, _ := strconv.ParseInt(now.UTC().Format(versionLayout), 10, 64)
	if v <= latest {
		return latest + 1
	}
	return v
}

// CreateSQLMigration writes <dir>/<version>_<slug>.sql with an empty goose
// Up/Down pair and returns its path.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createAt(dir, name, time.Now())
}

func createAt(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	s := slug(name)
	if s == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	existing, err := scan(os.DirFS(dir), ".")
	if err != nil {
		return "", err
	}
	var latest int64
	for _, f := range existing {
		latest = max(latest, f.version)
	}

	fullpath := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", nextVersion(now, latest), s))
	body := fmt.Sprintf(`-- %s
-- +goose Up
-- +goose StatementBegin
SELECT 1;
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
SELECT 1;
-- +goose StatementEnd
`, strings.ReplaceAll(s, "_", " "))

	f, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", fullpath, err)
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, f.Close()
}

// ValidateDir checks the migrations on disk under dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateFS(embedded, embeddedDir)
}

// ValidateFS checks filenames, version uniqueness and goose annotations of every
// .sql file under dir.
func ValidateFS(fsys fs.FS, dir string) error {
	files, err := scan(fsys, dir)
	if err != nil {
		return err
	}
	for filename := range files {
		b, err := fs.ReadFile(fsys, path.Join(dir, filename))
		if err != nil {
			return fmt.Errorf("read file %q: %w", filename, err)
		}
		if err := checkAnnotations(string(b)); err != nil {
			return fmt.Errorf("migration %q: %w", filename, err)
		}
	}
	return nil
}

// scan indexes the .sql files in dir by filename, rejecting bad names and
// reused versions.
func scan(fsys fs.FS, dir string) (map[string]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	out := make(map[string]migrationFile, len(entries))
	byVersion := map[int64]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		f, ok := parseFilename(e.Name())
		if !ok {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		if prev, dup := byVersion[f.version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", f.version, prev, e.Name())
		}
		byVersion[f.version] = e.Name()
		out[e.Name()] = f
	}
	return out, nil
}

func checkAnnotations(sql string) error {
	if !strings.Contains(sql, "-- +goose Up") {
		return fmt.Errorf(`missing "-- +goose Up"`)
	}
	if !strings.Contains(sql, "-- +goose Down") {
		return fmt.Errorf(`missing "-- +goose Down"`)
	}
	begins := strings.Count(sql, "-- +goose StatementBegin")
	ends := strings.Count(sql, "-- +goose StatementEnd")
	if begins != ends {
		return fmt.Errorf("unbalanced StatementBegin/StatementEnd (%d/%d)", begins, ends)
	}
	return nil
}
