package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
)

var slugReplacer = strings.NewReplacer(
	" ", "_",
	".", "_",
	"-", "_",
	"(", "_",
	")", "_",
)

// Slug lowercases s and replaces spaces, dots, dashes and parentheses with
// underscores. Table and column names both go through it.
func Slug(s string) string {
	return slugReplacer.Replace(strings.ToLower(s))
}

// tableName slugs title into a table name SQLite will create. Empty
// names, the sqlite_ prefix and the manifest table are rejected with
// ErrReservedTableName.
func tableName(title string) (string, error) {
	name := Slug(title)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty title", ErrReservedTableName)
	case strings.HasPrefix(name, "sqlite_"), name == storage.ManifestTable:
		return "", fmt.Errorf("%w: %s", ErrReservedTableName, name)
	}
	return name, nil
}

// columnNames slugs header and makes every name non-empty and unique.
// An empty name becomes column_<position>; a repeated one gets _<n>.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		name := Slug(strings.TrimSpace(h))
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		used[candidate] = true
		names[i] = candidate
	}
	return names
}
