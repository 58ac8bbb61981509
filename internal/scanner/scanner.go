package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SnapshotExt is the only extension treated as a snapshot.
const SnapshotExt = ".json"

// Scanner lists snapshot files in a directory
type Scanner struct {
	rootDir string
}

// New creates a new scanner for the given root directory
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult represents a found snapshot with its company token
type ScanResult struct {
	Path    string
	Name    string
	Company string
}

// Scan lists the root directory (non-recursively) and returns every .json
// file, sorted by name. Snapshots whose name carries no company token are
// returned in skipped instead.
func (s *Scanner) Scan() (results []ScanResult, skipped []string, err error) {
	rootDir := s.expandHome(s.rootDir)

	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("scan failed: %w", err)
	}

	// ReadDir returns entries sorted by filename
	for _, entry := range entries {
		if entry.IsDir() || !isSnapshotFile(entry.Name()) {
			continue
		}

		path := filepath.Join(rootDir, entry.Name())
		company, ok := CompanyFromName(entry.Name())
		if !ok {
			skipped = append(skipped, path)
			continue
		}

		results = append(results, ScanResult{
			Path:    path,
			Name:    entry.Name(),
			Company: company,
		})
	}

	return results, skipped, nil
}

// isSnapshotFile checks the extension. The comparison is exact: "x.JSON" is not a snapshot.
func isSnapshotFile(name string) bool {
	return filepath.Ext(name) == SnapshotExt
}

// CompanyFromName extracts the company token from a snapshot file name.
// The company is the second "_"-delimited token, with the extension removed
// when it ends the name.
// "snapshot_ACME_2023-01.json" -> "ACME"
// "snapshot_ACME.json" -> "ACME"
func CompanyFromName(name string) (string, bool) {
	stem := strings.TrimSuffix(name, SnapshotExt)
	parts := strings.Split(stem, "_")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// CompanyFiles lists the snapshots belonging to one company
type CompanyFiles struct {
	Company string
	Paths   []string
}

// GroupByCompany groups scan results by company. Companies are returned in
// name order and keep the order of their files from results.
func GroupByCompany(results []ScanResult) []CompanyFiles {
	index := make(map[string]int)
	var groups []CompanyFiles
	for _, r := range results {
		i, ok := index[r.Company]
		if !ok {
			i = len(groups)
			index[r.Company] = i
			groups = append(groups, CompanyFiles{Company: r.Company})
		}
		groups[i].Paths = append(groups[i].Paths, r.Path)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Company < groups[j].Company
	})
	return groups
}

// expandHome expands ~ to home directory
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
