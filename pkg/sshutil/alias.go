package sshutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rileyhilliard/vpsinit/internal/util"
)

// HostBlock is one alias entry written to the SSH client config.
type HostBlock struct {
	Alias        string
	Hostname     string
	User         string
	IdentityFile string
	// Port is written only when non-zero.
	Port int
}

// Render returns the block in the layout appended to the config file. The
// leading newline separates it from whatever precedes it.
func (b HostBlock) Render() string {
	s := fmt.Sprintf("\nHost %s\n    Hostname %s\n    User %s\n    IdentityFile %s\n",
		b.Alias, b.Hostname, b.User, b.IdentityFile)
	if b.Port != 0 {
		s += fmt.Sprintf("    Port %d\n", b.Port)
	}
	return s
}

// AliasResult reports what AddHost did.
type AliasResult struct {
	Alias  string
	Index  int
	Reused bool
	Path   string
}

// AddHost registers block in the SSH config at path under the lowest free
// <prefix>N alias. block.Alias is ignored and filled in. If an existing
// <prefix>N block already maps the same Hostname, IdentityFile and Port,
// that alias is returned and the file is left untouched.
//
// Existing content is never rewritten: the new file is the old bytes
// followed by the new block, swapped in with an atomic rename. A symlinked
// config is followed so the link's target gets the block and the link
// stays in place.
func AddHost(path, prefix string, block HostBlock) (AliasResult, error) {
	file, err := util.ResolveSymlinks(path)
	if err != nil {
		return AliasResult{}, err
	}

	content, err := os.ReadFile(file)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		content = nil
		if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
			return AliasResult{}, fmt.Errorf("create %s: %w", filepath.Dir(file), err)
		}
	default:
		return AliasResult{}, fmt.Errorf("read %s: %w", file, err)
	}

	if existing, ok := FindExisting(content, prefix, block); ok {
		idx, _ := aliasIndex(existing.Alias, prefix)
		return AliasResult{Alias: existing.Alias, Index: idx, Reused: true, Path: path}, nil
	}

	idx := LowestFree(UsedIndices(content, prefix))
	block.Alias = prefix + strconv.Itoa(idx)

	out := make([]byte, 0, len(content)+128)
	out = append(out, content...)
	out = append(out, block.Render()...)

	// A new file gets 0600; an existing one keeps its mode.
	if err := util.WriteFileAtomic(file, out, 0600); err != nil {
		return AliasResult{}, err
	}
	return AliasResult{Alias: block.Alias, Index: idx, Path: path}, nil
}

// NextAlias returns the alias AddHost would allocate for a new host.
func NextAlias(content []byte, prefix string) string {
	return prefix + strconv.Itoa(LowestFree(UsedIndices(content, prefix)))
}

// UsedIndices returns every N used as <prefix>N on any Host line of the
// config, sorted and deduplicated. All Host lines are considered, including
// those after a Match block.
func UsedIndices(content []byte, prefix string) []int {
	seen := make(map[int]bool)
	for _, line := range hostLines(content) {
		for _, pattern := range line {
			if idx, ok := aliasIndex(pattern, prefix); ok {
				seen[idx] = true
			}
		}
	}

	indices := make([]int, 0, len(seen))
	for idx := range seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// LowestFree returns the smallest positive integer not in used.
func LowestFree(used []int) int {
	taken := make(map[int]bool, len(used))
	for _, n := range used {
		taken[n] = true
	}
	n := 1
	for taken[n] {
		n++
	}
	return n
}

// FindExisting returns the <prefix>N block that maps block's Hostname,
// IdentityFile and Port, if any. A missing Port line and port 0 both mean 22.
func FindExisting(content []byte, prefix string, block HostBlock) (SSHHostEntry, bool) {
	want := expandPath(block.IdentityFile)
	wantPort := block.Port
	if wantPort == 0 {
		wantPort = 22
	}
	for _, entry := range ScanAliases(content, prefix) {
		if entry.Hostname == block.Hostname && entry.IdentityFile == want && entryPort(entry) == wantPort {
			return entry, true
		}
	}
	return SSHHostEntry{}, false
}

// entryPort returns the entry's port, 22 when unset. An unparsable value
// gives -1 so it never matches.
func entryPort(e SSHHostEntry) int {
	if e.Port == "" {
		return 22
	}
	n, err := strconv.Atoi(e.Port)
	if err != nil {
		return -1
	}
	return n
}

// ScanAliases returns the <prefix>N blocks of the config ordered by N. It
// reads directives literally and does not apply wildcard inheritance.
func ScanAliases(content []byte, prefix string) []SSHHostEntry {
	type indexed struct {
		idx   int
		entry SSHHostEntry
	}
	var found []indexed
	var current []int // positions in found that the active block fills

	for _, line := range configLines(content) {
		key, value := splitDirective(line)
		switch key {
		case "":
			continue
		case "host":
			current = current[:0]
			for _, pattern := range strings.Fields(value) {
				if idx, ok := aliasIndex(pattern, prefix); ok {
					found = append(found, indexed{idx: idx, entry: SSHHostEntry{Alias: pattern}})
					current = append(current, len(found)-1)
				}
			}
		case "match":
			current = current[:0]
		default:
			for _, pos := range current {
				e := &found[pos].entry
				switch key {
				case "hostname":
					e.Hostname = value
				case "user":
					e.User = value
				case "port":
					e.Port = value
				case "identityfile":
					e.IdentityFile = expandPath(value)
				}
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].idx < found[j].idx })
	entries := make([]SSHHostEntry, 0, len(found))
	for _, f := range found {
		entries = append(entries, f.entry)
	}
	return entries
}

// ListAliases reads the config at path and returns its <prefix>N blocks.
// A missing file yields none.
func ListAliases(path, prefix string) ([]SSHHostEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ScanAliases(content, prefix), nil
}

// hostLines returns the patterns of every Host line.
func hostLines(content []byte) [][]string {
	var out [][]string
	for _, line := range configLines(content) {
		key, value := splitDirective(line)
		if key == "host" {
			out = append(out, strings.Fields(value))
		}
	}
	return out
}

// configLines splits content into lines with no length limit, so one very
// long line can't hide the Host lines after it.
func configLines(content []byte) []string {
	return strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
}

// splitDirective splits "Keyword value", "Keyword=value" and
// "Keyword = value" lines. Comments and blank lines give an empty key.
// Keywords are lowercased; values keep their case with quotes removed.
func splitDirective(line string) (string, string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", ""
	}
	i := strings.IndexAny(line, " \t=")
	if i < 0 {
		return strings.ToLower(line), ""
	}
	key := strings.ToLower(line[:i])
	value := strings.TrimSpace(line[i:])
	value = strings.TrimSpace(strings.TrimPrefix(value, "="))
	value = strings.Trim(value, `"`)
	return key, value
}

var digitsRe = regexp.MustCompile(`^[0-9]+$`)

// aliasIndex parses N out of <prefix>N. Only positive decimal N counts;
// srv0, srv01 and srv1a are not aliases of this form.
func aliasIndex(pattern, prefix string) (int, bool) {
	if !strings.HasPrefix(pattern, prefix) {
		return 0, false
	}
	digits := pattern[len(prefix):]
	if !digitsRe.MatchString(digits) || strings.HasPrefix(digits, "0") {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
