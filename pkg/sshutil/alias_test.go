package sshutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consecutiveConfig(k int) string {
	var b strings.Builder
	for i := 1; i <= k; i++ {
		b.WriteString(HostBlock{
			Alias:        "srv" + strconv.Itoa(i),
			Hostname:     "10.0.0." + strconv.Itoa(i),
			User:         "root",
			IdentityFile: "/home/u/.ssh/key10.0.0." + strconv.Itoa(i),
		}.Render())
	}
	return b.String()
}

func TestHostBlockRender(t *testing.T) {
	got := HostBlock{Alias: "srv1", Hostname: "203.0.113.5", User: "root", IdentityFile: "/home/u/.ssh/key203.0.113.5"}.Render()
	assert.Equal(t, "\nHost srv1\n    Hostname 203.0.113.5\n    User root\n    IdentityFile /home/u/.ssh/key203.0.113.5\n", got)
}

func TestNextAlias_Consecutive(t *testing.T) {
	for _, k := range []int{0, 1, 2, 5, 12} {
		got := NextAlias([]byte(consecutiveConfig(k)), "srv")
		assert.Equal(t, "srv"+strconv.Itoa(k+1), got, "k=%d", k)
	}
}

func TestNextAlias_Gap(t *testing.T) {
	content := "Host srv1\n    Hostname a\n\nHost srv3\n    Hostname c\n"
	assert.Equal(t, "srv2", NextAlias([]byte(content), "srv"))
}

func TestNextAlias_OutOfOrder(t *testing.T) {
	// A scan that restarts on each hit would still be right here, but one
	// that only looks forward would stop at srv2.
	content := "Host srv2\nHost srv1\nHost srv3\n"
	assert.Equal(t, "srv4", NextAlias([]byte(content), "srv"))
}

func TestUsedIndices(t *testing.T) {
	content := `
# Host srv7 is commented out
Host srv1 web
Host=srv4
host srv2
Host srv10x srv0 srv05 srvx
Host "srv6"
Match user root
Host srv9
`
	assert.Equal(t, []int{1, 2, 4, 6, 9}, UsedIndices([]byte(content), "srv"))
}

func TestUsedIndices_CustomPrefix(t *testing.T) {
	content := "Host vps1\nHost srv1\nHost vps2\n"
	assert.Equal(t, []int{1, 2}, UsedIndices([]byte(content), "vps"))
	assert.Equal(t, "vps3", NextAlias([]byte(content), "vps"))
}

func TestLowestFree(t *testing.T) {
	assert.Equal(t, 1, LowestFree(nil))
	assert.Equal(t, 1, LowestFree([]int{2, 3}))
	assert.Equal(t, 4, LowestFree([]int{1, 2, 3}))
	assert.Equal(t, 2, LowestFree([]int{3, 1}))
}

func TestAddHost_NewFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".ssh")
	path := filepath.Join(dir, "config")

	res, err := AddHost(path, "srv", HostBlock{Hostname: "203.0.113.5", User: "root", IdentityFile: "/k"})
	require.NoError(t, err)
	assert.Equal(t, "srv1", res.Alias)
	assert.Equal(t, 1, res.Index)
	assert.False(t, res.Reused)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\nHost srv1\n    Hostname 203.0.113.5\n    User root\n    IdentityFile /k\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())
}

func TestAddHost_PreservesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	before := "Host github.com\n    User git\n" + consecutiveConfig(3) + "# trailing comment without newline"
	require.NoError(t, os.WriteFile(path, []byte(before), 0644))

	res, err := AddHost(path, "srv", HostBlock{Hostname: "198.51.100.9", User: "root", IdentityFile: "/k9"})
	require.NoError(t, err)
	assert.Equal(t, "srv4", res.Alias)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(after), before), "existing content must be a prefix")
	assert.Contains(t, string(after[len(before):]), "Host srv4\n")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm(), "mode of an existing config is kept")

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAddHost_FillsGap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("Host srv1\n    Hostname a\nHost srv3\n    Hostname c\n"), 0600))

	res, err := AddHost(path, "srv", HostBlock{Hostname: "b", User: "root", IdentityFile: "/kb"})
	require.NoError(t, err)
	assert.Equal(t, "srv2", res.Alias)
}

func TestAddHost_ReusesMatchingBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	block := HostBlock{Hostname: "203.0.113.5", User: "root", IdentityFile: "/home/u/.ssh/key203.0.113.5"}

	first, err := AddHost(path, "srv", block)
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	second, err := AddHost(path, "srv", block)
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Alias, second.Alias)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	// A different key for the same host gets its own alias
	third, err := AddHost(path, "srv", HostBlock{Hostname: "203.0.113.5", User: "root", IdentityFile: "/other"})
	require.NoError(t, err)
	assert.False(t, third.Reused)
	assert.Equal(t, "srv2", third.Alias)
}

func TestAddHost_PortChangeGetsNewAlias(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	block := HostBlock{Hostname: "203.0.113.5", User: "root", IdentityFile: "/k"}

	first, err := AddHost(path, "srv", block)
	require.NoError(t, err)

	block.Port = 22
	same, err := AddHost(path, "srv", block)
	require.NoError(t, err)
	assert.True(t, same.Reused, "port 22 matches a block without a Port line")
	assert.Equal(t, first.Alias, same.Alias)

	block.Port = 2222
	moved, err := AddHost(path, "srv", block)
	require.NoError(t, err)
	assert.False(t, moved.Reused)
	assert.Equal(t, "srv2", moved.Alias)

	again, err := AddHost(path, "srv", block)
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, "srv2", again.Alias)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Host srv2\n    Hostname 203.0.113.5\n    User root\n    IdentityFile /k\n    Port 2222\n")
}

func TestAddHost_FollowsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dotfiles-ssh-config")
	link := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(target, []byte("Host srv1\n    Hostname a\n"), 0600))
	require.NoError(t, os.Symlink("dotfiles-ssh-config", link))

	res, err := AddHost(link, "srv", HostBlock{Hostname: "b", User: "root", IdentityFile: "/kb"})
	require.NoError(t, err)
	assert.Equal(t, "srv2", res.Alias)
	assert.Equal(t, link, res.Path)

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "config must still be a symlink")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Host srv2\n    Hostname b\n")
}

func TestUsedIndices_LongLine(t *testing.T) {
	content := "Host srv1\n# " + strings.Repeat("x", 100*1024) + "\nHost srv2\n    Hostname b\n"

	assert.Equal(t, []int{1, 2}, UsedIndices([]byte(content), "srv"))
	assert.Equal(t, "srv3", NextAlias([]byte(content), "srv"))
	require.Len(t, ScanAliases([]byte(content), "srv"), 2)
}

func TestScanAliases(t *testing.T) {
	content := `
Host srv2
    HostName 10.0.0.2
    User root
    IdentityFile ~/.ssh/key10.0.0.2

Host other
    HostName other.example.com

Match all
    User ignored

Host srv1
    Hostname 10.0.0.1
    Port 2222
`
	entries := ScanAliases([]byte(content), "srv")
	require.Len(t, entries, 2)
	assert.Equal(t, "srv1", entries[0].Alias)
	assert.Equal(t, "10.0.0.1", entries[0].Hostname)
	assert.Equal(t, "2222", entries[0].Port)
	assert.Equal(t, "", entries[0].User)

	assert.Equal(t, "srv2", entries[1].Alias)
	assert.Equal(t, filepath.Join(homeDir(), ".ssh", "key10.0.0.2"), entries[1].IdentityFile)
}

func TestListAliases_MissingFile(t *testing.T) {
	entries, err := ListAliases(filepath.Join(t.TempDir(), "nope"), "srv")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
