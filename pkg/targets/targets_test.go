package targets

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Fnames.txt", "main\nparse\n\n  main  \nemit\n")

	names, err := ReadNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "parse", "emit"}, names)
}

func TestReadBlockNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "BBnames.txt",
		"libfoo:parse:entry\nlibfoo:parse:entry:7\nlibfoo:emit:exit\n")

	labels, err := ReadBlockNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"libfoo:parse:entry", "libfoo:emit:exit"}, labels)
}

func TestStripQualifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mod:fn:bb", "mod:fn:bb"},
		{"mod:fn:bb:3", "mod:fn:bb"},
		{"mod:fn:bb:3:extra", "mod:fn:bb"},
		{"foo.c:12", "foo.c:12"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := StripQualifier(tt.in); got != tt.want {
				t.Errorf("StripQualifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReadCallSites(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "BBcalls.txt",
		"foo.c:10,helper\n"+
			"foo.c:12,emit,3\n"+
			"onlyonefield\n"+
			"a,b,c,d\n"+
			",empty\n")

	sites, discarded, err := ReadCallSites(path)
	require.NoError(t, err)
	assert.Equal(t, 3, discarded)
	require.Len(t, sites, 2)
	assert.Equal(t, "foo.c:10", sites[0].Block)
	assert.Equal(t, "helper", sites[0].Callee)
	assert.Equal(t, "foo.c:12", sites[1].Block)
	assert.Equal(t, "emit", sites[1].Callee)
}

func TestReadWhitelist(t *testing.T) {
	dir := t.TempDir()

	set, present, err := ReadWhitelist(filepath.Join(dir, "instrumented_funcs.txt"))
	require.NoError(t, err)
	assert.False(t, present)
	assert.Nil(t, set)

	path := writeFile(t, dir, "instrumented_funcs.txt", "main\nparse\n")
	set, present, err = ReadWhitelist(path)
	require.NoError(t, err)
	assert.True(t, present)
	assert.True(t, reflect.DeepEqual(map[string]struct{}{
		"main":  {},
		"parse": {},
	}, set))
}
