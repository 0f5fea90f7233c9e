package jobdesc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJD(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestStoreLoad(t *testing.T) {
	dir := t.TempDir()
	writeJD(t, dir, "backend.txt", "Backend engineer\nGo, PostgreSQL, Docker")
	writeJD(t, dir, "data.html", `<html><head><title>x</title><style>p{}</style></head><body>
<h1>Data Scientist</h1>
<ul><li>Python and <b>SQL</b></li><li>Machine learning</li></ul>
<script>var a = 1;</script>
</body></html>`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))

	s := NewStore(dir)
	ctx := context.Background()

	text, err := s.Load(ctx, "backend.txt")
	require.NoError(t, err)
	assert.Equal(t, "Backend engineer\nGo, PostgreSQL, Docker", text)

	text, err = s.Load(ctx, "data.html")
	require.NoError(t, err)
	assert.Equal(t, "Data Scientist\nPython and SQL\nMachine learning", text)

	tests := []struct {
		name string
		want error
	}{
		{"missing.txt", ErrNotFound},
		{"sub.txt", ErrNotFound},
		{"../backend.txt", ErrInvalidName},
		{"a/b.txt", ErrInvalidName},
		{"", ErrInvalidName},
		{"..", ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Load(ctx, tt.name)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	writeJD(t, dir, "b.txt", "b")
	writeJD(t, dir, "a.html", "<p>a</p>")
	writeJD(t, dir, "notes.md", "ignored")

	names, err := NewStore(dir).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.html", "b.txt"}, names)

	_, err = NewStore(filepath.Join(dir, "nope")).List()
	assert.Error(t, err)
}

func TestHTMLTextWithoutBlocks(t *testing.T) {
	text, err := HTMLText([]byte("<div>Go   developer <span>remote</span></div>"))
	require.NoError(t, err)
	assert.Equal(t, "Go developer remote", text)
}
