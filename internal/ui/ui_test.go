package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Placeholder(t *testing.T) {
	html, err := Render()
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	require.NoError(t, err)

	root := doc.Find("body > div").First()
	require.Equal(t, 1, root.Length())
	assert.True(t, root.HasClass("min-h-screen"))
	assert.True(t, root.HasClass("bg-gray-100"))

	headings := doc.Find("h1")
	require.Equal(t, 1, headings.Length())
	assert.Equal(t, "Test Generation Platform", headings.Text())
	assert.Equal(t, 1, root.Find("h1").Length())
}

func TestBuild(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build")

	path, err := Build(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "index.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `class="min-h-screen bg-gray-100"`)
}
