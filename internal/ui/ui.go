// Package ui рисует страницу-заглушку фронтенда.
package ui

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// Title заголовок страницы
const Title = "Test Generation Platform"

// IndexFile имя страницы в собранном каталоге
const IndexFile = "index.html"

var page = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<div id="root" class="min-h-screen bg-gray-100">
<h1>{{.Title}}</h1>
</div>
</body>
</html>
`))

// Render возвращает HTML страницы
func Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, struct{ Title string }{Title: Title}); err != nil {
		return nil, fmt.Errorf("render placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// Build пишет статическую сборку в dir и возвращает путь index.html
func Build(dir string) (string, error) {
	html, err := Render()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create build dir: %w", err)
	}
	path := filepath.Join(dir, IndexFile)
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", IndexFile, err)
	}
	return path, nil
}
