package coverage

import (
	"bytes"
	"fmt"
	"math"
	"text/template"
)

// BadgeFile имя файла бейджа в артефактах и релизе
const BadgeFile = "coverage-badge.svg"

// цвета как у coverage-badge, от большего порога к меньшему
var badgeColors = []struct {
	min   float64
	color string
}{
	{95, "#4c1"},
	{90, "#97CA00"},
	{75, "#a4a61d"},
	{60, "#dfb317"},
	{40, "#fe7d37"},
	{0, "#e05d44"},
}

// BadgeColor возвращает цвет бейджа для процента
func BadgeColor(pct float64) string {
	for _, c := range badgeColors {
		if pct >= c.min {
			return c.color
		}
	}
	return badgeColors[len(badgeColors)-1].color
}

var badgeTemplate = template.Must(template.New("badge").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="99" height="20">
    <linearGradient id="b" x2="0" y2="100%">
        <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
        <stop offset="1" stop-opacity=".1"/>
    </linearGradient>
    <mask id="a">
        <rect width="99" height="20" rx="3" fill="#fff"/>
    </mask>
    <g mask="url(#a)">
        <path fill="#555" d="M0 0h63v20H0z"/>
        <path fill="{{.Color}}" d="M63 0h36v20H63z"/>
        <path fill="url(#b)" d="M0 0h99v20H0z"/>
    </g>
    <g fill="#fff" text-anchor="middle" font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="11">
        <text x="31.5" y="15" fill="#010101" fill-opacity=".3">coverage</text>
        <text x="31.5" y="14">coverage</text>
        <text x="80" y="15" fill="#010101" fill-opacity=".3">{{.Value}}</text>
        <text x="80" y="14">{{.Value}}</text>
    </g>
</svg>
`))

// Badge рисует SVG бейдж с процентом покрытия, округленным вниз
func Badge(pct float64) ([]byte, error) {
	pct = math.Floor(pct)

	var buf bytes.Buffer
	err := badgeTemplate.Execute(&buf, struct {
		Color string
		Value string
	}{
		Color: BadgeColor(pct),
		Value: fmt.Sprintf("%d%%", int(pct)),
	})
	if err != nil {
		return nil, fmt.Errorf("render badge: %w", err)
	}
	return buf.Bytes(), nil
}
