// Package render holds the presentation helpers shared by the page
// templates.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy   = bluemonday.UGCPolicy()
)

// Markdown converts assistant content to sanitized HTML. Content that fails
// to convert is shown escaped.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}

// EmotionIcon is a renderable emotion tag.
type EmotionIcon struct {
	Name  string
	Glyph string
}

var emotionGlyphs = map[string]string{
	"happy":    "😄",
	"love":     "❤️",
	"thumbsup": "👍",
}

// EmotionIcons maps tags through the fixed icon table, skipping unknown tags.
func EmotionIcons(emotions []string) []EmotionIcon {
	icons := make([]EmotionIcon, 0, len(emotions))
	for _, e := range emotions {
		glyph, ok := emotionGlyphs[e]
		if !ok {
			continue
		}
		icons = append(icons, EmotionIcon{Name: e, Glyph: glyph})
	}
	return icons
}

// FileSize formats a byte count in KB with one decimal. Unknown (zero)
// sizes render as the empty string.
func FileSize(size int64) string {
	if size <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f KB", float64(size)/1024)
}

// Funcs exposes the helpers to html/template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": Markdown,
		"emotions": EmotionIcons,
		"filesize": FileSize,
	}
}
