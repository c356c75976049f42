// Package render provides markdown rendering with syntax-highlighted code
// blocks for the editor's live preview.
package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rs/zerolog"

	"github.com/scribehq/scribe/internal/cache"
)

var renderLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

// Mutex to protect the check-render-set operation in RenderMarkdownCached
var renderCacheMutex sync.Mutex

func RenderMarkdownCached(md []byte, contentHash, highlightTheme string) []byte {
	if contentHash == "" {
		renderLogger.Warn().Msg("Content hash is empty, skipping cache check")
		return RenderMarkdown(md, highlightTheme)
	}

	// First check cache without locking (fast path for cache hits)
	if cached, found := cache.GetRenderedMarkdown(contentHash, highlightTheme); found {
		renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Cache hit for rendered markdown")
		return cached.HTML
	}

	renderLogger.Debug().Str("contentHash", contentHash).Str("highlightTheme", highlightTheme).Msg("Cache miss for rendered markdown")
	renderCacheMutex.Lock()
	defer renderCacheMutex.Unlock()

	html := RenderMarkdown(md, highlightTheme)
	cache.SetRenderedMarkdown(contentHash, highlightTheme, html)

	return html
}

func RenderMarkdown(md []byte, highlightTheme string) []byte {
	opts := md_html.RendererOptions{
		Flags:    md_html.CommonFlags | md_html.HrefTargetBlank | md_html.FootnoteReturnLinks,
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if code, ok := node.(*ast.CodeBlock); ok && entering {
				var lang string
				if info := code.Info; info != nil {
					lang = string(info)
				}
				highlighted := HighlightCode(string(code.Literal), lang, highlightTheme)
				fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", highlighted)
				return ast.GoToNext, true
			}

			return ast.GoToNext, false
		},
	}

	doc := parser.NewWithExtensions(
		parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough | parser.SpaceHeadings |
			parser.HeadingIDs | parser.BackslashLineBreak | parser.SuperSubscript | parser.DefinitionLists | parser.MathJax |
			parser.AutoHeadingIDs | parser.Footnotes | parser.OrderedListStart | parser.Attributes |
			parser.NonBlockingSpace,
	).Parse(markdown.NormalizeNewlines(md))

	return markdown.Render(doc, md_html.NewRenderer(opts))
}
