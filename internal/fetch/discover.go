// Package fetch collects the JavaScript a page loads: script tags, preloads,
// bundle and chunk names mentioned in markup, and chunks referenced by the
// downloaded bundles themselves.
package fetch

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// webpack/vite style bundle names: main.3f2a.js, runtime~main.js, vendors-chunk.js
	bundlePattern  = regexp.MustCompile(`["']([^"']*?(?:chunk|bundle|main|runtime|vendor)[^"']*?\.js)["']`)
	dynamicPattern = regexp.MustCompile(`(?:import|loadModule|require)\s*\(\s*['"]([^"']+\.js)['"]`)
	genericPattern = regexp.MustCompile(`["']([^"'\s]+\.js)["']`)
	chunkPattern   = regexp.MustCompile(`["']([^"']+?chunk[^"']+?\.js)["']`)
)

// Discover returns the script URLs referenced by an HTML document, resolved
// against base, in discovery order and without repeats.
func Discover(html, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	found := newURLSet()
	add := func(ref string) {
		if resolved := resolve(baseURL, ref); resolved != "" {
			found.add(resolved)
		}
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("base[href]").First().Each(func(i int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				if u, err := baseURL.Parse(href); err == nil {
					baseURL = u
				}
			}
		})

		doc.Find("script[src]").Each(func(i int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			add(src)
		})

		doc.Find("link[href]").Each(func(i int, s *goquery.Selection) {
			rel := strings.ToLower(s.AttrOr("rel", ""))
			if !strings.Contains(rel, "preload") && !strings.Contains(rel, "modulepreload") {
				return
			}
			href, _ := s.Attr("href")
			as := strings.ToLower(s.AttrOr("as", ""))
			if as == "script" || strings.Contains(rel, "modulepreload") || isScriptPath(href) {
				add(href)
			}
		})
	}

	for _, m := range bundlePattern.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}
	for _, m := range dynamicPattern.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}
	for _, m := range genericPattern.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}

	return found.list()
}

// ChunkReferences returns the chunk file names a script mentions.
func ChunkReferences(content string) []string {
	found := newURLSet()
	for _, m := range chunkPattern.FindAllStringSubmatch(content, -1) {
		if !isInline(m[1]) {
			found.add(m[1])
		}
	}
	return found.list()
}

// StaticBase infers the directory chunks are served from, given the URL of a
// script that references them: https://x/static/js/main.js gives
// https://x/static/js/.
func StaticBase(scriptURL string) string {
	u, err := url.Parse(scriptURL)
	if err != nil || u.Host == "" {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 2 {
		return u.Scheme + "://" + u.Host + "/" + strings.Join(parts[:len(parts)-1], "/") + "/"
	}
	return u.Scheme + "://" + u.Host + "/"
}

// ResolveChunk resolves a chunk reference found in a script.
func ResolveChunk(scriptURL, chunk string) string {
	base, err := url.Parse(StaticBase(scriptURL))
	if err != nil || base.Host == "" {
		return ""
	}
	// webpack emits chunk names relative to the public path, often with the
	// directory repeated ("static/js/12.chunk.js")
	if !strings.HasPrefix(chunk, "/") && !strings.Contains(chunk, "://") {
		if dir := strings.Trim(base.Path, "/"); dir != "" && strings.HasPrefix(chunk, dir+"/") {
			chunk = "/" + chunk
		}
	}
	return resolve(base, chunk)
}

// FileName returns the local file name for a script URL: the base name of
// its path.
func FileName(scriptURL string) string {
	u, err := url.Parse(scriptURL)
	if err != nil {
		return "script.js"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "script.js"
	}
	return name
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || isInline(ref) {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func isInline(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") ||
		strings.HasPrefix(lower, "javascript:")
}

func isScriptPath(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return ext == ".js" || ext == ".mjs" || ext == ".cjs"
}

// urlSet keeps first-seen order.
type urlSet struct {
	seen  map[string]bool
	order []string
}

func newURLSet() *urlSet {
	return &urlSet{seen: make(map[string]bool)}
}

func (s *urlSet) add(u string) {
	if s.seen[u] {
		return
	}
	s.seen[u] = true
	s.order = append(s.order, u)
}

func (s *urlSet) list() []string {
	return append([]string{}, s.order...)
}
