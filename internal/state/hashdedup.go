package state

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// cacheBusters are query parameters that only defeat caching and never
// change which script is served.
var cacheBusters = map[string]bool{
	"v": true, "ver": true, "version": true, "_": true, "t": true,
	"ts": true, "timestamp": true, "cb": true, "nocache": true, "cache": true,
	"hash": true, "rev": true,
}

// NormalizeScriptURL gives every spelling of one script the same key: scheme
// and host are lowercased, default ports and fragments dropped, dot segments
// resolved, and cache-busting query parameters removed.
func NormalizeScriptURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	if (parsed.Scheme == "http" && strings.HasSuffix(parsed.Host, ":80")) ||
		(parsed.Scheme == "https" && strings.HasSuffix(parsed.Host, ":443")) {
		parsed.Host = parsed.Host[:strings.LastIndexByte(parsed.Host, ':')]
	}

	parsed.Path = normalizePath(parsed.Path)
	parsed.RawPath = ""
	parsed.Fragment = ""
	parsed.RawFragment = ""
	if parsed.RawQuery != "" {
		parsed.RawQuery = normalizeQuery(parsed.RawQuery)
	}

	return parsed.String()
}

// normalizePath collapses duplicate slashes and resolves . and .. segments.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}

	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	parts := strings.Split(path, "/")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case ".":
			continue
		case "..":
			if len(result) > 1 {
				result = result[:len(result)-1]
			}
		default:
			result = append(result, part)
		}
	}

	return strings.Join(result, "/")
}

// normalizeQuery drops cache busters and sorts what remains.
func normalizeQuery(query string) string {
	params, err := url.ParseQuery(query)
	if err != nil {
		return query
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if !cacheBusters[strings.ToLower(k)] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, v := range params[k] {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}

	return strings.Join(parts, "&")
}

// ContentIndex detects scripts whose bytes were already analyzed under
// another name, as happens when a bundle is served from two paths.
type ContentIndex struct {
	mu     sync.Mutex
	owners map[string]string // content hash -> first name
}

// NewContentIndex creates an empty index.
func NewContentIndex() *ContentIndex {
	return &ContentIndex{owners: make(map[string]string)}
}

// Claim registers name as holding content with the given hash. When another
// name already holds it, Claim returns that name and true.
func (c *ContentIndex) Claim(name, contentHash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if owner, ok := c.owners[contentHash]; ok && owner != name {
		return owner, true
	}
	c.owners[contentHash] = name
	return "", false
}

// Len returns the number of distinct contents claimed.
func (c *ContentIndex) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.owners)
}

// ComputeContentHash computes an MD5 hash of content.
func ComputeContentHash(content string) string {
	hash := md5.Sum([]byte(content))
	return hex.EncodeToString(hash[:])
}
