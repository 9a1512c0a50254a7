// Package share builds composer URLs that open a post on a social network.
package share

import (
	"net/url"
	"strings"

	"github.com/tonematch/studio/backend"
)

// Target is a network with a web composer.
type Target string

const (
	LinkedIn Target = "linkedin"
	Twitter  Target = "twitter"
	Reddit   Target = "reddit"
	Facebook Target = "facebook"
	Medium   Target = "medium"
)

// Targets lists every target in display order.
var Targets = []Target{LinkedIn, Twitter, Reddit, Facebook, Medium}

const defaultRedditTitle = "Shared via ToneMatch"

// Payload is what gets shared. URL should point at a page with OpenGraph tags.
type Payload struct {
	Text  string
	URL   string
	Title string
}

// Label is the network's display name.
func (t Target) Label() string {
	switch t {
	case LinkedIn:
		return "LinkedIn"
	case Twitter:
		return "X (Twitter)"
	case Reddit:
		return "Reddit"
	case Facebook:
		return "Facebook"
	case Medium:
		return "Medium"
	default:
		return string(t)
	}
}

// ForPlatform returns the composer matching a generation platform. Instagram
// has no web composer.
func ForPlatform(p backend.Platform) (Target, bool) {
	switch p {
	case backend.LinkedIn:
		return LinkedIn, true
	case backend.X:
		return Twitter, true
	case backend.Reddit:
		return Reddit, true
	case backend.Medium:
		return Medium, true
	case backend.Instagram:
		return "", false
	default:
		return "", false
	}
}

// Link returns the composer URL for p on t. fallbackURL stands in for a
// missing p.URL where the network requires one. Unknown targets yield "".
func Link(t Target, p Payload, fallbackURL string) string {
	switch t {
	case LinkedIn:
		return "https://www.linkedin.com/sharing/share-offsite/?url=" + escape(firstNonEmpty(p.URL, fallbackURL))
	case Twitter:
		return "https://twitter.com/intent/tweet?text=" + escape(firstNonEmpty(p.Text, p.URL))
	case Reddit:
		if p.URL == "" {
			return "https://www.reddit.com/submit"
		}
		title := firstNonEmpty(p.Title, truncate(p.Text, 100), defaultRedditTitle)
		return "https://www.reddit.com/submit?url=" + escape(p.URL) + "&title=" + escape(title)
	case Facebook:
		return "https://www.facebook.com/sharer/sharer.php?u=" + escape(firstNonEmpty(p.URL, fallbackURL))
	case Medium:
		return "https://medium.com/new-story"
	default:
		return ""
	}
}

// Preview is the short caption shown next to a target: the title, or the
// first 80 characters of the text.
func Preview(p Payload) string {
	if p.Title != "" {
		return p.Title
	}
	if p.Text == "" {
		return "No preview"
	}
	if short := truncate(p.Text, 80); short != p.Text {
		return short + "…"
	}
	return p.Text
}

// escape matches JavaScript's encodeURIComponent for the characters that matter
// in a query value.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
