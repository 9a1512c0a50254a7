// Package markdown renders the Markdown produced by the strategy generator
// as HTML: headings, bullet and numbered lists, quotes, rules, fenced code,
// paragraphs and inline emphasis, code and links.
package markdown

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	reBold             = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnderscore   = regexp.MustCompile(`__(.+?)__`)
	reItalic           = regexp.MustCompile(`\*([^*]+)\*`)
	reItalicUnderscore = regexp.MustCompile(`\b_([^_]+)_\b`)
	reInlineCode       = regexp.MustCompile("`([^`]+)`")
	reLink             = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	reHeading          = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	reBullet           = regexp.MustCompile(`^[-*+]\s+(.*)$`)
	reOrdered          = regexp.MustCompile(`^\d+[.)]\s+(.*)$`)
)

type block int

const (
	blockNone block = iota
	blockPara
	blockList
	blockOrdered
	blockQuote
	blockCode
)

var closeTags = map[block]string{
	blockPara:    "</p>",
	blockList:    "</ul>",
	blockOrdered: "</ol>",
	blockQuote:   "</blockquote>",
	blockCode:    "</code></pre>",
}

type renderer struct {
	buf  bytes.Buffer
	open block
}

func (r *renderer) close() {
	if r.open != blockNone {
		r.buf.WriteString(closeTags[r.open])
		r.open = blockNone
	}
}

// enter closes the current block unless it is already b, and opens b with tag.
func (r *renderer) enter(b block, tag string) bool {
	if r.open == b {
		return false
	}
	r.close()
	r.buf.WriteString(tag)
	r.open = b
	return true
}

// Render converts md to HTML. Raw HTML in md is escaped.
func Render(md string) string {
	var r renderer
	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if r.open == blockCode {
				r.close()
			} else {
				r.enter(blockCode, `<pre class="code-block"><code>`)
			}
			continue
		}
		if r.open == blockCode {
			r.buf.WriteString(html.EscapeString(line))
			r.buf.WriteByte('\n')
			continue
		}

		if trimmed == "" {
			r.close()
			continue
		}

		if m := reHeading.FindStringSubmatch(trimmed); m != nil {
			r.close()
			level := strconv.Itoa(len(m[1]))
			r.buf.WriteString("<h" + level + ">" + FormatInline(strings.TrimSpace(m[2])) + "</h" + level + ">")
			continue
		}

		switch {
		case isRule(trimmed):
			r.close()
			r.buf.WriteString("<hr/>")
		case reBullet.MatchString(trimmed):
			r.enter(blockList, "<ul>")
			item := reBullet.FindStringSubmatch(trimmed)[1]
			r.buf.WriteString(listItem(line, item))
		case reOrdered.MatchString(trimmed):
			r.enter(blockOrdered, "<ol>")
			item := reOrdered.FindStringSubmatch(trimmed)[1]
			r.buf.WriteString(listItem(line, item))
		case strings.HasPrefix(trimmed, ">"):
			if !r.enter(blockQuote, "<blockquote>") {
				r.buf.WriteByte(' ')
			}
			r.buf.WriteString(FormatInline(strings.TrimSpace(strings.TrimPrefix(trimmed, ">"))))
		default:
			if !r.enter(blockPara, "<p>") {
				r.buf.WriteString("<br/>")
			}
			r.buf.WriteString(FormatInline(trimmed))
		}
	}
	r.close()
	return r.buf.String()
}

// listItem renders one item; items indented by two or more spaces are marked
// as nested so the stylesheet can indent them.
func listItem(line, item string) string {
	indent := len(line) - len(strings.TrimLeft(line, " \t"))
	if indent >= 2 {
		return `<li class="nested">` + FormatInline(strings.TrimSpace(item)) + "</li>"
	}
	return "<li>" + FormatInline(strings.TrimSpace(item)) + "</li>"
}

func isRule(s string) bool {
	if len(s) < 3 {
		return false
	}
	c := s[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != c && s[i] != ' ' {
			return false
		}
	}
	return true
}

// applyOutsideTags applies fn only to text outside HTML tags so formatting
// never touches attribute values.
func applyOutsideTags(s string, fn func(string) string) string {
	var buf strings.Builder
	for len(s) > 0 {
		lt := strings.Index(s, "<")
		if lt < 0 {
			buf.WriteString(fn(s))
			break
		}
		if lt > 0 {
			buf.WriteString(fn(s[:lt]))
		}
		gt := strings.Index(s[lt:], ">")
		if gt < 0 {
			buf.WriteString(s[lt:])
			break
		}
		buf.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return buf.String()
}

// FormatInline escapes s and applies bold, italic, inline code and links.
// Links always open in a new tab.
func FormatInline(s string) string {
	escaped := html.EscapeString(s)

	var codes []string
	escaped = reInlineCode.ReplaceAllStringFunc(escaped, func(m string) string {
		codes = append(codes, "<code>"+reInlineCode.FindStringSubmatch(m)[1]+"</code>")
		return "\x00C" + strconv.Itoa(len(codes)-1) + "\x00"
	})

	escaped = reLink.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		href := SafeURL(match[2])
		if href == "" {
			return match[1]
		}
		return `<a href="` + href + `" target="_blank" rel="noopener noreferrer">` + match[1] + `</a>`
	})

	escaped = applyOutsideTags(escaped, func(seg string) string {
		seg = reBold.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reBoldUnderscore.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reItalic.ReplaceAllString(seg, "<em>$1</em>")
		seg = reItalicUnderscore.ReplaceAllString(seg, "<em>$1</em>")
		return seg
	})

	for i, code := range codes {
		escaped = strings.Replace(escaped, "\x00C"+strconv.Itoa(i)+"\x00", code, 1)
	}
	return escaped
}

// SafeURL returns raw escaped for an href, or "" unless it is relative or
// uses http, https or mailto.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto":
		return html.EscapeString(val)
	default:
		return ""
	}
}
