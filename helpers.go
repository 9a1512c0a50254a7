package studio

import (
	"net/url"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// projectPath is the app path of a project page, e.g. /project/42/strategy.
// Every segment is escaped, so backend ids may contain any character.
func projectPath(id string, parts ...string) string {
	p := "/project/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// pathParam returns the unescaped value of a path segment built by
// projectPath. The router matches on the raw path when a segment holds an
// escaped slash.
func pathParam(c echo.Context, name string) string {
	raw := c.Param(name)
	v, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return v
}

// contentURL is the content page of batchID, optionally on a platform tab.
func contentURL(projectID, batchID, tab string) string {
	q := url.Values{"batchId": {batchID}}
	if tab != "" {
		q.Set("tab", tab)
	}
	return projectPath(projectID, "content") + "?" + q.Encode()
}
