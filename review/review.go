// Package review turns a completed generation batch into an editable board of
// posts grouped by platform. Edits stay local to the board.
package review

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tonematch/studio/backend"
)

// PollInterval is how often a batch is re-fetched while it is generating.
const PollInterval = 5 * time.Second

var ErrPostNotFound = errors.New("review: post not found")

// Post is one generated post on the board.
type Post struct {
	ID       string           `json:"id"`
	Platform backend.Platform `json:"platform"`
	Text     string           `json:"text"`
	Tone     string           `json:"tone"`
	Keywords []string         `json:"keywords"`
	// Edited is the unsaved text while the post is being edited.
	Edited *string `json:"edited,omitempty"`
}

// Draft is the text shown in the editor.
func (p Post) Draft() string {
	if p.Edited != nil {
		return *p.Edited
	}
	return p.Text
}

// Flatten lists every post of gc in label order, giving each a fresh id.
// Labels that are not a known platform keep their lower-cased label.
func Flatten(gc backend.GeneratedContent) []Post {
	var posts []Post
	for _, group := range gc {
		platform, ok := backend.ParsePlatform(group.Label)
		if !ok {
			platform = backend.Platform(strings.ToLower(group.Label))
		}
		for _, gp := range group.Posts {
			keywords := gp.Keywords
			if keywords == nil {
				keywords = []string{}
			}
			posts = append(posts, Post{
				ID:       uuid.NewString(),
				Platform: platform,
				Text:     gp.Text,
				Tone:     gp.Tone,
				Keywords: keywords,
			})
		}
	}
	return posts
}

// Tab is one platform tab.
type Tab struct {
	Platform backend.Platform
	Label    string
	Count    int
	Active   bool
}

// Board is the review state of one batch.
type Board struct {
	BatchID string           `json:"batchId"`
	Posts   []Post           `json:"posts"`
	Active  backend.Platform `json:"active"`
	Editing string           `json:"editing,omitempty"`
}

// NewBoard returns a board showing the LinkedIn tab.
func NewBoard(batchID string, posts []Post) *Board {
	return &Board{BatchID: batchID, Posts: posts, Active: backend.LinkedIn}
}

// Tabs lists the five platform tabs with their post counts.
func (b *Board) Tabs() []Tab {
	tabs := make([]Tab, 0, len(backend.Platforms))
	for _, p := range backend.Platforms {
		n := 0
		for _, post := range b.Posts {
			if post.Platform == p {
				n++
			}
		}
		tabs = append(tabs, Tab{Platform: p, Label: p.Label(), Count: n, Active: p == b.Active})
	}
	return tabs
}

// Select switches to platform p.
func (b *Board) Select(p backend.Platform) {
	b.Active = p
}

// Visible returns the posts of the active tab.
func (b *Board) Visible() []Post {
	var out []Post
	for _, p := range b.Posts {
		if p.Platform == b.Active {
			out = append(out, p)
		}
	}
	return out
}

// Post returns the post with id.
func (b *Board) Post(id string) (Post, bool) {
	for _, p := range b.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return Post{}, false
}

func (b *Board) index(id string) (int, error) {
	for i := range b.Posts {
		if b.Posts[i].ID == id {
			return i, nil
		}
	}
	return -1, ErrPostNotFound
}

// Edit opens the editor on post id. Only one post is edited at a time.
func (b *Board) Edit(id string) error {
	if _, err := b.index(id); err != nil {
		return err
	}
	b.Editing = id
	return nil
}

// Change records unsaved text for post id.
func (b *Board) Change(id, text string) error {
	i, err := b.index(id)
	if err != nil {
		return err
	}
	b.Posts[i].Edited = &text
	return nil
}

// Save applies text to post id and closes the editor. Empty text keeps the
// current text.
func (b *Board) Save(id, text string) error {
	i, err := b.index(id)
	if err != nil {
		return err
	}
	if text != "" {
		b.Posts[i].Text = text
	}
	b.Posts[i].Edited = nil
	if b.Editing == id {
		b.Editing = ""
	}
	return nil
}

// Cancel discards unsaved text for post id and closes the editor.
func (b *Board) Cancel(id string) error {
	i, err := b.index(id)
	if err != nil {
		return err
	}
	b.Posts[i].Edited = nil
	if b.Editing == id {
		b.Editing = ""
	}
	return nil
}
