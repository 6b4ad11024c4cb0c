package rss

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"sort"
	"text/template"
	"time"

	"github.com/livefeeds/feedwatch/internal/catalog"
	"github.com/livefeeds/feedwatch/internal/history"
)

// defaultChannelTemplate is used when no channel template file is configured.
const defaultChannelTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>{{.Title}}</title>
    <link>{{.Link}}</link>
    <description>{{.Description}}</description>
    <lastBuildDate>{{.LastBuildDate}}</lastBuildDate>
    {{.Items}}
  </channel>
</rss>
`

// defaultItemTemplate is used when no item template file is configured.
const defaultItemTemplate = `<item>
      <title>{{.Title}}</title>
      <pubDate>{{.PubDate}}</pubDate>
      <description>{{.Status}}: {{.Comment}} {{.AdminComments}}</description>
    </item>`

// Channel is the data handed to the channel template.
type Channel struct {
	Title         string
	Link          string
	Description   string
	LastBuildDate string
	Items         string
}

// Item is the data handed to the item template, one per history event.
type Item struct {
	Title         string
	Snippet       string
	PubDate       string
	Status        string
	Comment       string
	FeatureCount  int
	UpdateRate    float64
	AdminComments string
}

// Renderer renders feed documents from parsed templates.
type Renderer struct {
	channel *template.Template
	item    *template.Template
}

// NewRenderer parses the channel and item templates; empty paths select the
// built-in templates.
func NewRenderer(channelPath, itemPath string) (*Renderer, error) {
	channel, err := loadTemplate("channel", channelPath, defaultChannelTemplate)
	if err != nil {
		return nil, err
	}
	item, err := loadTemplate("item", itemPath, defaultItemTemplate)
	if err != nil {
		return nil, err
	}
	return &Renderer{channel: channel, item: item}, nil
}

func loadTemplate(name, path, fallback string) (*template.Template, error) {
	text := fallback
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("rss: read %s template: %w", name, err)
		}
		text = string(data)
	}
	t, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("rss: parse %s template: %w", name, err)
	}
	return t, nil
}

// WriteFeed renders the entity's feed to path: one item per history event,
// newest first, wrapped in the channel document.
func (r *Renderer) WriteFeed(path, title, link string, doc *history.Document, commentsHeader string) error {
	var items bytes.Buffer
	for i := len(doc.History) - 1; i >= 0; i-- {
		ev := doc.History[i]
		if err := r.item.Execute(&items, itemData(ev, commentsHeader)); err != nil {
			return fmt.Errorf("rss: render item for %s: %w", doc.ID, err)
		}
		if i > 0 {
			items.WriteString("\n    ")
		}
	}

	var description, lastBuild string
	if n := len(doc.History); n > 0 {
		latest := doc.History[n-1]
		description = html.EscapeString(latest.Snippet)
		lastBuild = latest.LastBuildTime
	}

	var out bytes.Buffer
	err := r.channel.Execute(&out, Channel{
		Title:         html.EscapeString(title),
		Link:          link,
		Description:   description,
		LastBuildDate: lastBuild,
		Items:         items.String(),
	})
	if err != nil {
		return fmt.Errorf("rss: render channel for %s: %w", doc.ID, err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("rss: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rss: replace %s: %w", path, err)
	}
	return nil
}

func itemData(ev history.EventRecord, commentsHeader string) Item {
	it := Item{
		Title:         html.EscapeString(ev.Title),
		Snippet:       html.EscapeString(ev.Snippet),
		PubDate:       ev.PubDate,
		FeatureCount:  ev.FeatureCount,
		UpdateRate:    ev.UpdateRate,
		AdminComments: FormatAdminComments(ev.Comments, commentsHeader),
	}
	if d := ev.Status.Details; d != nil {
		it.Status = html.EscapeString(d.Status)
		it.Comment = html.EscapeString(d.Comment)
	}
	return it
}

// FormatAdminComments builds the HTML-escaped admin comments block: a header
// followed by one list entry per comment, newest first. No comments yields
// an empty string.
func FormatAdminComments(comments []catalog.AdminComment, header string) string {
	if len(comments) == 0 {
		return ""
	}

	sorted := make([]catalog.AdminComment, len(comments))
	copy(sorted, comments)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	var b bytes.Buffer
	fmt.Fprintf(&b, "<h4>%s</h4>", header)
	for _, c := range sorted {
		posted := time.Unix(c.Timestamp, 0).UTC().Format("Mon, 02 Jan 2006 15:04:05")
		fmt.Fprintf(&b, "<li>Posted: %s | <b>%s</b></li>", posted, c.Comment)
	}
	return html.EscapeString(b.String())
}
