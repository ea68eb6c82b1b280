package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 5 << 20

// HTTP fetches pages directly and converts the HTML to markdown. It is the
// fallback when no Firecrawl key is configured. Requests to the same host
// are spaced by a token bucket so crawls stay polite.
type HTTP struct {
	client    *http.Client
	userAgent string
	interval  time.Duration

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewHTTP creates a fetcher allowing one request per interval to each host.
func NewHTTP(interval time.Duration) *HTTP {
	return &HTTP{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: "edututor/1.0 (+https://github.com/ScientiaCapital/claude-education-platform)",
		interval:  interval,
		hosts:     make(map[string]*rate.Limiter),
	}
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) hostLimiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.hosts[host]
	if !ok {
		limit := rate.Inf
		if h.interval > 0 {
			limit = rate.Every(h.interval)
		}
		l = rate.NewLimiter(limit, 1)
		h.hosts[host] = l
	}
	return l
}

func (h *HTTP) Fetch(ctx context.Context, r Request) (*Page, error) {
	base, err := url.Parse(r.URL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", r.URL)
	}
	if err := h.hostLimiter(base.Host).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", r.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: connection error: %w", r.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", r.URL, resp.StatusCode)
	}

	page, err := ParseHTML(io.LimitReader(resp.Body, maxBodyBytes), base, r)
	if err != nil {
		return nil, err
	}
	if page.Markdown == "" {
		return nil, fmt.Errorf("%s: %w", r.URL, ErrNoContent)
	}
	return page, nil
}

// skipped are never rendered, whatever the request excludes.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true, "head": true, "form": true,
}

// ParseHTML reads a document and renders its content as markdown. With
// OnlyMainContent the first <main> or <article> is used as the root when
// present. Elements named in ExcludeTags are dropped, matching either the
// tag name or a class or id.
func ParseHTML(r io.Reader, base *url.URL, req Request) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	page := &Page{URL: req.URL, Metadata: map[string]string{}}
	readHead(doc, page)

	root := doc
	if req.OnlyMainContent {
		if n := findFirst(doc, "main"); n != nil {
			root = n
		} else if n := findFirst(doc, "article"); n != nil {
			root = n
		}
	}

	c := &converter{base: base, exclude: make(map[string]bool)}
	for _, t := range req.ExcludeTags {
		c.exclude[strings.ToLower(t)] = true
	}
	c.walk(root)
	page.Markdown = c.String()
	return page, nil
}

func readHead(n *html.Node, page *Page) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if page.Title == "" {
				page.Title = strings.TrimSpace(textOf(n))
			}
		case "meta":
			name, content := attr(n, "name"), attr(n, "content")
			if name == "" {
				name = attr(n, "property")
			}
			switch strings.ToLower(name) {
			case "description", "og:description":
				if page.Description == "" {
					page.Description = strings.TrimSpace(content)
				}
			case "":
			default:
				page.Metadata[name] = content
			}
		case "body":
			return
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		readHead(ch, page)
	}
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if found := findFirst(ch, tag); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && skipped[n.Data] {
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			f(ch)
		}
	}
	f(n)
	return sb.String()
}

var (
	spaceRe    = regexp.MustCompile(`[ \t\r\n]+`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

type converter struct {
	base    *url.URL
	exclude map[string]bool
	sb      strings.Builder
}

func (c *converter) excluded(n *html.Node) bool {
	if skipped[n.Data] || c.exclude[n.Data] {
		return true
	}
	if len(c.exclude) == 0 {
		return false
	}
	for _, cls := range strings.Fields(attr(n, "class")) {
		if c.exclude[strings.ToLower(cls)] {
			return true
		}
	}
	return c.exclude[strings.ToLower(attr(n, "id"))]
}

func (c *converter) block() { c.sb.WriteString("\n\n") }

func (c *converter) children(n *html.Node) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.walk(ch)
	}
}

func (c *converter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		c.sb.WriteString(spaceRe.ReplaceAllString(n.Data, " "))
		return
	case html.ElementNode:
	default:
		c.children(n)
		return
	}
	if c.excluded(n) {
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		c.block()
		c.sb.WriteString(strings.Repeat("#", level) + " " + collapse(textOf(n)))
		c.block()
	case "p", "div", "section", "article", "main", "header", "table", "dl", "blockquote", "ul", "ol":
		c.block()
		c.children(n)
		c.block()
	case "tr", "dt", "dd":
		c.sb.WriteString("\n")
		c.children(n)
	case "td", "th":
		c.children(n)
		c.sb.WriteString(" | ")
	case "br":
		c.sb.WriteString("\n")
	case "li":
		c.sb.WriteString("\n- ")
		c.children(n)
	case "pre":
		code := strings.Trim(textOf(n), "\n")
		c.block()
		c.sb.WriteString("```\n" + code + "\n```")
		c.block()
	case "code":
		if text := collapse(textOf(n)); text != "" {
			c.sb.WriteString("`" + text + "`")
		}
	case "a":
		text := collapse(textOf(n))
		href := c.resolve(attr(n, "href"))
		if text == "" {
			return
		}
		if href == "" {
			c.sb.WriteString(text)
			return
		}
		c.sb.WriteString("[" + text + "](" + href + ")")
	case "strong", "b":
		if text := collapse(textOf(n)); text != "" {
			c.sb.WriteString("**" + text + "**")
		}
	case "em", "i":
		if text := collapse(textOf(n)); text != "" {
			c.sb.WriteString("_" + text + "_")
		}
	case "img", "video", "audio", "picture":
		if alt := attr(n, "alt"); alt != "" {
			c.sb.WriteString(alt)
		}
	default:
		c.children(n)
	}
}

func (c *converter) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	if c.base == nil {
		return href
	}
	u, err := c.base.Parse(href)
	if err != nil {
		return ""
	}
	return u.String()
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func (c *converter) String() string {
	lines := strings.Split(c.sb.String(), "\n")
	inFence := false
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			lines[i] = trimmed
			continue
		}
		if !inFence {
			lines[i] = trimmed
		}
	}
	out := blankRunRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}
