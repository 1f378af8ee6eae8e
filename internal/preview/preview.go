package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const fetchTimeout = 10 * time.Second

// StoreInfo is the public information scraped from a storefront homepage.
type StoreInfo struct {
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	Favicon      string            `json:"favicon,omitempty"`
	Logo         string            `json:"logo,omitempty"`
	URL          string            `json:"url"`
	Language     string            `json:"language,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	SocialMedia  map[string]string `json:"social_media,omitempty"`
	ContactEmail string            `json:"contact_email,omitempty"`
	ContactPhone string            `json:"contact_phone,omitempty"`
	MainMenu     []string          `json:"main_menu,omitempty"`
}

var socialPlatforms = map[string][]string{
	"facebook":  {"facebook.com", "fb.com"},
	"instagram": {"instagram.com"},
	"twitter":   {"twitter.com", "x.com"},
	"pinterest": {"pinterest.com"},
	"youtube":   {"youtube.com"},
	"linkedin":  {"linkedin.com"},
	"tiktok":    {"tiktok.com"},
}

const maxMenuItems = 20

// Fetcher retrieves and parses public storefront pages.
type Fetcher struct {
	HTTPClient *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{HTTPClient: &http.Client{Timeout: fetchTimeout}}
}

func (f *Fetcher) httpClient() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

// Verify reports whether the URL resolves to an accessible page. Redirects
// are followed; anything outside 2xx fails verification.
func (f *Fetcher) Verify(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	res, err := f.httpClient().Do(req)
	if err != nil {
		log.WithField("url", rawURL).Warnf("store url verification failed: %v", err)
		return false
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	return res.StatusCode >= 200 && res.StatusCode < 300
}

// Fetch scrapes the homepage for name, description, branding, social and
// contact details. Extraction is best effort; missing elements stay empty.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*StoreInfo, error) {
	info := &StoreInfo{URL: rawURL, SocialMedia: map[string]string{}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return info, err
	}
	res, err := f.httpClient().Do(req)
	if err != nil {
		return info, fmt.Errorf("fetch store page: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return info, fmt.Errorf("store page returned http %d", res.StatusCode)
	}

	doc, err := html.Parse(res.Body)
	if err != nil {
		return info, fmt.Errorf("parse store page: %w", err)
	}

	base, _ := url.Parse(rawURL)
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "html":
			if lang := attr(n, "lang"); lang != "" {
				info.Language = lang
			}
		case "title":
			if info.Name == "" {
				info.Name = strings.TrimSpace(nodeText(n))
			}
		case "meta":
			f.applyMeta(info, n)
		case "link":
			rel := strings.ToLower(attr(n, "rel"))
			if info.Favicon == "" && strings.Contains(rel, "icon") {
				info.Favicon = absoluteURL(base, attr(n, "href"))
			}
		case "a":
			f.applyAnchor(info, base, n)
		case "img":
			class := strings.ToLower(attr(n, "class"))
			if info.Logo == "" && (strings.Contains(class, "logo") || strings.Contains(class, "brand")) {
				info.Logo = absoluteURL(base, attr(n, "src"))
			}
		}
	})
	return info, nil
}

func (f *Fetcher) applyMeta(info *StoreInfo, n *html.Node) {
	content := attr(n, "content")
	if content == "" {
		return
	}
	switch strings.ToLower(attr(n, "name")) {
	case "description":
		if info.Description == "" {
			info.Description = strings.TrimSpace(content)
		}
	case "keywords":
		for _, k := range strings.Split(content, ",") {
			if k = strings.TrimSpace(k); k != "" {
				info.Keywords = append(info.Keywords, k)
			}
		}
	}
	if strings.ToLower(attr(n, "property")) == "product:price:currency" {
		info.Currency = strings.TrimSpace(content)
	}
}

func (f *Fetcher) applyAnchor(info *StoreInfo, base *url.URL, n *html.Node) {
	href := attr(n, "href")
	if href == "" {
		return
	}

	switch {
	case strings.HasPrefix(href, "mailto:"):
		if info.ContactEmail == "" {
			info.ContactEmail = strings.TrimPrefix(href, "mailto:")
		}
		return
	case strings.HasPrefix(href, "tel:"):
		if info.ContactPhone == "" {
			info.ContactPhone = strings.TrimPrefix(href, "tel:")
		}
		return
	}

	lower := strings.ToLower(href)
	for platform, domains := range socialPlatforms {
		if _, seen := info.SocialMedia[platform]; seen {
			continue
		}
		for _, domain := range domains {
			if strings.Contains(lower, domain) {
				info.SocialMedia[platform] = href
				break
			}
		}
	}

	class := strings.ToLower(attr(n, "class"))
	if len(info.MainMenu) < maxMenuItems &&
		(strings.Contains(class, "nav") || strings.Contains(class, "menu") || strings.Contains(class, "header")) {
		if text := strings.TrimSpace(nodeText(n)); text != "" {
			info.MainMenu = append(info.MainMenu, text)
		}
	}
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
