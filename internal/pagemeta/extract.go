package pagemeta

import (
	"io"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/buonappetort/rex/internal/model"
)

var (
	titleMeta = []string{"og:title", "twitter:title"}
	descMeta  = []string{"og:description", "twitter:description"}
	imageMeta = []string{"og:image:secure_url", "og:image", "twitter:image", "twitter:image:src"}
)

// Extract parses a product page and returns whatever title, description and
// image it can find. Parse failures yield an empty result.
func Extract(r io.Reader) model.SourceMeta {
	doc, err := html.Parse(r)
	if err != nil {
		return model.SourceMeta{}
	}
	p := &page{}
	p.index(doc)

	var meta model.SourceMeta

	meta.Title = p.meta(titleMeta)
	if meta.Title == "" && p.productTitle != nil {
		meta.Title = collapse(textOf(p.productTitle))
	}
	if meta.Title == "" && p.title != nil {
		meta.Title = strings.TrimSpace(textOf(p.title))
	}

	meta.Description = p.meta(descMeta)

	meta.Image = p.meta(imageMeta)
	if meta.Image == "" {
		meta.Image = landingImage(p.landing())
	}
	return meta
}

// page is a single-pass index of the nodes extraction cares about.
type page struct {
	metas        []*html.Node
	productTitle *html.Node
	title        *html.Node
	landingImg   *html.Node
	wrapperImg   *html.Node
}

func (p *page) index(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Meta:
			p.metas = append(p.metas, n)
		case atom.Title:
			if p.title == nil {
				p.title = n
			}
		}
		switch id := attr(n, "id"); {
		case id == "productTitle" && p.productTitle == nil:
			p.productTitle = n
		case id == "landingImage" && p.landingImg == nil:
			p.landingImg = n
		case id == "imgTagWrapperId" && p.wrapperImg == nil:
			p.wrapperImg = firstElement(n, atom.Img)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.index(c)
	}
}

// meta returns the first non-empty content among names. Names are tried in
// order; each matches either the property or the name attribute.
func (p *page) meta(names []string) string {
	for _, name := range names {
		for _, m := range p.metas {
			if attr(m, "property") != name && attr(m, "name") != name {
				continue
			}
			if content := strings.TrimSpace(attr(m, "content")); content != "" {
				return content
			}
		}
	}
	return ""
}

func (p *page) landing() *html.Node {
	if p.landingImg != nil {
		return p.landingImg
	}
	return p.wrapperImg
}

// landingImage picks data-old-hires, then the first key of the
// data-a-dynamic-image JSON object, then src.
func landingImage(n *html.Node) string {
	if n == nil {
		return ""
	}
	if v := strings.TrimSpace(attr(n, "data-old-hires")); v != "" {
		return v
	}
	if v := firstJSONKey(attr(n, "data-a-dynamic-image")); v != "" {
		return v
	}
	return strings.TrimSpace(attr(n, "src"))
}

// firstJSONKey returns the first key of a JSON object in document order.
func firstJSONKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return ""
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ""
	}
	tok, err = dec.Token()
	if err != nil {
		return ""
	}
	key, _ := tok.(string)
	return key
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func firstElement(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if found := firstElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
