package client

import (
	"fmt"
	"net/url"
	"strings"

	"carrefour/harvester/internal/domain"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

type menuParser struct {
	selector string
}

func newMenuParser(selector string) *menuParser {
	return &menuParser{
		selector: selector,
	}
}

// ParseTaxonomy extracts the department links of the storefront menu. The link
// text becomes the category name and the last path segment its label.
func (p *menuParser) ParseTaxonomy(html string) (domain.CategoryTaxonomy, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	taxonomy := make(domain.CategoryTaxonomy, 0)
	seen := make(map[string]struct{})

	doc.Find(p.selector).Each(func(i int, link *goquery.Selection) {
		href, exists := link.Attr("href")
		if !exists {
			return
		}

		name := strings.Join(strings.Fields(link.Text()), " ")
		label := labelFromHref(href)
		if name == "" || label == "" {
			return
		}

		if _, dup := seen[label]; dup {
			return
		}
		seen[label] = struct{}{}

		taxonomy = append(taxonomy, domain.CategoryTask{Name: name, Label: label})
	})

	if len(taxonomy) == 0 {
		return nil, fmt.Errorf("no categories matched selector %q", p.selector)
	}

	log.Debugf("Parsed %d categories from storefront menu", len(taxonomy))
	return taxonomy, nil
}

// labelFromHref turns "/colecao/refrigerantes?map=c" into "refrigerantes".
func labelFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segment := strings.TrimSpace(segments[i]); segment != "" {
			return strings.ToLower(segment)
		}
	}
	return ""
}
