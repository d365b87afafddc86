package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/consorcioops/boleto-batch/internal/submit"
)

// ListingPage carries everything the orchestrator needs from the rendered
// document-listing page: the resolved document endpoint, the hidden form
// values the in-page script would have submitted, and the raw trigger
// attributes of each document link.
type ListingPage struct {
	ActionURL         string
	HiddenFields      map[string]string
	TriggerAttributes []string
}

// ParseListing extracts the listing structure from rendered HTML. pageURL is
// the listing page's own URL, used to resolve the document endpoint the same
// way the in-page script would ("../Slip/Slip.asp" against the current
// location).
func ParseListing(html, pageURL, slipRef string) (*ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("browser: parse listing HTML: %w", err)
	}

	actionURL, err := ResolveActionURL(pageURL, slipRef)
	if err != nil {
		return nil, err
	}

	return &ListingPage{
		ActionURL:         actionURL,
		HiddenFields:      extractHiddenFields(doc),
		TriggerAttributes: extractTriggerAttributes(doc),
	}, nil
}

// extractHiddenFields reads the hidden form values the document POST must
// replicate. Only fields actually rendered on the page get a key: the payload
// builder applies defaults for absent fields, while a rendered-but-empty
// value is forwarded as-is.
func extractHiddenFields(doc *goquery.Document) map[string]string {
	fields := make(map[string]string, len(submit.HiddenFieldNames))
	for _, name := range submit.HiddenFieldNames {
		input := doc.Find(fmt.Sprintf("input[name='%s']", name)).First()
		if input.Length() == 0 {
			continue
		}
		value, _ := input.Attr("value")
		fields[name] = value
	}
	return fields
}

// extractTriggerAttributes collects the onclick attributes of the document
// links in page order. Most recent documents are listed first by the portal.
func extractTriggerAttributes(doc *goquery.Document) []string {
	var attrs []string
	doc.Find("a[onclick]").Each(func(_ int, s *goquery.Selection) {
		onclick, _ := s.Attr("onclick")
		if strings.Contains(onclick, submit.TriggerFunction+"(") {
			attrs = append(attrs, onclick)
		}
	})
	return attrs
}

// ResolveActionURL resolves the document endpoint reference against the
// listing page's URL.
func ResolveActionURL(pageURL, slipRef string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("browser: parse page URL: %w", err)
	}
	ref, err := url.Parse(slipRef)
	if err != nil {
		return "", fmt.Errorf("browser: parse slip reference: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// ExtractTaxID pulls the customer document number from the post-search URL
// query string, when present.
func ExtractTaxID(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("cgc_cpf_cliente")
}
