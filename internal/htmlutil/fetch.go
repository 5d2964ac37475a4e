package htmlutil

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/everstacklabs/modelsync/internal/httpclient"
)

// Getter is the subset of httpclient.Client used to download pages.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) (*httpclient.Response, error)
}

// Fetch downloads url through g and returns the parsed HTML document.
func Fetch(ctx context.Context, g Getter, url string) (*goquery.Document, error) {
	resp, err := g.Get(ctx, url, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	return Parse(resp.Body)
}

// Parse parses an HTML body.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}
