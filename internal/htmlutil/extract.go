package htmlutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TableColumn returns the trimmed text of column col from every body row of
// the first table matching selector. The header row (<thead> or the first
// <tr> without <td> cells) is skipped; rows too short are ignored.
func TableColumn(doc *goquery.Document, selector string, col int) []string {
	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil
	}

	var out []string
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.ParentsFiltered("thead").Length() > 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() <= col {
			return
		}
		if text := strings.TrimSpace(cells.Eq(col).Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// Texts returns the trimmed, non-empty text of every element matching selector.
func Texts(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}
