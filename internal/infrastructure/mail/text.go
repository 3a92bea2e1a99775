package mail

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TextFromHTML flattens a rendered email into readable plain text, one block per line.
func TextFromHTML(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("style, script").Remove()

	var lines []string
	doc.Find("h1, h2, h3, p, li, .item-line").Each(func(_ int, s *goquery.Selection) {
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
		s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			if href, ok := a.Attr("href"); ok {
				lines = append(lines, href)
			}
		})
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " ")
	}
	return strings.Join(lines, "\n")
}
