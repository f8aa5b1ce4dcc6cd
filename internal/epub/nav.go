package epub

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// navEntries reads the toc of an EPUB3 navigation document.
func (a *archive) navEntries(item manifestItem) ([]tocEntry, error) {
	navPath := a.resolve(a.opfDir, item.Href)
	content, err := a.readFile(navPath)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEPUB, navPath, err)
	}

	navs := doc.Find("nav")
	toc := navs.FilterFunction(func(_ int, s *goquery.Selection) bool {
		kind, _ := s.Attr("epub:type")
		return strings.Contains(kind, "toc")
	})
	if toc.Length() == 0 {
		toc = navs
	}
	if toc.Length() == 0 {
		return nil, nil
	}

	var entries []tocEntry
	var walk func(list *goquery.Selection)
	walk = func(list *goquery.Selection) {
		list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			link := li.ChildrenFiltered("a").First()
			if href, ok := link.Attr("href"); ok && href != "" {
				entries = append(entries, tocEntry{
					label: strings.Join(strings.Fields(link.Text()), " "),
					href:  a.resolve(path.Dir(navPath), href),
				})
			}
			walk(li.ChildrenFiltered("ol"))
		})
	}
	walk(toc.First().ChildrenFiltered("ol"))
	return entries, nil
}
