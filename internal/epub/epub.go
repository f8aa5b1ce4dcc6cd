// Package epub reads the parts of an EPUB container the library needs:
// metadata, the table of contents, chapter text and the cover image.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/mrlokans/autobooks/internal/entities"
)

const containerPath = "META-INF/container.xml"

// ErrInvalidEPUB wraps every structural failure of the container.
var ErrInvalidEPUB = errors.New("invalid epub")

type Book struct {
	Title    string
	Author   string
	Language string
	Chapters []Chapter
	Cover    *Cover
}

type Chapter struct {
	Number int
	Title  string
	Href   string
	Text   string
}

type Cover struct {
	Data      []byte
	MediaType string
}

// Open parses the EPUB file at path.
func Open(filePath string) (*Book, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Read(f, info.Size())
}

// Read parses an EPUB container of the given size.
func Read(r io.ReaderAt, size int64) (*Book, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEPUB, err)
	}
	a := &archive{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		a.files[f.Name] = f
	}
	return a.parse()
}

type archive struct {
	files   map[string]*zip.File
	opfDir  string
	pkg     opfPackage
	visited map[string]bool
}

func (a *archive) parse() (*Book, error) {
	var c container
	if err := a.decodeXML(containerPath, &c); err != nil {
		return nil, err
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: no rootfile in %s", ErrInvalidEPUB, containerPath)
	}

	opfPath := c.Rootfiles[0].FullPath
	if err := a.decodeXML(opfPath, &a.pkg); err != nil {
		return nil, err
	}
	a.opfDir = path.Dir(opfPath)

	book := &Book{
		Title:  firstValue(a.pkg.Metadata.Titles, entities.DefaultBookTitle),
		Author: joinValues(a.pkg.Metadata.Creators, entities.DefaultBookAuthor),
	}
	if len(a.pkg.Metadata.Languages) > 0 {
		book.Language = strings.TrimSpace(a.pkg.Metadata.Languages[0].Value)
	}

	entries, err := a.tableOfContents()
	if err != nil {
		return nil, err
	}

	a.visited = make(map[string]bool)
	for _, entry := range entries {
		doc := stripFragment(entry.href)
		if doc == "" || a.visited[doc] {
			continue
		}
		a.visited[doc] = true

		content, err := a.readFile(doc)
		if err != nil {
			return nil, err
		}
		text, err := HTMLToText(content)
		if err != nil {
			return nil, fmt.Errorf("%w: chapter %s: %v", ErrInvalidEPUB, doc, err)
		}

		number := len(book.Chapters) + 1
		title := strings.TrimSpace(entry.label)
		if title == "" {
			title = entities.DefaultChapterTitle(number)
		}
		book.Chapters = append(book.Chapters, Chapter{
			Number: number,
			Title:  title,
			Href:   doc,
			Text:   text,
		})
	}

	book.Cover = a.cover()
	return book, nil
}

type tocEntry struct {
	label string
	href  string // resolved against the archive root
}

// tableOfContents prefers the NCX, then the EPUB3 nav document, then the spine.
func (a *archive) tableOfContents() ([]tocEntry, error) {
	if item, ok := a.ncxItem(); ok {
		entries, err := a.ncxEntries(item)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}

	if item, ok := a.pkg.Manifest.withProperty("nav"); ok {
		entries, err := a.navEntries(item)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}

	return a.spineEntries(), nil
}

func (a *archive) ncxItem() (manifestItem, bool) {
	if a.pkg.Spine.Toc != "" {
		if item, ok := a.pkg.Manifest.byID(a.pkg.Spine.Toc); ok {
			return item, true
		}
	}
	for _, item := range a.pkg.Manifest.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			return item, true
		}
	}
	return manifestItem{}, false
}

func (a *archive) ncxEntries(item manifestItem) ([]tocEntry, error) {
	ncxPath := a.resolve(a.opfDir, item.Href)
	var doc ncx
	if err := a.decodeXML(ncxPath, &doc); err != nil {
		return nil, err
	}

	var entries []tocEntry
	var walk func(points []*navPoint)
	walk = func(points []*navPoint) {
		for _, p := range points {
			if p.Content.Src != "" {
				entries = append(entries, tocEntry{
					label: p.Label,
					href:  a.resolve(path.Dir(ncxPath), p.Content.Src),
				})
			}
			walk(p.NavPoints)
		}
	}
	walk(doc.Points)
	return entries, nil
}

func (a *archive) spineEntries() []tocEntry {
	var entries []tocEntry
	for _, ref := range a.pkg.Spine.Items {
		if ref.Linear == "no" {
			continue
		}
		item, ok := a.pkg.Manifest.byID(ref.IDRef)
		if !ok {
			continue
		}
		entries = append(entries, tocEntry{href: a.resolve(a.opfDir, item.Href)})
	}
	return entries
}

func (a *archive) cover() *Cover {
	item, ok := a.pkg.Manifest.withProperty("cover-image")
	if !ok {
		for _, meta := range a.pkg.Metadata.Metas {
			if meta.Name == "cover" && meta.Content != "" {
				item, ok = a.pkg.Manifest.byID(meta.Content)
				break
			}
		}
	}
	if !ok || !strings.HasPrefix(item.MediaType, "image/") {
		return nil
	}

	data, err := a.readFile(a.resolve(a.opfDir, item.Href))
	if err != nil {
		return nil
	}
	return &Cover{Data: data, MediaType: item.MediaType}
}

func (a *archive) decodeXML(name string, v any) error {
	data, err := a.readFile(name)
	if err != nil {
		return err
	}
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEPUB, name, err)
	}
	return nil
}

func (a *archive) readFile(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidEPUB, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEPUB, name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// resolve joins an href found in a document under dir into an archive path.
// The fragment is kept.
func (a *archive) resolve(dir, href string) string {
	fragment := ""
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href, fragment = href[:i], href[i:]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if href == "" {
		return ""
	}
	joined := path.Clean(path.Join(dir, href))
	return strings.TrimPrefix(joined, "./") + fragment
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}

func firstValue(values []dcValue, fallback string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v.Value); s != "" {
			return s
		}
	}
	return fallback
}

func joinValues(values []dcValue, fallback string) string {
	var parts []string
	for _, v := range values {
		if s := strings.TrimSpace(v.Value); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}
