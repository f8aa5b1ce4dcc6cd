package epub

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const ncxOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>A Tale of Two Cities</dc:title>
    <dc:creator>Charles Dickens</dc:creator>
    <dc:creator>Hablot Browne</dc:creator>
    <dc:language>en</dc:language>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="c1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/chapter%202.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="c1"/>
    <itemref idref="c2"/>
  </spine>
</package>`

const tocNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="p1" playOrder="1">
      <navLabel><text>The Period</text></navLabel>
      <content src="text/chapter1.xhtml"/>
      <navPoint id="p1a" playOrder="2">
        <navLabel><text>The Period, continued</text></navLabel>
        <content src="text/chapter1.xhtml#part2"/>
      </navPoint>
    </navPoint>
    <navPoint id="p2" playOrder="3">
      <navLabel><text></text></navLabel>
      <content src="text/chapter%202.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`

const chapter1 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Ignored</title><style>p { color: red; }</style></head>
<body>
  <h1>Chapter I</h1>
  <p>It was the best of times,
     it was the worst of times.</p>


  <p>It was the age of <em>wisdom</em>.<br/>It was the age of foolishness.</p>
</body>
</html>`

const chapter2 = `<html><body><div><p>The Mail</p></div></body></html>`

func buildEPUB(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readEPUB(t *testing.T, files map[string]string) (*Book, error) {
	data := buildEPUB(t, files)
	return Read(bytes.NewReader(data), int64(len(data)))
}

func TestRead_NCX(t *testing.T) {
	book, err := readEPUB(t, map[string]string{
		"META-INF/container.xml":     containerXML,
		"OEBPS/content.opf":          ncxOPF,
		"OEBPS/toc.ncx":              tocNCX,
		"OEBPS/text/chapter1.xhtml":  chapter1,
		"OEBPS/text/chapter 2.xhtml": chapter2,
		"OEBPS/images/cover.jpg":     "\xff\xd8\xff",
	})
	require.NoError(t, err)

	assert.Equal(t, "A Tale of Two Cities", book.Title)
	assert.Equal(t, "Charles Dickens, Hablot Browne", book.Author)
	assert.Equal(t, "en", book.Language)

	require.Len(t, book.Chapters, 2)
	assert.Equal(t, 1, book.Chapters[0].Number)
	assert.Equal(t, "The Period", book.Chapters[0].Title)
	assert.Equal(t, "Chapter I\n\nIt was the best of times, it was the worst of times.\n\nIt was the age of wisdom.\nIt was the age of foolishness.", book.Chapters[0].Text)

	assert.Equal(t, 2, book.Chapters[1].Number)
	assert.Equal(t, "Chapter 2", book.Chapters[1].Title)
	assert.Equal(t, "The Mail", book.Chapters[1].Text)

	require.NotNil(t, book.Cover)
	assert.Equal(t, "image/jpeg", book.Cover.MediaType)
	assert.Equal(t, []byte("\xff\xd8\xff"), book.Cover.Data)
}

func TestRead_NavDocument(t *testing.T) {
	opf := `<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"></metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
    <item id="b" href="b.xhtml" media-type="application/xhtml+xml"/>
    <item id="img" href="cover.png" media-type="image/png" properties="cover-image"/>
  </manifest>
  <spine><itemref idref="a"/><itemref idref="b"/></spine>
</package>`
	nav := `<html xmlns:epub="http://www.idpf.org/2007/ops"><body>
  <nav epub:type="landmarks"><ol><li><a href="b.xhtml">Landmark</a></li></ol></nav>
  <nav epub:type="toc"><ol>
    <li><a href="a.xhtml">First</a>
      <ol><li><a href="b.xhtml">Second</a></li></ol>
    </li>
  </ol></nav>
</body></html>`

	book, err := readEPUB(t, map[string]string{
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      opf,
		"OEBPS/nav.xhtml":        nav,
		"OEBPS/a.xhtml":          "<html><body><p>Alpha</p></body></html>",
		"OEBPS/b.xhtml":          "<html><body><p>Beta</p></body></html>",
		"OEBPS/cover.png":        "PNG",
	})
	require.NoError(t, err)

	assert.Equal(t, "Untitled", book.Title)
	assert.Equal(t, "Unknown", book.Author)
	require.Len(t, book.Chapters, 2)
	assert.Equal(t, "First", book.Chapters[0].Title)
	assert.Equal(t, "Alpha", book.Chapters[0].Text)
	assert.Equal(t, "Second", book.Chapters[1].Title)
	require.NotNil(t, book.Cover)
	assert.Equal(t, "image/png", book.Cover.MediaType)
}

func TestRead_SpineFallback(t *testing.T) {
	opf := `<package version="2.0">
  <metadata><title>Spine Only</title></metadata>
  <manifest>
    <item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
    <item id="skip" href="skip.xhtml" media-type="application/xhtml+xml"/>
    <item id="b" href="b.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="a"/><itemref idref="skip" linear="no"/><itemref idref="b"/></spine>
</package>`

	book, err := readEPUB(t, map[string]string{
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      opf,
		"OEBPS/a.xhtml":          "<p>A</p>",
		"OEBPS/skip.xhtml":       "<p>skip</p>",
		"OEBPS/b.xhtml":          "<p>B</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "Spine Only", book.Title)
	require.Len(t, book.Chapters, 2)
	assert.Equal(t, "Chapter 1", book.Chapters[0].Title)
	assert.Equal(t, "Chapter 2", book.Chapters[1].Title)
	assert.Equal(t, "B", book.Chapters[1].Text)
	assert.Nil(t, book.Cover)
}

func TestRead_Invalid(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a zip")), 9)
	assert.ErrorIs(t, err, ErrInvalidEPUB)

	_, err = readEPUB(t, map[string]string{"mimetype": "application/epub+zip"})
	assert.ErrorIs(t, err, ErrInvalidEPUB)

	_, err = readEPUB(t, map[string]string{
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      ncxOPF,
		"OEBPS/toc.ncx":          tocNCX,
	})
	assert.ErrorIs(t, err, ErrInvalidEPUB)
}

func TestOpen(t *testing.T) {
	data := buildEPUB(t, map[string]string{
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      `<package><metadata/><manifest><item id="a" href="a.xhtml"/></manifest><spine><itemref idref="a"/></spine></package>`,
		"OEBPS/a.xhtml":          "<p>Only chapter</p>",
	})
	filePath := filepath.Join(t.TempDir(), "book.epub")
	require.NoError(t, os.WriteFile(filePath, data, 0o644))

	book, err := Open(filePath)
	require.NoError(t, err)
	require.Len(t, book.Chapters, 1)
	assert.Equal(t, "Only chapter", book.Chapters[0].Text)
}

func TestHTMLToText(t *testing.T) {
	text, err := HTMLToText([]byte("<div>  One&nbsp;two  </div><ul><li>three</li><li>four</li></ul><script>x()</script>"))
	require.NoError(t, err)
	assert.Equal(t, "One two\n\nthree\n\nfour", text)
}
