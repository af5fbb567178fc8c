package formatprovider

import (
	"archive/zip"
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

func writeTempFile(t *testing.T, dir, name string, data []byte) *sourcefile.File {
	t.Helper()
	scope, err := sourcefile.TempFile(dir, data, "", "", name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scope.Close() })
	return scope.File
}

func TestRegistry_DispatchFirstMatchWins(t *testing.T) {
	reg := NewRegistry(
		NewPlainProvider(""),
		NewDataFileProvider(""),
		NewCodeProvider(""),
	)

	dir := t.TempDir()
	txt := writeTempFile(t, dir, "notes.txt", []byte("hello"))
	p, err := reg.Dispatch(txt)
	require.NoError(t, err)
	assert.Equal(t, "plain", p.Name())

	code := writeTempFile(t, dir, "main.go", []byte("package main"))
	p, err = reg.Dispatch(code)
	require.NoError(t, err)
	assert.Equal(t, "code", p.Name())
}

func TestRegistry_DispatchUnsupported(t *testing.T) {
	reg := NewRegistry(NewPlainProvider(""))
	dir := t.TempDir()
	f := writeTempFile(t, dir, "archive.zip", []byte("PK"))
	_, err := reg.Dispatch(f)
	require.Error(t, err)
	var unsupported *ErrUnsupported
	assert.ErrorAs(t, err, &unsupported)
}

func TestRegistry_CheckDisjointExtensions(t *testing.T) {
	ok := NewRegistry(
		NewPlainProvider(""),
		NewDataFileProvider(""),
		NewCodeProvider(""),
		NewHTMLProvider(""),
		NewMarkdownProvider(""),
		NewPDFProvider(),
		NewMSWordProvider(""),
		NewMSExcelProvider(""),
		NewMSPPTProvider(""),
		NewLibreOfficeProvider("", t.TempDir()),
		NewOutlookProvider(""),
	)
	assert.NoError(t, ok.CheckDisjointExtensions())

	clashing := NewRegistry(NewPlainProvider(""), NewPlainProvider(""))
	err := clashing.CheckDisjointExtensions()
	require.Error(t, err)
}

func TestRegistry_ByName(t *testing.T) {
	reg := NewRegistry(NewPlainProvider(""), NewCodeProvider(""))
	assert.Equal(t, "code", reg.ByName("code").Name())
	assert.Nil(t, reg.ByName("nope"))
}

func TestPlainProvider_ProcessFileSplitsText(t *testing.T) {
	p := NewPlainProvider("")
	dir := t.TempDir()
	f := writeTempFile(t, dir, "notes.txt", bytes.Repeat([]byte("word "), 500))

	chunks, err := p.ProcessFile(context.Background(), f, 200, 20)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.NotContains(t, c.Content, "\x00")
	}
}

func TestDataFileProvider_UsesFormatAwareSeparators(t *testing.T) {
	p := NewDataFileProvider("")
	assert.Equal(t, []string{"json", "xml", "yaml", "yml"}, p.Extensions())

	dir := t.TempDir()
	f := writeTempFile(t, dir, "config.json", []byte(`{"a":1},{"b":2},{"c":3}`))
	chunks, err := p.ProcessFile(context.Background(), f, 10, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestCodeProvider_Supports(t *testing.T) {
	p := NewCodeProvider("")
	dir := t.TempDir()
	f := writeTempFile(t, dir, "main.go", []byte("package main\n"))
	assert.True(t, p.Supports(f))

	notCode := writeTempFile(t, dir, "readme.md", []byte("# hi"))
	assert.False(t, p.Supports(notCode))
}

func TestHTMLProvider_ExtractsVisibleText(t *testing.T) {
	p := NewHTMLProvider("")
	dir := t.TempDir()
	f := writeTempFile(t, dir, "page.html", []byte("<html><body><h1>Title</h1><p>Body text</p></body></html>"))

	chunks, err := p.ProcessFile(context.Background(), f, 1000, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Title")
	assert.Contains(t, chunks[0].Content, "Body text")
	assert.NotContains(t, chunks[0].Content, "<h1>")
}

func TestMarkdownProvider_SplitsOnHeaders(t *testing.T) {
	p := NewMarkdownProvider("")
	dir := t.TempDir()
	f := writeTempFile(t, dir, "doc.md", []byte("# One\n\nfirst section\n\n## Two\n\nsecond section"))

	chunks, err := p.ProcessFile(context.Background(), f, 20, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestMarkdownProvider_RenderHTMLWrapsDocument(t *testing.T) {
	p := NewMarkdownProvider("")
	html, err := p.renderHTML([]byte("# Title\n\nbody"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<html>")
	assert.Contains(t, string(html), "Title")
}

func TestMSPPTProvider_ExtractsTextPerSlideInOrder(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	writeSlide := func(n int, text string) {
		fw, err := w.Create("ppt/slides/slide" + strconv.Itoa(n) + ".xml")
		require.NoError(t, err)
		xml := `<p:sld xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
		_, err = fw.Write([]byte(xml))
		require.NoError(t, err)
	}
	writeSlide(2, "second slide")
	writeSlide(1, "first slide")
	require.NoError(t, w.Close())

	dir := t.TempDir()
	f := writeTempFile(t, dir, "deck.pptx", buf.Bytes())

	p := NewMSPPTProvider("")
	chunks, err := p.ProcessFile(context.Background(), f, 1000, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	page1, ok := chunks[0].Page()
	require.True(t, ok)
	assert.Equal(t, 1, page1)
	assert.Contains(t, chunks[0].Content, "first slide")

	page2, ok := chunks[1].Page()
	require.True(t, ok)
	assert.Equal(t, 2, page2)
	assert.Contains(t, chunks[1].Content, "second slide")
}

func TestOutlookProvider_PrefersHTMLBodyOverPlain(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"Subject: Hello\r\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--BOUNDARY--\r\n"

	dir := t.TempDir()
	f := writeTempFile(t, dir, "message.eml", []byte(raw))

	p := NewOutlookProvider("")
	chunks, err := p.ProcessFile(context.Background(), f, 1000, 0)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Content, "html body")
	assert.Equal(t, "alice@example.com", chunks[0].Metadata[MetaSender])
	assert.Equal(t, "Hello", chunks[0].Metadata[MetaSubject])
}

func TestOutlookProvider_SupportsSniffsEmlByContent(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: s\r\n\r\nbody\r\n"
	dir := t.TempDir()
	f := writeTempFile(t, dir, "noext", []byte(raw))

	p := NewOutlookProvider("")
	assert.True(t, p.Supports(f))
}
