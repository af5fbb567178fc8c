package formatprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/richardlehane/mscfb"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// Metadata keys carried on outlook chunks, in addition to the shared
// chunking.Meta* keys.
const (
	MetaSender  = "sender"
	MetaSubject = "subject"
	MetaDate    = "date"
)

// mailMessage is the provider's intermediate representation, independent of
// whether the source was a .msg compound document or a .eml MIME stream.
type mailMessage struct {
	sender   string
	subject  string
	date     time.Time
	hasDate  bool
	htmlBody string
	textBody string
}

func (m mailMessage) body() (text string, isHTML bool) {
	if strings.TrimSpace(m.htmlBody) != "" {
		return m.htmlBody, true
	}
	if strings.TrimSpace(m.textBody) != "" {
		return m.textBody, false
	}
	return "[empty body]", false
}

// OutlookProvider parses Outlook .msg compound documents and RFC 5322 .eml
// messages, preferring the HTML body, falling back to plain text, and
// finally to a literal placeholder. PDF conversion delegates to the HTML
// provider's renderer for HTML bodies, or synthesises a minimal Markdown
// document for plain-text ones.
type OutlookProvider struct {
	base
	html *htmlToPDFConverter
	md   *MarkdownProvider
}

// NewOutlookProvider returns the "outlook" provider.
func NewOutlookProvider(rendererBinary string) *OutlookProvider {
	return &OutlookProvider{
		base: base{
			name:             "outlook",
			extensions:       []string{"msg", "eml"},
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			multiprocessable: true,
		},
		html: newHTMLToPDFConverter(rendererBinary),
		md:   NewMarkdownProvider(rendererBinary),
	}
}

// Supports dispatches by extension, and additionally claims any file whose
// content sniffs as an RFC 5322 message regardless of extension, per the
// "and .eml by MIME" clause.
func (p *OutlookProvider) Supports(file *sourcefile.File) bool {
	if p.base.Supports(file) {
		return true
	}
	data, err := file.Buffer()
	if err != nil {
		return false
	}
	if _, err := mail.ReadMessage(bytes.NewReader(data)); err == nil {
		return true
	}
	return false
}

func (p *OutlookProvider) ProcessFile(ctx context.Context, file *sourcefile.File, chunkSize, chunkOverlap int) ([]chunking.Chunk, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("outlook: read source: %w", err)
	}

	var msg mailMessage
	if file.Ext() == "msg" {
		msg, err = parseMSG(data)
	} else {
		msg, err = parseEML(data)
	}
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("outlook: parse %s: %v", file.FileName, err)}
	}

	body, isHTML := msg.body()
	text := body
	if isHTML {
		text = extractText(body)
	}

	splitter, err := p.Splitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	fragments, err := splitter.Split(text)
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("outlook: split %s: %v", file.FileName, err)}
	}

	meta := map[string]any{
		MetaSender:  msg.sender,
		MetaSubject: msg.subject,
	}
	if msg.hasDate {
		meta[MetaDate] = msg.date.UTC().Format(time.RFC3339)
	}

	chunks := make([]chunking.Chunk, 0, len(fragments))
	for _, frag := range fragments {
		chunks = append(chunks, chunking.New(frag, meta))
	}
	return chunks, nil
}

func (p *OutlookProvider) ConvertFileToPDF(ctx context.Context, file *sourcefile.File, tempRoot string) (*sourcefile.File, error) {
	data, err := file.Buffer()
	if err != nil {
		return nil, fmt.Errorf("outlook: read source: %w", err)
	}

	var msg mailMessage
	if file.Ext() == "msg" {
		msg, err = parseMSG(data)
	} else {
		msg, err = parseEML(data)
	}
	if err != nil {
		return nil, &ProcessingError{Status: 400, Message: fmt.Sprintf("outlook: parse %s: %v", file.FileName, err)}
	}

	body, isHTML := msg.body()
	if isHTML {
		return p.html.convert(ctx, []byte(body), tempRoot, file.ID, file.FileName)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", fallback(msg.subject, "(no subject)"))
	fmt.Fprintf(&sb, "**From:** %s\n\n", fallback(msg.sender, "(unknown sender)"))
	if msg.hasDate {
		fmt.Fprintf(&sb, "**Date:** %s\n\n", msg.date.UTC().Format(time.RFC3339))
	}
	sb.WriteString(body)

	return p.md.convertMarkdownToPDF(ctx, sb.String(), tempRoot, file.ID, file.FileName)
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// parseEML parses an RFC 5322 message, preferring a multipart/alternative
// HTML part over a plain-text one.
func parseEML(data []byte) (mailMessage, error) {
	entity, err := message.Read(bytes.NewReader(data))
	if err != nil {
		return mailMessage{}, err
	}

	header := entity.Header
	msg := mailMessage{
		sender:  header.Get("From"),
		subject: header.Get("Subject"),
	}
	if d, err := mail.ParseDate(header.Get("Date")); err == nil {
		msg.date, msg.hasDate = d, true
	}

	collectBody(entity, &msg)
	return msg, nil
}

func collectBody(entity *message.Entity, msg *mailMessage) {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err != nil {
				return
			}
			collectBody(part, msg)
		}
	}

	contentType, _, _ := entity.Header.ContentType()
	data, err := io.ReadAll(entity.Body)
	if err != nil {
		return
	}

	switch contentType {
	case "text/html":
		if msg.htmlBody == "" {
			msg.htmlBody = string(data)
		}
	case "text/plain":
		if msg.textBody == "" {
			msg.textBody = string(data)
		}
	}
}

// parseMSG reads an Outlook compound-file message, extracting the named
// top-level streams that carry the sender address, subject, and body.
func parseMSG(data []byte) (mailMessage, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return mailMessage{}, fmt.Errorf("open compound document: %w", err)
	}

	var msg mailMessage
	var senderName string

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		name := entry.Name
		buf := make([]byte, entry.Size)
		if _, rerr := entry.Read(buf); rerr != nil && rerr != io.EOF {
			continue
		}

		switch {
		case strings.HasPrefix(name, "__substg1.0_1000"): // PR_BODY
			msg.textBody = decodeOLEString(buf)
		case strings.HasPrefix(name, "__substg1.0_1013"): // PR_BODY_HTML
			msg.htmlBody = decodeOLEString(buf)
		case strings.HasPrefix(name, "__substg1.0_0C1F"): // PR_SENDER_EMAIL_ADDRESS
			msg.sender = decodeOLEString(buf)
		case strings.HasPrefix(name, "__substg1.0_0C1A"): // PR_SENDER_NAME, used only if no address stream is present
			senderName = decodeOLEString(buf)
		case strings.HasPrefix(name, "__substg1.0_0037"): // PR_SUBJECT
			msg.subject = decodeOLEString(buf)
		}
	}

	if msg.sender == "" {
		msg.sender = senderName
	}

	return msg, nil
}

// decodeOLEString strips a UTF-16LE-with-odd-trailing-byte PR_* stream down
// to its readable ASCII/Latin-1 subset; full codepage handling is out of
// scope for metadata extraction.
func decodeOLEString(buf []byte) string {
	var sb strings.Builder
	for i := 0; i+1 < len(buf); i += 2 {
		if buf[i] != 0 {
			sb.WriteByte(buf[i])
		}
	}
	return strings.TrimRight(sb.String(), "\x00")
}
