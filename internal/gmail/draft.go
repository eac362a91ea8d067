package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/gmail/v1"

	"invoicer/internal/errs"
)

// Draft is an outbound message to be saved as a Gmail draft.
type Draft struct {
	From        string
	To          []string
	Cc          []string
	Subject     string
	Body        string   // plain text
	Attachments []string // file paths
}

// CreateDraft saves d as a draft in the mailbox and returns the draft ID.
func (s *Service) CreateDraft(ctx context.Context, d Draft) (string, error) {
	const op = "CreateDraft"

	raw, err := BuildMessage(d)
	if err != nil {
		return "", errs.External(op, err, "failed to build draft message")
	}

	draft := &gmail.Draft{
		Message: &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)},
	}

	created, err := s.gmailService.Users.Drafts.Create(currentUser, draft).Context(ctx).Do()
	if err != nil {
		return "", errs.External(op, err, fmt.Sprintf("failed to create draft %q", d.Subject))
	}

	s.log.Info().
		Str("draft_id", created.Id).
		Str("subject", d.Subject).
		Int("attachments", len(d.Attachments)).
		Msg("Created draft")

	return created.Id, nil
}

// BuildMessage renders d as an RFC 5322 multipart/mixed message.
func BuildMessage(d Draft) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	writeHeader(&buf, "From", d.From)
	writeHeader(&buf, "To", strings.Join(d.To, ", "))
	writeHeader(&buf, "Cc", strings.Join(d.Cc, ", "))
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", d.Subject))
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	buf.WriteString("\r\n")

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(textPart, []byte(d.Body)); err != nil {
		return nil, err
	}

	for _, path := range d.Attachments {
		if err := attachFile(mw, path); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeHeader writes one header line. Empty values are omitted.
func writeHeader(buf *bytes.Buffer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(buf, "%s: %s\r\n", key, value)
}

func attachFile(mw *multipart.Writer, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(contentType, map[string]string{"name": name})},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}
	return writeBase64(part, content)
}

// writeBase64 writes data base64 encoded in 76-character lines.
func writeBase64(w io.Writer, data []byte) error {
	const lineLength = 76

	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := lineLength
		if len(encoded) < n {
			n = len(encoded)
		}
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:n]); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
