package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

type parsedPart struct {
	contentType string
	filename    string
	body        string
}

func parseMessage(t *testing.T, raw []byte) (*mail.Message, []parsedPart) {
	t.Helper()

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	var parts []parsedPart
	reader := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		encoded, err := io.ReadAll(part)
		require.NoError(t, err)
		decoded, err := base64.StdEncoding.DecodeString(string(bytes.ReplaceAll(encoded, []byte("\r\n"), nil)))
		require.NoError(t, err)

		parts = append(parts, parsedPart{
			contentType: part.Header.Get("Content-Type"),
			filename:    part.FileName(),
			body:        string(decoded),
		})
	}
	return msg, parts
}

func TestBuildMessage(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "Apr 11 - 17.png")
	pdf := filepath.Join(dir, "Invoice #6.pdf")
	require.NoError(t, os.WriteFile(png, []byte("png-bytes"), 0o644))
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644))

	raw, err := BuildMessage(Draft{
		From:        "me",
		To:          []string{"billing@example.com", "ops@example.com"},
		Cc:          []string{"lead@example.com"},
		Subject:     "Invoice #6",
		Body:        "Please find attached Invoice #6.",
		Attachments: []string{png, pdf},
	})
	require.NoError(t, err)

	msg, parts := parseMessage(t, raw)
	assert.Equal(t, "billing@example.com, ops@example.com", msg.Header.Get("To"))
	assert.Equal(t, "lead@example.com", msg.Header.Get("Cc"))
	assert.Equal(t, "Invoice #6", msg.Header.Get("Subject"))

	require.Len(t, parts, 3)
	assert.Equal(t, "Please find attached Invoice #6.", parts[0].body)
	assert.Equal(t, "Apr 11 - 17.png", parts[1].filename)
	assert.Contains(t, parts[1].contentType, "image/png")
	assert.Equal(t, "png-bytes", parts[1].body)
	assert.Equal(t, "Invoice #6.pdf", parts[2].filename)
	assert.Contains(t, parts[2].contentType, "application/pdf")
	assert.Equal(t, "%PDF-1.4", parts[2].body)
}

func TestBuildMessageWithoutRecipients(t *testing.T) {
	raw, err := BuildMessage(Draft{Subject: "Invoice #6", Body: "hi"})
	require.NoError(t, err)

	msg, parts := parseMessage(t, raw)
	assert.Empty(t, msg.Header.Get("To"))
	assert.Empty(t, msg.Header.Get("Cc"))
	require.Len(t, parts, 1)
}

func TestBuildMessageMissingAttachment(t *testing.T) {
	_, err := BuildMessage(Draft{Subject: "x", Attachments: []string{filepath.Join(t.TempDir(), "gone.pdf")}})
	assert.Error(t, err)
}

func TestCreateDraft(t *testing.T) {
	var got gmail.Draft
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gmail/v1/users/me/drafts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, &gmail.Draft{Id: "r-123"})
	})

	id, err := s.CreateDraft(context.Background(), Draft{To: []string{"billing@example.com"}, Subject: "Invoice #6", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "r-123", id)

	require.NotNil(t, got.Message)
	raw, err := base64.URLEncoding.DecodeString(got.Message.Raw)
	require.NoError(t, err)
	msg, _ := parseMessage(t, raw)
	assert.Equal(t, "Invoice #6", msg.Header.Get("Subject"))
}
