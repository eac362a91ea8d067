package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"invoicer/internal/errs"
	"invoicer/internal/logger"
)

// currentUser addresses the authenticated mailbox.
const currentUser = "me"

// Service reads timesheet threads from and writes drafts to a Gmail mailbox
type Service struct {
	gmailService *gmail.Service
	log          zerolog.Logger
}

// NewGmailService creates a Gmail service. httpClient must carry the OAuth
// credentials.
func NewGmailService(ctx context.Context, httpClient *http.Client) (*Service, error) {
	return NewGmailServiceWithOptions(ctx, option.WithHTTPClient(httpClient))
}

// NewGmailServiceWithOptions creates a Gmail service from explicit client
// options.
func NewGmailServiceWithOptions(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	const op = "NewGmailService"

	gmailService, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create gmail service: %w", op, err)
	}

	return &Service{
		gmailService: gmailService,
		log:          logger.WithComponent("gmail"),
	}, nil
}

// ListLabeledThreads returns the IDs of the most recent threads carrying the
// label called labelName, newest first, at most maxThreads of them.
func (s *Service) ListLabeledThreads(ctx context.Context, labelName string, maxThreads int64) ([]string, error) {
	const op = "ListLabeledThreads"

	labelID, err := s.labelID(ctx, labelName)
	if err != nil {
		return nil, err
	}

	resp, err := s.gmailService.Users.Threads.List(currentUser).
		LabelIds(labelID).
		MaxResults(maxThreads).
		Context(ctx).Do()
	if err != nil {
		return nil, errs.External(op, err, fmt.Sprintf("failed to list threads with label %q", labelName))
	}

	ids := make([]string, 0, len(resp.Threads))
	for _, thread := range resp.Threads {
		ids = append(ids, thread.Id)
	}

	s.log.Info().
		Str("label", labelName).
		Int("threads", len(ids)).
		Msg("Listed labeled threads")

	return ids, nil
}

func (s *Service) labelID(ctx context.Context, labelName string) (string, error) {
	const op = "labelID"

	resp, err := s.gmailService.Users.Labels.List(currentUser).Context(ctx).Do()
	if err != nil {
		return "", errs.External(op, err, "failed to list labels")
	}
	for _, label := range resp.Labels {
		if label.Name == labelName {
			return label.Id, nil
		}
	}
	return "", errs.MissingData(op, fmt.Sprintf("gmail label %q not found", labelName))
}

// ThreadHTML returns the first text/html part of the first message of the
// thread. An empty string with a nil error means the message has no HTML.
func (s *Service) ThreadHTML(ctx context.Context, threadID string) (string, error) {
	const op = "ThreadHTML"

	thread, err := s.gmailService.Users.Threads.Get(currentUser, threadID).
		Format("full").
		Context(ctx).Do()
	if err != nil {
		return "", errs.External(op, err, "failed to get thread "+threadID)
	}
	if len(thread.Messages) == 0 || thread.Messages[0].Payload == nil {
		return "", nil
	}

	part := findHTMLPart(thread.Messages[0].Payload)
	if part == nil {
		s.log.Debug().Str("thread_id", threadID).Msg("No HTML part in thread")
		return "", nil
	}

	body, err := decodeBody(part.Body.Data)
	if err != nil {
		return "", errs.External(op, err, "failed to decode HTML body of thread "+threadID)
	}
	return body, nil
}

// findHTMLPart searches the MIME tree depth first for a text/html part with
// inline data.
func findHTMLPart(part *gmail.MessagePart) *gmail.MessagePart {
	if part == nil {
		return nil
	}
	if strings.EqualFold(part.MimeType, "text/html") && part.Body != nil && part.Body.Data != "" {
		return part
	}
	for _, child := range part.Parts {
		if found := findHTMLPart(child); found != nil {
			return found
		}
	}
	return nil
}

// decodeBody decodes base64url message data, with or without padding.
func decodeBody(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}

// ThreadSubject returns the subject of the first message of the thread, or
// "timesheet_<threadID>" when it has none.
func (s *Service) ThreadSubject(ctx context.Context, threadID string) (string, error) {
	const op = "ThreadSubject"

	thread, err := s.gmailService.Users.Threads.Get(currentUser, threadID).
		Format("metadata").
		MetadataHeaders("Subject").
		Context(ctx).Do()
	if err != nil {
		return "", errs.External(op, err, "failed to get thread "+threadID)
	}

	if len(thread.Messages) > 0 && thread.Messages[0].Payload != nil {
		for _, header := range thread.Messages[0].Payload.Headers {
			if strings.EqualFold(header.Name, "subject") && header.Value != "" {
				return header.Value, nil
			}
		}
	}

	s.log.Warn().Str("thread_id", threadID).Msg("Thread has no subject")
	return "timesheet_" + threadID, nil
}
