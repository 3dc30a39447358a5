package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// Options configures a Client
type Options struct {
	// Endpoint overrides the API base URL
	Endpoint string
	// HTTPClient is the base client the bearer transport wraps
	HTTPClient *http.Client
	// Limiter paces API calls. Share one across clients to hold a quota.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// Client talks to the Gmail REST API with a bearer token
type Client struct {
	srv     *gmail.Service
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a client that authenticates every request with token
func NewClient(ctx context.Context, token string, opts Options) (*Client, error) {
	if token == "" {
		return nil, errors.New("empty access token")
	}
	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
	httpClient.Timeout = base.Timeout

	svcOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(strings.TrimSuffix(opts.Endpoint, "/")+"/"))
	}
	srv, err := gmail.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Client{srv: srv, limiter: opts.Limiter, logger: logger}, nil
}

// SearchMessageID returns the id of the first message matching query
func (c *Client) SearchMessageID(ctx context.Context, query string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	r, err := c.srv.Users.Messages.List(user).Q(query).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return "", wrapErr(err)
	}
	if len(r.Messages) == 0 {
		return "", ErrNoMatch
	}
	return r.Messages[0].Id, nil
}

// GetMessage fetches a message with its full part tree
func (c *Client) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	msg, err := c.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapErr(err)
	}
	return msg, nil
}

// GetAttachment downloads and decodes one attachment
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	body, err := c.srv.Users.Messages.Attachments.Get(user, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, wrapErr(err)
	}
	data, err := DecodeBase64URL(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment %s: %w", attachmentID, err)
	}
	return data, nil
}

// Locate finds the message matching subject and sender and lists its
// attachment parts. A message from a different sender address is rejected.
func (c *Client) Locate(ctx context.Context, subject, sender string) (string, []PartAttachment, error) {
	id, err := c.SearchMessageID(ctx, SearchQuery(subject, sender))
	if err != nil {
		return "", nil, err
	}
	msg, err := c.GetMessage(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if from := Sender(msg); strings.Contains(sender, "@") && !strings.EqualFold(from, sender) {
		return "", nil, fmt.Errorf("%s: %w", from, ErrSenderMismatch)
	}
	parts := Attachments(msg)
	c.logger.Debug("Located message",
		zap.String("message_id", id),
		zap.String("subject", Subject(msg)),
		zap.Int("attachments", len(parts)))
	return id, parts, nil
}

// SearchQuery builds a search for the message with this subject and sender.
// Empty values are left out.
func SearchQuery(subject, sender string) string {
	var terms []string
	if s := strings.TrimSpace(strings.ReplaceAll(subject, `"`, "")); s != "" {
		terms = append(terms, fmt.Sprintf(`subject:"%s"`, s))
	}
	if s := strings.TrimSpace(sender); s != "" && !strings.ContainsAny(s, " \t") {
		terms = append(terms, "from:"+s)
	}
	return strings.Join(terms, " ")
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func wrapErr(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return &APIError{Status: gerr.Code, Body: body}
	}
	return err
}
