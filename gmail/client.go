// Package gmail implements mail.Provider on the Gmail REST API.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bassamadnan/mailsight/mail"
)

const (
	user = "me"
	// pageSize caps a single list call; the API rejects more than 500.
	pageSize = 500
)

type Client struct {
	srv *gmail.Service
	log zerolog.Logger
}

var _ mail.Provider = (*Client)(nil)

// NewClient builds a Gmail service on an already authorized HTTP client.
// Extra options are appended, which lets tests point it at a fake server.
func NewClient(ctx context.Context, httpClient *http.Client, log zerolog.Logger, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Client{srv: srv, log: log.With().Str("component", "gmail").Logger()}, nil
}

// ListMessages pages through the label until maxResults ids are collected or the
// pages run out.
func (c *Client) ListMessages(ctx context.Context, label string, maxResults int64) ([]string, error) {
	var ids []string
	pageToken := ""
	for int64(len(ids)) < maxResults {
		call := c.srv.Users.Messages.List(user).
			LabelIds(label).
			MaxResults(min(maxResults-int64(len(ids)), pageSize)).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, classify(fmt.Errorf("unable to list %s messages: %w", label, err))
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		c.log.Debug().Str("label", label).Int("page", len(resp.Messages)).Msg("listed page")
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	if int64(len(ids)) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

// FetchSnippet returns the server-computed snippet. Gmail encodes HTML
// entities in it, so they are decoded here.
func (c *Client) FetchSnippet(ctx context.Context, id string) (string, error) {
	msg, err := c.srv.Users.Messages.Get(user, id).Format("minimal").Context(ctx).Do()
	if err != nil {
		return "", classify(fmt.Errorf("unable to retrieve message %s: %w", id, err))
	}
	return html.UnescapeString(msg.Snippet), nil
}

// classify marks a rejected credential so the caller can drop its session.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return mail.Unauthorized(err)
	}
	return err
}
