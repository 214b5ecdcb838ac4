// Package callctl talks to the call-control REST service: creating calls,
// resolving them, and keeping the presence roster warm.
package callctl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/OmerCohen55/VideoProject/internal/core/domain"
)

const requestTimeout = 9 * time.Second

type Client struct {
	http *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout),
	}
}

type callRequest struct {
	CallerEmail   string `json:"caller_email"`
	ReceiverEmail string `json:"receiver_email"`
}

type callResponse struct {
	CallID domain.CallID `json:"call_id"`
}

type actionRequest struct {
	CallID domain.CallID `json:"call_id"`
}

// Call asks the service to ring receiver on behalf of caller and returns the
// call id both sides will use for the rest of the exchange.
func (c *Client) Call(ctx context.Context, caller, receiver domain.UserHandle) (domain.CallID, error) {
	var out callResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(callRequest{CallerEmail: string(caller), ReceiverEmail: string(receiver)}).
		SetResult(&out).
		Post("/call")
	if err != nil {
		return 0, fmt.Errorf("call request: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("call request: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return out.CallID, nil
}

func (c *Client) Accept(ctx context.Context, id domain.CallID) error {
	return c.action(ctx, "/accept", id)
}

func (c *Client) Reject(ctx context.Context, id domain.CallID) error {
	return c.action(ctx, "/reject", id)
}

func (c *Client) End(ctx context.Context, id domain.CallID) error {
	return c.action(ctx, "/end", id)
}

func (c *Client) action(ctx context.Context, path string, id domain.CallID) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(actionRequest{CallID: id}).
		Post(path)
	if err != nil {
		return fmt.Errorf("%s request: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s request: HTTP %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}

// Online fetches the handles with a fresh keepalive.
func (c *Client) Online(ctx context.Context) ([]domain.UserHandle, error) {
	var emails []string
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&emails).
		Get("/online")
	if err != nil {
		return nil, fmt.Errorf("online request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("online request: HTTP %d", resp.StatusCode())
	}
	handles := make([]domain.UserHandle, 0, len(emails))
	for _, e := range emails {
		handles = append(handles, domain.NewUserHandle(e))
	}
	return handles, nil
}

// KeepAlive marks self online for another presence window.
func (c *Client) KeepAlive(ctx context.Context, self domain.UserHandle) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user", string(self)).
		Post("/keepalive")
	if err != nil {
		return fmt.Errorf("keepalive request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("keepalive request: HTTP %d", resp.StatusCode())
	}
	return nil
}
