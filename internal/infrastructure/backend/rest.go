package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
)

type roleRow struct {
	Role string `json:"role"`
}

// FindRole reads the caller-visible role row of userID.
func (c *Client) FindRole(ctx context.Context, userID string) (string, error) {
	var row roleRow
	err := c.getSingle(ctx, "/user_roles", url.Values{
		"select":  {"role"},
		"user_id": {"eq." + userID},
	}, &row)
	if err != nil {
		return "", err
	}
	return row.Role, nil
}

// FindSelfProfile reads the profile row owned by userID.
func (c *Client) FindSelfProfile(ctx context.Context, userID string) (*domain.SelfProfile, error) {
	var p domain.SelfProfile
	err := c.getSingle(ctx, "/profiles", url.Values{
		"select":  {"full_name,phone_number,location"},
		"user_id": {"eq." + userID},
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProfileForRequester calls the get_profile_for_requester function, which
// applies the phone visibility policy for the caller's session identity.
func (c *Client) ProfileForRequester(ctx context.Context, targetUserID string) ([]ports.RequesterProfileRow, error) {
	bearer, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var rows []ports.RequesterProfileRow
	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   restPrefix + "/rpc/get_profile_for_requester",
		body:   map[string]string{"_target_user_id": targetUserID},
		bearer: bearer,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("get_profile_for_requester: %w", err)
	}
	return rows, nil
}

// getSingle fetches exactly one row. No matching row maps to domain.ErrNotFound.
func (c *Client) getSingle(ctx context.Context, table string, query url.Values, out any) error {
	bearer, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	err = c.do(ctx, request{
		method: http.MethodGet,
		path:   restPrefix + table,
		query:  query,
		accept: acceptSingleObject,
		bearer: bearer,
	}, out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NoRows() {
			return domain.ErrNotFound
		}
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}
