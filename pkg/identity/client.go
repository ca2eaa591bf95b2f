// Package identity reads user profiles from the core identity service.
package identity

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/upstream"
)

const userDetailsPath = "/app-management/user/get-details"

// Role is the role attached to a user.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is the profile returned by the identity service.
type User struct {
	ID           int64           `json:"id"`
	Email        *string         `json:"email"`
	Name         string          `json:"name"`
	Username     string          `json:"username"`
	Role         Role            `json:"role"`
	Active       string          `json:"active"`
	RegisteredAt string          `json:"registered_at"`
	Contact      json.RawMessage `json:"contact"`
}

// Client resolves user ids to profiles.
type Client struct {
	http *upstream.Client
}

func NewClient(baseURL string, opts ...upstream.Option) (*Client, error) {
	c, err := upstream.New(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{http: c}, nil
}

// GetUsersByIDs fetches every distinct id in one call. Unknown ids are simply
// missing from the result.
func (c *Client) GetUsersByIDs(ctx context.Context, token string, ids []int64) (map[int64]User, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return map[int64]User{}, nil
	}

	parts := make([]string, len(unique))
	for i, id := range unique {
		parts[i] = strconv.FormatInt(id, 10)
	}

	body, err := c.http.Get(ctx, token, userDetailsPath, url.Values{"ids": {strings.Join(parts, ",")}})
	if err != nil {
		return nil, err
	}

	users, err := decodeUsers(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode user details")
	}

	out := make(map[int64]User, len(users))
	for _, u := range users {
		if u.ID > 0 {
			out[u.ID] = u
		}
	}
	return out, nil
}

// decodeUsers accepts a bare array, a data envelope, or a users/result list
// nested in it.
func decodeUsers(body []byte) ([]User, error) {
	payload := upstream.Unwrap(body)
	if len(payload) > 0 && payload[0] == '[' {
		var users []User
		err := json.Unmarshal(payload, &users)
		return users, err
	}

	var nested struct {
		Users  []User `json:"users"`
		Result []User `json:"result"`
	}
	if err := json.Unmarshal(payload, &nested); err != nil {
		return nil, err
	}
	if len(nested.Users) > 0 {
		return nested.Users, nil
	}
	return nested.Result, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
