package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// UserID accepts both numeric and string encodings of the identity id.
type UserID int64

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", data)
	}
	*id = UserID(v)
	return nil
}

func (id UserID) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(id))
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   int64
	Username string
	Role     string
}

// AccessTokenClaims is the session token issued by the identity service.
type AccessTokenClaims struct {
	UserID   UserID `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ActorID prefers the user_id claim and falls back to sub.
func (c *AccessTokenClaims) ActorID() (int64, error) {
	if c.UserID > 0 {
		return int64(c.UserID), nil
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("token carries no user id")
	}
	return id, nil
}
