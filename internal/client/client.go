// Package client is the HTTP client for the passman server: registration,
// challenge-response authentication, and item/key/ACL access. All secret
// material is prepared locally; the server only ever sees ciphertext.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/api"
	"github.com/passman-project/passman/internal/common"
)

type Client struct {
	baseURL      string
	http         *http.Client
	sessionToken string
	userID       uuid.UUID
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// UserID returns the authenticated user id, or uuid.Nil before login.
func (c *Client) UserID() uuid.UUID {
	return c.userID
}

// do runs one request. A JSON body is marshaled when in is non-nil; a JSON
// answer is unmarshaled when out is non-nil. Error answers are decoded into
// the shared error values so callers can match with errors.Is.
func (c *Client) do(ctx context.Context, method, path string, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// decodeError turns an error answer back into the shared error values.
func decodeError(resp *http.Response) error {
	var body api.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Code == "" {
		return fmt.Errorf("server answered %s", resp.Status)
	}
	return &common.Error{Code: body.Code, Message: body.Message}
}

// Hello fetches the server identity and protocol information.
func (c *Client) Hello(ctx context.Context) (*api.Hello, error) {
	var out api.Hello
	if err := c.do(ctx, http.MethodGet, "/hello", "", nil, &out); err != nil {
		return nil, err
	}
	if out.ProtocolID != common.ProtocolID {
		return nil, fmt.Errorf("server speaks a different protocol (%s)", out.ProtocolID)
	}
	return &out, nil
}

// Register creates a user from an address and locally prepared auth material.
func (c *Client) Register(ctx context.Context, address string, auth api.UserAuth) (uuid.UUID, error) {
	req := api.NewUserRequest{UserAddress: address, InitialAuth: auth}
	var out api.NewUserResponse
	if err := c.do(ctx, http.MethodPost, "/users/new", "", req, &out); err != nil {
		return uuid.Nil, err
	}
	return out.UserID, nil
}

// BeginChallenge starts authentication for userID under a fresh
// client-chosen challenge session id.
func (c *Client) BeginChallenge(ctx context.Context, userID uuid.UUID) (uuid.UUID, *api.AuthChallengeResponse, error) {
	sessionID := uuid.New()
	req := api.AuthChallengeRequest{UserID: userID, ChallengeSessionID: sessionID}
	var out api.AuthChallengeResponse
	if err := c.do(ctx, http.MethodPost, "/auth/challenge", "", req, &out); err != nil {
		return uuid.Nil, nil, err
	}
	return sessionID, &out, nil
}

// FulfillChallenge presents the signature over the challenge bytes and, on
// success, stores the session token for subsequent calls.
func (c *Client) FulfillChallenge(ctx context.Context, sessionID uuid.UUID, signature []byte) error {
	req := api.AuthResponse{ChallengeSignature: signature}
	var out api.AuthSession
	if err := c.do(ctx, http.MethodPost, "/auth/response", sessionID.String(), req, &out); err != nil {
		return err
	}
	c.sessionToken = out.SessionToken
	c.userID = out.UserID
	return nil
}

// Logout revokes the current session.
func (c *Client) Logout(ctx context.Context) error {
	if c.sessionToken == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/logout", c.sessionToken, nil, nil)
	c.sessionToken = ""
	c.userID = uuid.Nil
	return err
}

func (c *Client) GetAuth(ctx context.Context, userID uuid.UUID) (*api.UserAuth, error) {
	var out api.UserAuth
	path := fmt.Sprintf("/users/%s/auth", userID)
	if err := c.do(ctx, http.MethodGet, path, c.sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAuth(ctx context.Context, userID uuid.UUID, auth api.UserAuth) error {
	path := fmt.Sprintf("/users/%s/auth", userID)
	return c.do(ctx, http.MethodPut, path, c.sessionToken, auth, nil)
}

func (c *Client) GetRootInfo(ctx context.Context, userID uuid.UUID) (*api.UserRootInfo, error) {
	var out api.UserRootInfo
	path := fmt.Sprintf("/users/%s/root", userID)
	if err := c.do(ctx, http.MethodGet, path, c.sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateRootInfo(ctx context.Context, userID uuid.UUID, info api.UserRootInfo) error {
	path := fmt.Sprintf("/users/%s/root", userID)
	return c.do(ctx, http.MethodPut, path, c.sessionToken, info, nil)
}

func (c *Client) GetPublicKey(ctx context.Context, userID uuid.UUID) (*api.UserPublicKey, error) {
	var out api.UserPublicKey
	path := fmt.Sprintf("/users/%s/public-key", userID)
	if err := c.do(ctx, http.MethodGet, path, c.sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	path := fmt.Sprintf("/users/%s", userID)
	return c.do(ctx, http.MethodDelete, path, c.sessionToken, nil, nil)
}

func (c *Client) GetAcl(ctx context.Context, objectType string, object uuid.UUID, subject *uuid.UUID) ([]api.AclRow, error) {
	path := fmt.Sprintf("/%s/%s/acl", objectType, object)
	if subject != nil {
		path += "?subject=" + url.QueryEscape(subject.String())
	}
	var out []api.AclRow
	if err := c.do(ctx, http.MethodGet, path, c.sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) WriteAcl(ctx context.Context, objectType string, object uuid.UUID, rows []api.AclRow) error {
	path := fmt.Sprintf("/%s/%s/acl", objectType, object)
	return c.do(ctx, http.MethodPost, path, c.sessionToken, rows, nil)
}

func (c *Client) ReplaceAcl(ctx context.Context, objectType string, object uuid.UUID, rows []api.AclRow) error {
	path := fmt.Sprintf("/%s/%s/acl", objectType, object)
	return c.do(ctx, http.MethodPut, path, c.sessionToken, rows, nil)
}

func (c *Client) GetItemKeys(ctx context.Context, itemID uuid.UUID) (*api.ItemKeySet, error) {
	var out api.ItemKeySet
	path := fmt.Sprintf("/items/%s/keys", itemID)
	if err := c.do(ctx, http.MethodGet, path, c.sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PutItemKeys(ctx context.Context, itemID uuid.UUID, set api.ItemKeySet) (int64, error) {
	var out api.PutKeysResponse
	path := fmt.Sprintf("/items/%s/keys", itemID)
	if err := c.do(ctx, http.MethodPut, path, c.sessionToken, set, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

func (c *Client) GetItemMetadata(ctx context.Context, itemID uuid.UUID) (*api.ItemMetadata, error) {
	var out api.ItemMetadata
	path := fmt.Sprintf("/items/%s/metadata", itemID)
	if err := c.do(ctx, http.MethodGet, path, c.sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetItemContent fetches the raw ciphertext of an item.
func (c *Client) GetItemContent(ctx context.Context, itemID uuid.UUID) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/items/%s", c.baseURL, itemID), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.sessionToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", decodeError(resp)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return content, resp.Header.Get("Content-Type"), nil
}

// PutItemContent uploads the raw ciphertext of an item.
func (c *Client) PutItemContent(ctx context.Context, itemID uuid.UUID, content []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/items/%s", c.baseURL, itemID), bytes.NewReader(content))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.sessionToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	path := fmt.Sprintf("/items/%s", itemID)
	return c.do(ctx, http.MethodDelete, path, c.sessionToken, nil, nil)
}
