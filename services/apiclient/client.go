// Package apiclient talks to the EcoleHub API from a teacher device.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/ecolehub/backend/core/grade"
	"github.com/ecolehub/backend/core/note"
)

var ErrNoToken = errors.New("apiclient: not logged in")

type Client struct {
	baseURL string
	token   string
	rc      *rest.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		rc:      &rest.Client{HTTPClient: &http.Client{Timeout: 30 * time.Second}},
	}
}

func (c *Client) Token() string { return c.token }

func (c *Client) SetToken(token string) { c.token = token }

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a token and keeps it for the next calls.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	res, err := c.send(ctx, rest.Post, "/v1/users/login", loginRequest{Username: username, Password: password}, false)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("login failed: %s", errorMessage(res))
	}
	var lr loginResponse
	if err = json.Unmarshal([]byte(res.Body), &lr); err != nil {
		return "", errors.Wrap(err, "decoding login response")
	}
	c.token = lr.Token
	return lr.Token, nil
}

// PublishNote posts the note as a column of grades. A refused note is a failed
// result; only transport problems are returned as errors.
func (c *Client) PublishNote(ctx context.Context, n note.Note) (note.PublishResult, error) {
	if c.token == "" {
		return note.PublishResult{}, ErrNoToken
	}
	path := fmt.Sprintf("/v1/schools/%s/grades/bulk", n.SchoolID)
	res, err := c.send(ctx, rest.Post, path, n.BulkGrades(), true)
	if err != nil {
		return note.PublishResult{}, err
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return note.PublishResult{Success: false, Error: errorMessage(res)}, nil
	}

	var grades []grade.Grade
	if err = json.Unmarshal([]byte(res.Body), &grades); err != nil {
		return note.PublishResult{}, errors.Wrap(err, "decoding published grades")
	}
	ids := make([]string, 0, len(grades))
	for _, g := range grades {
		ids = append(ids, g.ID)
	}
	return note.PublishResult{Success: true, RemoteID: strings.Join(ids, ",")}, nil
}

// PublishHandler adapts the client to the note syncer.
func (c *Client) PublishHandler() note.PublishHandler {
	return c.PublishNote
}

func (c *Client) send(ctx context.Context, method rest.Method, path string, payload interface{}, auth bool) (*rest.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Body: body,
	}
	if auth {
		req.Headers["Authorization"] = "Bearer " + c.token
	}
	httpReq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	httpRes, err := c.rc.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s: reading response", method, path)
	}
	return res, nil
}

// errorMessage extracts the API error message, falling back to the raw body.
func errorMessage(res *rest.Response) string {
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(res.Body), &body); err == nil {
		if msg, ok := body["error"].(string); ok {
			return msg
		}
	}
	if msg := strings.TrimSpace(res.Body); msg != "" {
		return msg
	}
	return http.StatusText(res.StatusCode)
}
