package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolftalk/wolftalk/validator"
)

// Client calls the WolfTalk REST API. All methods translate failures into a
// transport error, a *StatusError or ErrMalformedResponse.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
	Val     *validator.Validator

	// Session is forwarded on every request when set. It is the cookie the
	// SSO login handed to the user.
	Session *http.Cookie

	// Identity is sent as the SSO unity id header when set, for servers
	// reached without an SSO proxy.
	Identity string
}

// New returns a Client for the API rooted at baseURL.
func New(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Logger:  logger,
		Val:     validator.New(),
	}
}

const (
	loginPath  = "/Shibboleth.sso/Login"
	logoutPath = "/Shibboleth.sso/Logout"
)

// LoginURL is where an unauthenticated user is sent before viewing a
// protected page. returnTo is the path and query to come back to.
func (c *Client) LoginURL(returnTo string) string {
	return c.BaseURL + loginPath + "?target=" + url.QueryEscape(returnTo)
}

// LogoutURL ends the SSO session.
func (c *Client) LogoutURL() string {
	return c.BaseURL + logoutPath
}

// identityHeader carries the unity id the SSO service provider vouches for.
const identityHeader = "X-Shib-Eptid"

// textBody marks a request body that is sent as plain text instead of JSON.
type textBody string

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 4 << 10

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var (
		rdr         io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case textBody:
		rdr = strings.NewReader(string(b))
		contentType = "text/plain; charset=utf-8"
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		rdr = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.Session != nil {
		req.AddCookie(c.Session)
	}
	if c.Identity != "" {
		req.Header.Set(identityHeader, c.Identity)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Error("Request failed", "method", method, "path", path, "error", err.Error())
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
		c.Logger.Error("Request returned error status", "method", method, "path", path, "status", resp.StatusCode, "message", serr.Message)
		return serr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if s, ok := out.(*string); ok {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		*s = strings.TrimSpace(string(b))
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.Logger.Error("Could not decode response", "method", method, "path", path, "error", err.Error())
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	if err := c.check(out); err != nil {
		c.Logger.Error("Response failed validation", "method", method, "path", path, "error", err.Error())
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

// check validates a decoded response. Slices are validated element by element.
func (c *Client) check(out any) error {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return c.Val.Check(v.Interface())
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			e := v.Index(i)
			if e.Kind() != reflect.Struct {
				continue
			}
			if err := c.Val.Check(e.Interface()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return nil
}

// errorMessage pulls a human readable message out of an error body. The
// backend answers either {"error": "..."} or plain text.
func errorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(b) == 0 {
		return ""
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(b))
}

func idPath(format string, ids ...any) string {
	escaped := make([]any, len(ids))
	for i, id := range ids {
		escaped[i] = url.PathEscape(fmt.Sprint(id))
	}
	return fmt.Sprintf(format, escaped...)
}
