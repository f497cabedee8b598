// Package cupi wraps the Unity Connection Provisioning Interface (/vmrest).
package cupi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"unicode"

	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/transport"
)

// Config holds Unity Connection connection settings.
type Config struct {
	Host     string
	Username string
	Password string
	BaseURL  string // overrides https://<Host>/vmrest when set
}

// Client calls CUPI endpoints.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a CUPI client.
func New(cfg Config, httpClient *http.Client) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s/vmrest", cfg.Host)
	}
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(transport.Options{})
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		logger:     slog.Default(),
	}
}

// User is a Unity Connection mailbox user.
type User struct {
	URI          string `json:"URI,omitempty"`
	ObjectID     string `json:"ObjectId,omitempty"`
	Alias        string `json:"Alias"`
	FirstName    string `json:"FirstName,omitempty"`
	LastName     string `json:"LastName,omitempty"`
	DisplayName  string `json:"DisplayName,omitempty"`
	DtmfAccessID string `json:"DtmfAccessId,omitempty"`
	EmailAddress string `json:"EmailAddress,omitempty"`
}

// UserTemplate is a template new mailboxes are created from.
type UserTemplate struct {
	ObjectID    string `json:"ObjectId"`
	Alias       string `json:"Alias"`
	DisplayName string `json:"DisplayName,omitempty"`
}

// UserList is a page of users. CUPI sends a bare object for one result.
type UserList struct {
	Total envelope.Total           `json:"@total"`
	Users envelope.OneOrMany[User] `json:"User"`
}

// Query filters and pages a user listing. Query uses CUPI syntax, e.g.
// "(alias is jdoe)" or "(alias startswith j)".
type Query struct {
	Query       string
	RowsPerPage int
	PageNumber  int
}

// ListUsers returns users matching q.
func (c *Client) ListUsers(ctx context.Context, q Query) (UserList, error) {
	v := url.Values{}
	if q.Query != "" {
		v.Set("query", q.Query)
	}
	if q.RowsPerPage > 0 {
		v.Set("rowsPerPage", fmt.Sprint(q.RowsPerPage))
	}
	if q.PageNumber > 0 {
		v.Set("pageNumber", fmt.Sprint(q.PageNumber))
	}

	var out UserList
	if _, err := c.do(ctx, http.MethodGet, "/users", v, nil, &out); err != nil {
		return UserList{}, err
	}
	out.Users = out.Users.Items()
	return out, nil
}

// FindUserByAlias returns the user with the given alias, or ok=false. CUPI
// query syntax has no quoting, so aliases that would change the clause
// (whitespace, parentheses, control characters) are rejected before any
// request is made.
func (c *Client) FindUserByAlias(ctx context.Context, alias string) (User, bool, error) {
	if alias == "" || strings.IndexFunc(alias, breaksQuery) >= 0 {
		return User{}, false, envelope.Invalid(fmt.Sprintf("cupi find user: invalid alias %q", alias))
	}
	list, err := c.ListUsers(ctx, Query{Query: "(alias is " + alias + ")"})
	if err != nil {
		return User{}, false, err
	}
	for _, u := range list.Users {
		if strings.EqualFold(u.Alias, alias) {
			return u, true, nil
		}
	}
	return User{}, false, nil
}

func breaksQuery(r rune) bool {
	return r == '(' || r == ')' || unicode.IsSpace(r) || unicode.IsControl(r)
}

// GetUser returns a user by object id.
func (c *Client) GetUser(ctx context.Context, objectID string) (User, error) {
	var u User
	if _, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(objectID), nil, nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateUser creates a mailbox from a user template and returns the new
// object id. CUPI answers 201 with the new resource path as the body.
func (c *Client) CreateUser(ctx context.Context, templateAlias string, u User) (string, error) {
	if templateAlias == "" {
		return "", envelope.Invalid("cupi create user: template alias is required")
	}
	if u.Alias == "" {
		return "", envelope.Invalid("cupi create user: alias is required")
	}
	v := url.Values{"templateAlias": {templateAlias}}
	body, err := c.do(ctx, http.MethodPost, "/users", v, u, nil)
	if err != nil {
		return "", err
	}
	loc := strings.TrimSpace(string(body))
	if loc == "" {
		return "", errors.New("cupi create user: empty response")
	}
	return path.Base(loc), nil
}

// DeleteUser removes a mailbox user.
func (c *Client) DeleteUser(ctx context.Context, objectID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(objectID), nil, nil, nil)
	return err
}

// SetPIN sets the voicemail PIN of a user.
func (c *Client) SetPIN(ctx context.Context, objectID, pin string) error {
	body := map[string]string{"Credentials": pin}
	_, err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(objectID)+"/credential/pin", nil, body, nil)
	return err
}

// ListUserTemplates returns the configured user templates.
func (c *Client) ListUserTemplates(ctx context.Context) ([]UserTemplate, error) {
	var out struct {
		Total     envelope.Total                   `json:"@total"`
		Templates envelope.OneOrMany[UserTemplate] `json:"UserTemplate"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/usertemplates", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Templates.Items(), nil
}

// Version returns the Unity Connection product version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/version/product", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

func (c *Client) do(ctx context.Context, method, p string, q url.Values, in, out any) ([]byte, error) {
	u := c.baseURL + p
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cupi %s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	body, err := transport.ReadBody(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("cupi request", "method", method, "path", p, "status", resp.StatusCode)

	if !transport.OK(resp.StatusCode) {
		return nil, fmt.Errorf("cupi %s %s: %w", method, p, envelope.ParseError(envelope.CUPI, resp.StatusCode, body))
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("cupi %s %s: decoding response: %w", method, p, err)
		}
	}
	return body, nil
}
