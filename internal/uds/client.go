// Package uds wraps the CUCM User Data Service, a read-mostly XML directory API.
package uds

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/transport"
)

// Config holds UDS connection settings. UDS lives on the CUCM nodes, so
// Host is usually the same as the AXL host.
type Config struct {
	Host     string
	Username string
	Password string
	BaseURL  string // overrides https://<Host>:8443/cucm-uds when set
}

// Client calls UDS endpoints.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a UDS client.
func New(cfg Config, httpClient *http.Client) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s:8443/cucm-uds", cfg.Host)
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

// User is a UDS directory entry.
type User struct {
	URI          string `xml:"uri,attr" json:"uri,omitempty"`
	ID           string `xml:"id" json:"id"`
	UserName     string `xml:"userName" json:"userName"`
	FirstName    string `xml:"firstName" json:"firstName"`
	LastName     string `xml:"lastName" json:"lastName"`
	DisplayName  string `xml:"displayName" json:"displayName,omitempty"`
	PhoneNumber  string `xml:"phoneNumber" json:"phoneNumber"`
	MobileNumber string `xml:"mobileNumber" json:"mobileNumber,omitempty"`
	Email        string `xml:"email" json:"email"`
	DirectoryURI string `xml:"directoryUri" json:"directoryUri,omitempty"`
	Department   string `xml:"department" json:"department,omitempty"`
	Title        string `xml:"title" json:"title,omitempty"`
}

// Users is a page of directory search results.
type Users struct {
	Start         int    `xml:"start,attr" json:"start"`
	ReturnedCount int    `xml:"returnedCount,attr" json:"returnedCount"`
	TotalCount    int    `xml:"totalCount,attr" json:"totalCount"`
	Users         []User `xml:"user" json:"users"`
}

// Device is a device associated with a user.
type Device struct {
	URI         string `xml:"uri,attr" json:"uri,omitempty"`
	ID          string `xml:"id" json:"id"`
	Name        string `xml:"name" json:"name"`
	Type        string `xml:"type" json:"type"`
	Model       string `xml:"model" json:"model"`
	Description string `xml:"description" json:"description"`
}

// Search describes a directory query. Exactly one field is normally set.
type Search struct {
	UserName string
	LastName string
	Name     string // matches first or last name
	Max      int
}

func (s Search) values() url.Values {
	q := url.Values{}
	if s.UserName != "" {
		q.Set("username", s.UserName)
	}
	if s.LastName != "" {
		q.Set("last", s.LastName)
	}
	if s.Name != "" {
		q.Set("name", s.Name)
	}
	if s.Max > 0 {
		q.Set("max", fmt.Sprint(s.Max))
	}
	return q
}

// Version returns the UDS (and therefore CUCM) version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v struct {
		Attr  string `xml:"version,attr"`
		Child string `xml:"version"`
	}
	if err := c.get(ctx, "/version", nil, &v); err != nil {
		return "", err
	}
	if v.Child != "" {
		return v.Child, nil
	}
	return v.Attr, nil
}

// SearchUsers queries the directory.
func (c *Client) SearchUsers(ctx context.Context, s Search) (Users, error) {
	var out Users
	if err := c.get(ctx, "/users", s.values(), &out); err != nil {
		return Users{}, err
	}
	if out.Users == nil {
		out.Users = []User{}
	}
	return out, nil
}

// GetUser returns one user by user id. UDS requires credentials here even
// when directory search is anonymous.
func (c *Client) GetUser(ctx context.Context, userID string) (User, error) {
	var out User
	if err := c.get(ctx, "/user/"+url.PathEscape(userID), nil, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

// UserDevices lists the devices associated with a user.
func (c *Client) UserDevices(ctx context.Context, userID string) ([]Device, error) {
	var out struct {
		Devices []Device `xml:"device"`
	}
	if err := c.get(ctx, "/user/"+url.PathEscape(userID)+"/devices", nil, &out); err != nil {
		return nil, err
	}
	if out.Devices == nil {
		return []Device{}, nil
	}
	return out.Devices, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uds %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := transport.ReadBody(resp.Body)
	if err != nil {
		return err
	}
	c.logger.Debug("uds request", "path", path, "status", resp.StatusCode)

	if !transport.OK(resp.StatusCode) {
		return fmt.Errorf("uds %s: %w", path, envelope.ParseError(envelope.UDS, resp.StatusCode, body))
	}
	if err := xml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("uds %s: decoding response: %w", path, err)
	}
	return nil
}
