// Package cms wraps the Cisco Meeting Server REST API. CMS answers in XML and
// takes form-encoded writes.
package cms

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/transport"
)

const defaultPort = 445

// Config holds CMS connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	BaseURL  string // overrides https://<Host>:<Port>/api/v1 when set
}

// Client calls CMS API endpoints.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a CMS client.
func New(cfg Config, httpClient *http.Client) *Client {
	base := cfg.BaseURL
	if base == "" {
		port := cfg.Port
		if port == 0 {
			port = defaultPort
		}
		base = fmt.Sprintf("https://%s:%d/api/v1", cfg.Host, port)
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

// CoSpace is a CMS meeting space.
type CoSpace struct {
	ID            string `xml:"id,attr" json:"id"`
	Name          string `xml:"name" json:"name"`
	URI           string `xml:"uri" json:"uri,omitempty"`
	SecondaryURI  string `xml:"secondaryUri" json:"secondaryUri,omitempty"`
	CallID        string `xml:"callId" json:"callId,omitempty"`
	Passcode      string `xml:"passcode" json:"passcode,omitempty"`
	OwnerJID      string `xml:"ownerJid" json:"ownerJid,omitempty"`
	AutoGenerated bool   `xml:"autoGenerated" json:"autoGenerated"`
}

// CoSpaceList is one page of coSpaces; Total is the server-side count.
type CoSpaceList struct {
	Total    envelope.Total `xml:"total,attr" json:"total"`
	CoSpaces []CoSpace      `xml:"coSpace" json:"coSpaces"`
}

// CoSpaceParams are the writable coSpace fields. Empty fields are not sent.
type CoSpaceParams struct {
	Name         string `json:"name"`
	URI          string `json:"uri,omitempty"`
	SecondaryURI string `json:"secondaryUri,omitempty"`
	CallID       string `json:"callId,omitempty"`
	Passcode     string `json:"passcode,omitempty"`
	OwnerJID     string `json:"ownerJid,omitempty"`
}

func (p CoSpaceParams) form() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("name", p.Name)
	set("uri", p.URI)
	set("secondaryUri", p.SecondaryURI)
	set("callId", p.CallID)
	set("passcode", p.Passcode)
	set("ownerJid", p.OwnerJID)
	return v
}

// Member is a coSpace user membership.
type Member struct {
	ID            string `xml:"id,attr" json:"id"`
	UserID        string `xml:"userId" json:"userId,omitempty"`
	UserJID       string `xml:"userJid" json:"userJid"`
	AutoGenerated bool   `xml:"autoGenerated" json:"autoGenerated"`
}

// Call is an active call on the server.
type Call struct {
	ID             string `xml:"id,attr" json:"id"`
	Name           string `xml:"name" json:"name"`
	CoSpace        string `xml:"coSpace" json:"coSpace,omitempty"`
	CallCorrelator string `xml:"callCorrelator" json:"callCorrelator,omitempty"`
}

// Status is the subset of /system/status the portal shows.
type Status struct {
	SoftwareVersion string `xml:"softwareVersion" json:"softwareVersion"`
	UptimeSeconds   int    `xml:"uptimeSeconds" json:"uptimeSeconds"`
	Activated       bool   `xml:"activated" json:"activated"`
	CallLegsActive  int    `xml:"callLegsActive" json:"callLegsActive"`
	CallLegsMax     int    `xml:"callLegsMaxActive" json:"callLegsMaxActive"`
}

// ListOptions filter and page list calls.
type ListOptions struct {
	Filter string
	Limit  int
	Offset int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Filter != "" {
		v.Set("filter", o.Filter)
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		v.Set("offset", strconv.Itoa(o.Offset))
	}
	return v
}

// ListCoSpaces returns one page of coSpaces.
func (c *Client) ListCoSpaces(ctx context.Context, opts ListOptions) (CoSpaceList, error) {
	var out CoSpaceList
	if err := c.getXML(ctx, "/coSpaces", opts.values(), &out); err != nil {
		return CoSpaceList{}, err
	}
	if out.CoSpaces == nil {
		out.CoSpaces = []CoSpace{}
	}
	return out, nil
}

// AllCoSpaces pages through every coSpace matching filter. CMS may return
// fewer rows than requested, so the offset advances by what came back.
func (c *Client) AllCoSpaces(ctx context.Context, filter string) ([]CoSpace, error) {
	const pageSize = 20
	all := []CoSpace{}
	offset := 0
	for {
		page, err := c.ListCoSpaces(ctx, ListOptions{Filter: filter, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page.CoSpaces...)
		offset += len(page.CoSpaces)
		if len(page.CoSpaces) == 0 || offset >= int(page.Total) {
			return all, nil
		}
	}
}

// GetCoSpace returns one coSpace.
func (c *Client) GetCoSpace(ctx context.Context, id string) (CoSpace, error) {
	var out CoSpace
	if err := c.getXML(ctx, "/coSpaces/"+url.PathEscape(id), nil, &out); err != nil {
		return CoSpace{}, err
	}
	return out, nil
}

// CreateCoSpace creates a coSpace and returns its id, taken from the
// Location header.
func (c *Client) CreateCoSpace(ctx context.Context, p CoSpaceParams) (string, error) {
	if p.Name == "" {
		return "", envelope.Invalid("cms create coSpace: name is required")
	}
	resp, err := c.send(ctx, http.MethodPost, "/coSpaces", p.form())
	if err != nil {
		return "", err
	}
	return idFromLocation(resp, "create coSpace")
}

// UpdateCoSpace modifies the non-empty fields of p.
func (c *Client) UpdateCoSpace(ctx context.Context, id string, p CoSpaceParams) error {
	_, err := c.send(ctx, http.MethodPut, "/coSpaces/"+url.PathEscape(id), p.form())
	return err
}

// DeleteCoSpace removes a coSpace.
func (c *Client) DeleteCoSpace(ctx context.Context, id string) error {
	_, err := c.send(ctx, http.MethodDelete, "/coSpaces/"+url.PathEscape(id), nil)
	return err
}

// ListCoSpaceMembers returns the users of a coSpace.
func (c *Client) ListCoSpaceMembers(ctx context.Context, id string) ([]Member, error) {
	var out struct {
		Total   envelope.Total `xml:"total,attr"`
		Members []Member       `xml:"coSpaceUser"`
	}
	if err := c.getXML(ctx, "/coSpaces/"+url.PathEscape(id)+"/coSpaceUsers", nil, &out); err != nil {
		return nil, err
	}
	if out.Members == nil {
		return []Member{}, nil
	}
	return out.Members, nil
}

// AddCoSpaceMember adds a user, by JID, to a coSpace and returns the
// membership id.
func (c *Client) AddCoSpaceMember(ctx context.Context, id, userJID string) (string, error) {
	if userJID == "" {
		return "", envelope.Invalid("cms add member: user JID is required")
	}
	resp, err := c.send(ctx, http.MethodPost, "/coSpaces/"+url.PathEscape(id)+"/coSpaceUsers", url.Values{"userJid": {userJID}})
	if err != nil {
		return "", err
	}
	return idFromLocation(resp, "add member")
}

// ListCalls returns the active calls.
func (c *Client) ListCalls(ctx context.Context, opts ListOptions) ([]Call, error) {
	var out struct {
		Total envelope.Total `xml:"total,attr"`
		Calls []Call         `xml:"call"`
	}
	if err := c.getXML(ctx, "/calls", opts.values(), &out); err != nil {
		return nil, err
	}
	if out.Calls == nil {
		return []Call{}, nil
	}
	return out.Calls, nil
}

// SystemStatus returns /system/status.
func (c *Client) SystemStatus(ctx context.Context) (Status, error) {
	var out Status
	if err := c.getXML(ctx, "/system/status", nil, &out); err != nil {
		return Status{}, err
	}
	return out, nil
}

func idFromLocation(resp *http.Response, op string) (string, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("cms %s: no Location header in response", op)
	}
	return path.Base(loc), nil
}

func (c *Client) getXML(ctx context.Context, p string, q url.Values, v any) error {
	u := c.baseURL + p
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	body, _, err := c.do(req, p)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("cms %s: decoding response: %w", p, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, p string, form url.Values) (*http.Response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	_, resp, err := c.do(req, p)
	return resp, err
}

func (c *Client) do(req *http.Request, p string) ([]byte, *http.Response, error) {
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("cms %s %s: %w", req.Method, p, err)
	}
	defer resp.Body.Close()

	body, err := transport.ReadBody(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	c.logger.Debug("cms request", "method", req.Method, "path", p, "status", resp.StatusCode)

	if !transport.OK(resp.StatusCode) {
		return nil, nil, fmt.Errorf("cms %s %s: %w", req.Method, p, envelope.ParseError(envelope.CMS, resp.StatusCode, body))
	}
	return body, resp, nil
}
