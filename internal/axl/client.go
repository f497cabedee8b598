// Package axl wraps the CUCM Administrative XML (AXL) SOAP API.
package axl

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/soap"
)

const defaultVersion = "14.0"

// Config holds AXL connection settings.
type Config struct {
	Host     string
	Username string
	Password string
	Version  string // AXL schema version, e.g. "14.0"
	Endpoint string // overrides https://<Host>:8443/axl/ when set
}

// Client calls AXL operations on one CUCM publisher.
type Client struct {
	soap    *soap.Client
	version string
}

// New creates an AXL client.
func New(cfg Config, httpClient *http.Client) *Client {
	version := cfg.Version
	if version == "" {
		version = defaultVersion
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s:8443/axl/", cfg.Host)
	}
	return &Client{
		soap: soap.New(soap.Config{
			Vendor:    envelope.AXL,
			Endpoint:  endpoint,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Namespace: "http://www.cisco.com/AXL/API/" + version,
		}, httpClient),
		version: version,
	}
}

func (c *Client) call(ctx context.Context, op string, req, resp any) error {
	action := fmt.Sprintf(`"CUCM:DB ver=%s %s"`, c.version, op)
	if err := c.soap.Call(ctx, action, req, resp); err != nil {
		return fmt.Errorf("axl %s: %w", op, err)
	}
	return nil
}

// GetCCMVersion returns the active CUCM version string.
func (c *Client) GetCCMVersion(ctx context.Context) (string, error) {
	var resp getCCMVersionResp
	if err := c.call(ctx, "getCCMVersion", &getCCMVersionReq{}, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// GetPhone returns one phone by device name.
func (c *Client) GetPhone(ctx context.Context, name string) (Phone, error) {
	var resp getPhoneResp
	if err := c.call(ctx, "getPhone", &getPhoneReq{Name: name}, &resp); err != nil {
		return Phone{}, err
	}
	if resp.Phone.Lines == nil {
		resp.Phone.Lines = []PhoneLine{}
	}
	return resp.Phone, nil
}

// ListPhones returns phones whose name matches pattern. AXL uses SQL LIKE
// wildcards, so "%" lists every phone.
func (c *Client) ListPhones(ctx context.Context, pattern string) ([]Phone, error) {
	if pattern == "" {
		pattern = "%"
	}
	req := &listPhoneReq{}
	req.SearchCriteria.Name = pattern

	var resp listPhoneResp
	if err := c.call(ctx, "listPhone", req, &resp); err != nil {
		return nil, err
	}
	phones := resp.Phones
	if phones == nil {
		phones = []Phone{}
	}
	for i := range phones {
		if phones[i].Lines == nil {
			phones[i].Lines = []PhoneLine{}
		}
	}
	return phones, nil
}

// AddPhone creates a phone and returns its UUID.
func (c *Client) AddPhone(ctx context.Context, p NewPhone) (string, error) {
	if p.Name == "" || p.Product == "" {
		return "", envelope.Invalid("axl addPhone: name and product are required")
	}
	req := &addPhoneReq{}
	ph := &req.Phone
	ph.Name = p.Name
	ph.Description = p.Description
	ph.Product = p.Product
	ph.Class = "Phone"
	ph.Protocol = p.Protocol
	if ph.Protocol == "" {
		ph.Protocol = "SIP"
	}
	ph.ProtocolSide = "User"
	ph.DevicePoolName = p.DevicePoolName
	if ph.DevicePoolName == "" {
		ph.DevicePoolName = "Default"
	}
	ph.CommonPhoneConfigName = "Standard Common Phone Profile"
	ph.LocationName = "Hub_None"
	ph.UseTrustedRelayPoint = "Default"
	ph.BuiltInBridgeStatus = "Default"
	ph.PacketCaptureMode = "None"
	ph.CertificateOperation = "No Pending Operation"
	ph.DeviceMobilityMode = "Default"
	if p.Line != nil {
		ph.Lines = []xLine{{Index: 1, Dirn: *p.Line}}
	}

	var resp uuidResp
	if err := c.call(ctx, "addPhone", req, &resp); err != nil {
		return "", err
	}
	return resp.UUID, nil
}

// UpdatePhone changes the description and/or device pool of a phone.
func (c *Client) UpdatePhone(ctx context.Context, name string, u PhoneUpdate) (string, error) {
	req := &updatePhoneReq{Name: name, Description: u.Description, DevicePoolName: u.DevicePoolName}
	var resp uuidResp
	if err := c.call(ctx, "updatePhone", req, &resp); err != nil {
		return "", err
	}
	return resp.UUID, nil
}

// RemovePhone deletes a phone by name.
func (c *Client) RemovePhone(ctx context.Context, name string) error {
	return c.call(ctx, "removePhone", &removePhoneReq{Name: name}, nil)
}

// DoDeviceReset resets a device, or restarts it when restart is true.
func (c *Client) DoDeviceReset(ctx context.Context, name string, restart bool) error {
	typ := "Reset"
	if restart {
		typ = "Restart"
	}
	return c.call(ctx, "doDeviceReset", &doDeviceResetReq{DeviceName: name, DeviceResetType: typ}, nil)
}

// GetLine returns a directory number by pattern and partition.
func (c *Client) GetLine(ctx context.Context, pattern, partition string) (Line, error) {
	var resp getLineResp
	if err := c.call(ctx, "getLine", &getLineReq{Pattern: pattern, RoutePartitionName: partition}, &resp); err != nil {
		return Line{}, err
	}
	return resp.Line, nil
}

// AddLine creates a directory number and returns its UUID.
func (c *Client) AddLine(ctx context.Context, l Line) (string, error) {
	req := &addLineReq{}
	req.Line.Pattern = l.Pattern
	req.Line.Description = l.Description
	req.Line.Usage = "Device"
	req.Line.RoutePartitionName = l.RoutePartitionName
	req.Line.AlertingName = l.AlertingName

	var resp uuidResp
	if err := c.call(ctx, "addLine", req, &resp); err != nil {
		return "", err
	}
	return resp.UUID, nil
}

// UpdateLine changes a directory number, e.g. assigning a voicemail profile.
func (c *Client) UpdateLine(ctx context.Context, pattern, partition string, u LineUpdate) (string, error) {
	req := &updateLineReq{
		Pattern:              pattern,
		RoutePartitionName:   partition,
		Description:          u.Description,
		AlertingName:         u.AlertingName,
		VoiceMailProfileName: u.VoiceMailProfileName,
	}
	var resp uuidResp
	if err := c.call(ctx, "updateLine", req, &resp); err != nil {
		return "", err
	}
	return resp.UUID, nil
}

// GetUser returns an end user by userid.
func (c *Client) GetUser(ctx context.Context, userID string) (User, error) {
	var resp getUserResp
	if err := c.call(ctx, "getUser", &getUserReq{UserID: userID}, &resp); err != nil {
		return User{}, err
	}
	if resp.User.AssociatedDevices == nil {
		resp.User.AssociatedDevices = []string{}
	}
	return resp.User, nil
}

// ListUsers returns end users whose last name matches pattern (SQL LIKE).
func (c *Client) ListUsers(ctx context.Context, lastName string) ([]User, error) {
	if lastName == "" {
		lastName = "%"
	}
	req := &listUserReq{}
	req.SearchCriteria.LastName = lastName

	var resp listUserResp
	if err := c.call(ctx, "listUser", req, &resp); err != nil {
		return nil, err
	}
	users := resp.Users
	if users == nil {
		users = []User{}
	}
	for i := range users {
		if users[i].AssociatedDevices == nil {
			users[i].AssociatedDevices = []string{}
		}
	}
	return users, nil
}

// UpdateUser changes an end user's telephone number and primary extension.
func (c *Client) UpdateUser(ctx context.Context, userID string, u UserUpdate) (string, error) {
	req := &updateUserReq{UserID: userID, TelephoneNumber: u.TelephoneNumber, PrimaryExtension: u.PrimaryExtension}
	var resp uuidResp
	if err := c.call(ctx, "updateUser", req, &resp); err != nil {
		return "", err
	}
	return resp.UUID, nil
}

// selectStatement matches the select keyword as a whole word, in any case.
var selectStatement = regexp.MustCompile(`(?i)^select\s`)

// ExecuteSQLQuery runs a read-only Informix query. Rows come back with
// column names as keys; a single result row is still a one-element list.
func (c *Client) ExecuteSQLQuery(ctx context.Context, query string) ([]map[string]string, error) {
	q := strings.TrimSpace(query)
	if !selectStatement.MatchString(q) {
		return nil, envelope.Invalid("axl executeSQLQuery: only select statements are allowed")
	}

	action := fmt.Sprintf(`"CUCM:DB ver=%s executeSQLQuery"`, c.version)
	doc, err := c.soap.CallMap(ctx, action, &executeSQLQueryReq{SQL: q})
	if err != nil {
		return nil, fmt.Errorf("axl executeSQLQuery: %w", err)
	}

	ret, _ := envelope.Path(doc, "executeSQLQueryResponse", "return").(map[string]any)
	raw := envelope.ListOf(ret, "row")
	rows := make([]map[string]string, 0, len(raw))
	for _, r := range raw {
		row := map[string]string{}
		if m, ok := r.(map[string]any); ok {
			for k, v := range m {
				row[k] = envelope.Text(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Columns returns the sorted column names of a query result.
func Columns(rows []map[string]string) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
