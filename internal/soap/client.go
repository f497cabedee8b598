// Package soap is a minimal SOAP 1.1 client for the CUCM administrative and
// serviceability APIs.
package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/transport"
)

const envNS = "http://schemas.xmlsoap.org/soap/envelope/"

// Config describes one SOAP endpoint.
type Config struct {
	Vendor    string // envelope vendor name, used for error parsing
	Endpoint  string // full URL, e.g. https://cucm:8443/axl/
	Username  string
	Password  string
	Namespace string // URI bound to the "ns" prefix in request bodies
}

// Client posts SOAP envelopes to a single endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client. Request body types should name their root element
// with the "ns:" prefix, e.g. `xml:"ns:getPhone"`.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(transport.Options{})
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     slog.Default(),
	}
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

type requestEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SoapEnv string   `xml:"xmlns:soapenv,attr"`
	NS      string   `xml:"xmlns:ns,attr,omitempty"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    struct {
		Content any
	} `xml:"soapenv:Body"`
}

type responseEnvelope struct {
	Body struct {
		Fault   *envelope.Fault `xml:"Fault"`
		Content []byte          `xml:",innerxml"`
	} `xml:"Body"`
}

// Call sends req under the given SOAPAction and decodes the first element of
// the response body into resp. A SOAP fault is returned as *envelope.VendorError.
func (c *Client) Call(ctx context.Context, action string, req, resp any) error {
	content, err := c.roundTrip(ctx, action, req)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	if err := xml.Unmarshal(content, resp); err != nil {
		return fmt.Errorf("decoding %s response: %w", action, err)
	}
	return nil
}

// CallMap is Call for responses without a fixed shape; the body element is
// returned as a generic map.
func (c *Client) CallMap(ctx context.Context, action string, req any) (map[string]any, error) {
	content, err := c.roundTrip(ctx, action, req)
	if err != nil {
		return nil, err
	}
	doc, err := envelope.DecodeXML(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", action, err)
	}
	return doc, nil
}

func (c *Client) roundTrip(ctx context.Context, action string, req any) ([]byte, error) {
	env := requestEnvelope{SoapEnv: envNS, NS: c.cfg.Namespace}
	env.Body.Content = req

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", action, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", action)
	httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.cfg.Vendor, action, err)
	}
	defer resp.Body.Close()

	body, err := transport.ReadBody(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("soap call", "vendor", c.cfg.Vendor, "action", action, "status", resp.StatusCode, "duration", time.Since(start))

	if !transport.OK(resp.StatusCode) {
		return nil, envelope.ParseError(c.cfg.Vendor, resp.StatusCode, body)
	}

	var out responseEnvelope
	if err := xml.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding soap envelope: %w", err)
	}
	if out.Body.Fault != nil {
		return nil, out.Body.Fault.Err(c.cfg.Vendor, resp.StatusCode)
	}
	return out.Body.Content, nil
}
