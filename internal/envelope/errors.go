package envelope

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Vendor names used in errors and logs.
const (
	AXL     = "axl"
	UDS     = "uds"
	CUPI    = "cupi"
	CMS     = "cms"
	Webex   = "webex"
	RIS     = "risport"
	PerfMon = "perfmon"
)

// VendorError is a failure reported by a vendor API, with the vendor's own
// code and message preserved verbatim.
type VendorError struct {
	Vendor     string `json:"vendor"`
	Status     int    `json:"status,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	TrackingID string `json:"trackingId,omitempty"`
}

func (e *VendorError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s error %s: %s", e.Vendor, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("%s error %s", e.Vendor, e.Code)
	case e.Message != "":
		return fmt.Sprintf("%s error: %s", e.Vendor, e.Message)
	default:
		return fmt.Sprintf("%s error: HTTP %d", e.Vendor, e.Status)
	}
}

// Fault is the SOAP 1.1 fault element as returned by AXL and the
// serviceability APIs.
type Fault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail struct {
		AXL struct {
			Code    string `xml:"axlcode"`
			Message string `xml:"axlmessage"`
			Request string `xml:"request"`
		} `xml:"axlError"`
	} `xml:"detail"`
}

// Err converts the fault into a VendorError. The AXL detail code wins over
// the generic faultcode when present.
func (f *Fault) Err(vendor string, status int) *VendorError {
	e := &VendorError{Vendor: vendor, Status: status, Code: f.Code, Message: f.String}
	if f.Detail.AXL.Code != "" {
		e.Code = f.Detail.AXL.Code
	}
	if f.Detail.AXL.Message != "" {
		e.Message = f.Detail.AXL.Message
	}
	return e
}

// ParseError builds a VendorError from a non-success HTTP response body,
// using the error format of the given vendor. Unrecognized bodies fall back
// to the trimmed body text or the HTTP status line.
func ParseError(vendor string, status int, body []byte) *VendorError {
	body = bytes.TrimSpace(body)
	var e *VendorError
	switch vendor {
	case AXL, RIS, PerfMon:
		e = parseSOAPError(vendor, status, body)
	case CUPI:
		e = parseCUPIError(status, body)
	case CMS:
		e = parseCMSError(status, body)
	case UDS:
		e = parseUDSError(status, body)
	case Webex:
		e = parseWebexError(status, body)
	}
	if e == nil {
		e = &VendorError{Vendor: vendor, Status: status}
	}
	if e.Message == "" && e.Code == "" {
		e.Message = fallbackMessage(status, body)
	}
	return e
}

func fallbackMessage(status int, body []byte) string {
	const max = 512
	s := string(body)
	if s == "" {
		return http.StatusText(status)
	}
	if len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

func parseSOAPError(vendor string, status int, body []byte) *VendorError {
	var env struct {
		Body struct {
			Fault *Fault `xml:"Fault"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(body, &env); err != nil || env.Body.Fault == nil {
		return nil
	}
	return env.Body.Fault.Err(vendor, status)
}

func parseCUPIError(status int, body []byte) *VendorError {
	e := &VendorError{Vendor: CUPI, Status: status}
	if len(body) == 0 {
		return e
	}
	if body[0] == '<' {
		var x struct {
			Errors struct {
				Code    string `xml:"code"`
				Message string `xml:"message"`
			} `xml:"errors"`
		}
		if xml.Unmarshal(body, &x) == nil {
			e.Code, e.Message = x.Errors.Code, x.Errors.Message
		}
		return e
	}
	var j struct {
		Errors struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &j) == nil {
		e.Code, e.Message = j.Errors.Code, j.Errors.Message
	}
	return e
}

// parseCMSError reads <failureDetails>. CMS names the failure by the child
// element, e.g. <duplicateCoSpaceUri/> or <parameterError parameter="x" error="y"/>.
// The first child in document order wins.
func parseCMSError(status int, body []byte) *VendorError {
	e := &VendorError{Vendor: CMS, Status: status}
	var x struct {
		XMLName  xml.Name `xml:"failureDetails"`
		Failures []struct {
			XMLName   xml.Name
			Parameter string `xml:"parameter,attr"`
			Error     string `xml:"error,attr"`
		} `xml:",any"`
	}
	if err := xml.Unmarshal(body, &x); err != nil || len(x.Failures) == 0 {
		return e
	}
	f := x.Failures[0]
	e.Code = f.XMLName.Local
	var parts []string
	if f.Parameter != "" {
		parts = append(parts, "parameter "+f.Parameter)
	}
	if f.Error != "" {
		parts = append(parts, f.Error)
	}
	e.Message = strings.Join(parts, ": ")
	return e
}

func parseUDSError(status int, body []byte) *VendorError {
	e := &VendorError{Vendor: UDS, Status: status}
	doc, err := DecodeXML(bytes.NewReader(body))
	if err != nil {
		return e
	}
	for _, root := range doc {
		e.Code = firstText(root, "code", "errorCode", "statusCode")
		e.Message = firstText(root, "message", "errorMessage", "description")
		if e.Message == "" {
			e.Message = Text(root)
		}
	}
	return e
}

func firstText(v any, keys ...string) string {
	for _, k := range keys {
		if s := Text(Path(v, k)); s != "" {
			return s
		}
	}
	return ""
}

func parseWebexError(status int, body []byte) *VendorError {
	e := &VendorError{Vendor: Webex, Status: status}
	var j struct {
		Message string `json:"message"`
		Errors  []struct {
			Description string `json:"description"`
		} `json:"errors"`
		TrackingID string `json:"trackingId"`
	}
	if json.Unmarshal(body, &j) != nil {
		return e
	}
	e.Message = j.Message
	if e.Message == "" && len(j.Errors) > 0 {
		e.Message = j.Errors[0].Description
	}
	e.TrackingID = j.TrackingID
	return e
}
