package soap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/ucportal/internal/envelope"
)

type getThing struct {
	XMLName xml.Name `xml:"ns:getThing"`
	Name    string   `xml:"name"`
}

type getThingResponse struct {
	Name        string `xml:"return>thing>name"`
	Description string `xml:"return>thing>description"`
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		Vendor:    envelope.AXL,
		Endpoint:  srv.URL + "/axl/",
		Username:  "admin",
		Password:  "secret",
		Namespace: "http://www.cisco.com/AXL/API/14.0",
	}, srv.Client())
}

func TestCall_Success(t *testing.T) {
	var gotAction, gotBody, gotUser, gotPass string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		gotUser, gotPass, _ = r.BasicAuth()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		fmt.Fprint(w, `<?xml version="1.0"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body>
<ns:getThingResponse xmlns:ns="http://www.cisco.com/AXL/API/14.0"><return><thing><name>T1</name><description>first</description></thing></return></ns:getThingResponse>
</soapenv:Body></soapenv:Envelope>`)
	})

	var resp getThingResponse
	err := c.Call(context.Background(), `"CUCM:DB ver=14.0 getThing"`, &getThing{Name: "T1"}, &resp)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	if gotAction != `"CUCM:DB ver=14.0 getThing"` {
		t.Errorf("SOAPAction = %q", gotAction)
	}
	if gotUser != "admin" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q, want admin/secret", gotUser, gotPass)
	}
	if !strings.Contains(gotBody, `<ns:getThing><name>T1</name></ns:getThing>`) {
		t.Errorf("request body missing payload: %s", gotBody)
	}
	if !strings.Contains(gotBody, `xmlns:ns="http://www.cisco.com/AXL/API/14.0"`) {
		t.Errorf("request body missing namespace: %s", gotBody)
	}
	if resp.Name != "T1" || resp.Description != "first" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCall_Fault(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body><soapenv:Fault>
<faultcode>soapenv:Server</faultcode><faultstring>not found</faultstring>
<detail><axlError><axlcode>5007</axlcode><axlmessage>Item not valid</axlmessage></axlError></detail>
</soapenv:Fault></soapenv:Body></soapenv:Envelope>`)
	})

	err := c.Call(context.Background(), "getThing", &getThing{}, &getThingResponse{})
	var ve *envelope.VendorError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *envelope.VendorError", err)
	}
	if ve.Code != "5007" {
		t.Errorf("Code = %q, want 5007", ve.Code)
	}
	if ve.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", ve.Status)
	}
}

func TestCall_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := c.Call(context.Background(), "getThing", &getThing{}, nil)
	var ve *envelope.VendorError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *envelope.VendorError", err)
	}
	if ve.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", ve.Status)
	}
	if ve.Message != "Unauthorized" {
		t.Errorf("Message = %q, want Unauthorized", ve.Message)
	}
}

func TestCallMap(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<Envelope><Body><resp><return><row><a>1</a></row><row><a>2</a></row></return></resp></Body></Envelope>`)
	})

	doc, err := c.CallMap(context.Background(), "x", &getThing{})
	if err != nil {
		t.Fatalf("CallMap: %v", err)
	}
	ret, _ := envelope.Path(doc, "resp", "return").(map[string]any)
	rows := envelope.ListOf(ret, "row")
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
}

func TestCall_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Call(ctx, "x", &getThing{}, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
