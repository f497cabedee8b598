package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/ucportal/internal/axl"
	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/storage"
	"github.com/kalambet/ucportal/internal/webex"
	"github.com/kalambet/ucportal/internal/workflow"
)

const testToken = "test-token-12345"

func setupHandler(t *testing.T, vendors Vendors) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(Deps{
		Store:     store,
		Vendors:   vendors,
		Token:     testToken,
		UploadDir: t.TempDir(),
	})
	return handler, store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// decodeResult reads an envelope and unmarshals its response into v when v
// is not nil.
func decodeResult(t *testing.T, rr *httptest.ResponseRecorder, v any) envelope.Result {
	t.Helper()
	var raw struct {
		Success  bool            `json:"success"`
		Message  string          `json:"message"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if v != nil && len(raw.Response) > 0 {
		if err := json.Unmarshal(raw.Response, v); err != nil {
			t.Fatalf("decoding response %s: %v", raw.Response, err)
		}
	}
	return envelope.Result{Success: raw.Success, Message: raw.Message, Response: v}
}

func fakeWebex(t *testing.T, h http.HandlerFunc) *webex.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return webex.NewClient("webex-token", srv.URL, srv.Client())
}

const soapWrap = `<?xml version="1.0" encoding="UTF-8"?><soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body>%s</soapenv:Body></soapenv:Envelope>`

func fakeAXL(t *testing.T, responses map[string]string) *axl.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := strings.Trim(r.Header.Get("SOAPAction"), `"`)
		op := action[strings.LastIndex(action, " ")+1:]
		resp, ok := responses[op]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, soapWrap, `<soapenv:Fault><faultcode>soapenv:Client</faultcode><faultstring>unknown op</faultstring></soapenv:Fault>`)
			return
		}
		fmt.Fprintf(w, soapWrap, resp)
	}))
	t.Cleanup(srv.Close)
	return axl.New(axl.Config{Endpoint: srv.URL + "/axl/", Username: "admin", Password: "pw"}, srv.Client())
}

func TestHealth(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	for _, token := range []string{"", "wrong-token"} {
		rr := serve(h, authReq(http.MethodGet, "/api/status", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want %d", token, rr.Code, http.StatusUnauthorized)
		}
		res := decodeResult(t, rr, nil)
		if res.Success {
			t.Errorf("token %q: success = true", token)
		}
	}
}

func TestBearerAuth_EmptyTokenRejectsEverything(t *testing.T) {
	h := BearerAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	if rr := serve(h, req); rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestVendorRoutes_NotConfigured(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	tests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/axl/version", ""},
		{http.MethodGet, "/api/uds/users?name=smith", ""},
		{http.MethodGet, "/api/cupi/users", ""},
		{http.MethodGet, "/api/cms/cospaces", ""},
		{http.MethodPost, "/api/cms/spaces/sync", ""},
		{http.MethodGet, "/api/webex/me", ""},
		{http.MethodGet, "/api/ris/devices?name=SEP*", ""},
		{http.MethodGet, "/api/perfmon/cucm1/counters", ""},
		{http.MethodPost, "/api/workflows/voicemail", `{"userid":"jdoe"}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := serve(h, authReq(tt.method, tt.path, tt.body, testToken))
			if rr.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusServiceUnavailable, rr.Body.String())
			}
			res := decodeResult(t, rr, nil)
			if !strings.Contains(res.Message, "not configured") {
				t.Errorf("message = %q, want it to mention not configured", res.Message)
			}
		})
	}
}

func TestSpaces_ReadableWithoutCMS(t *testing.T) {
	h, store := setupHandler(t, Vendors{})
	if err := store.UpsertCMSSpace(storage.CMSSpace{ID: "sp1", Name: "Lab Room", URI: "lab.room"}); err != nil {
		t.Fatalf("UpsertCMSSpace: %v", err)
	}

	rr := serve(h, authReq(http.MethodGet, "/api/cms/spaces", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var spaces []storage.CMSSpace
	decodeResult(t, rr, &spaces)
	if len(spaces) != 1 || spaces[0].Name != "Lab Room" {
		t.Errorf("spaces = %+v", spaces)
	}

	rr = serve(h, authReq(http.MethodDelete, "/api/cms/spaces/sp1", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = serve(h, authReq(http.MethodGet, "/api/cms/spaces/sp1", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestStatus_NoVendors(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	rr := serve(h, authReq(http.MethodGet, "/api/status", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var checks []map[string]any
	res := decodeResult(t, rr, &checks)
	if !res.Success {
		t.Error("success = false")
	}
	if len(checks) != 0 {
		t.Errorf("checks = %v, want none", checks)
	}
}

func TestStatus_ReportsUnreachableVendor(t *testing.T) {
	wx := fakeWebex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"The request requires a valid access token set in the Authorization request header."}`)
	})
	h, _ := setupHandler(t, Vendors{Webex: wx})

	rr := serve(h, authReq(http.MethodGet, "/api/status", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var checks []struct {
		Vendor    string `json:"vendor"`
		Reachable bool   `json:"reachable"`
		Error     string `json:"error"`
	}
	decodeResult(t, rr, &checks)
	if len(checks) != 1 {
		t.Fatalf("checks = %+v, want 1", checks)
	}
	if checks[0].Vendor != "webex" || checks[0].Reachable {
		t.Errorf("check = %+v, want unreachable webex", checks[0])
	}
	if checks[0].Error == "" {
		t.Error("check error is empty")
	}
}

func TestWebex_Me(t *testing.T) {
	wx := fakeWebex(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer webex-token" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, `{"id":"p1","emails":["admin@example.com"],"displayName":"Lab Admin"}`)
	})
	h, _ := setupHandler(t, Vendors{Webex: wx})

	rr := serve(h, authReq(http.MethodGet, "/api/webex/me", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var p webex.Person
	res := decodeResult(t, rr, &p)
	if !res.Success || res.Message != "OK" {
		t.Errorf("result = %+v", res)
	}
	if p.DisplayName != "Lab Admin" {
		t.Errorf("DisplayName = %q, want %q", p.DisplayName, "Lab Admin")
	}
}

func TestWebex_VendorErrorIsBadGateway(t *testing.T) {
	wx := fakeWebex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Meeting not found","trackingId":"T1"}`)
	})
	h, _ := setupHandler(t, Vendors{Webex: wx})

	rr := serve(h, authReq(http.MethodGet, "/api/webex/meetings/m1", "", testToken))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadGateway)
	}
	res := decodeResult(t, rr, nil)
	if res.Success {
		t.Error("success = true")
	}
	if !strings.Contains(res.Message, "Meeting not found") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestWebex_SendMessageValidation(t *testing.T) {
	wx := fakeWebex(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	h, _ := setupHandler(t, Vendors{Webex: wx})

	rr := serve(h, authReq(http.MethodPost, "/api/webex/messages", `{"text":"hello"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestAXL_GetPhone(t *testing.T) {
	c := fakeAXL(t, map[string]string{
		"getPhone": `<ns:getPhoneResponse xmlns:ns="http://www.cisco.com/AXL/API/14.0"><return><phone uuid="{AAA}"><name>SEP001122334455</name><description>Lobby phone</description></phone></return></ns:getPhoneResponse>`,
	})
	h, _ := setupHandler(t, Vendors{AXL: c})

	rr := serve(h, authReq(http.MethodGet, "/api/axl/phones/SEP001122334455", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var p axl.Phone
	decodeResult(t, rr, &p)
	if p.Name != "SEP001122334455" || p.Description != "Lobby phone" {
		t.Errorf("phone = %+v", p)
	}
}

func TestAXL_SQLRequiresQuery(t *testing.T) {
	c := fakeAXL(t, nil)
	h, _ := setupHandler(t, Vendors{AXL: c})

	rr := serve(h, authReq(http.MethodPost, "/api/axl/sql", `{"query":"  "}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAXL_FaultIsBadGateway(t *testing.T) {
	c := fakeAXL(t, nil)
	h, _ := setupHandler(t, Vendors{AXL: c})

	rr := serve(h, authReq(http.MethodGet, "/api/axl/version", "", testToken))
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, http.StatusBadGateway, rr.Body.String())
	}
}

func TestInvalidBody(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	rr := serve(h, authReq(http.MethodPost, "/api/locations", `{not json`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	res := decodeResult(t, rr, nil)
	if !strings.HasPrefix(res.Message, "invalid request body") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestWrap_RecoversPanics(t *testing.T) {
	h := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), Deps{})

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestWrap_CORS(t *testing.T) {
	h := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), Deps{CORSOrigins: []string{"https://portal.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rr := serve(h, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestWrap_AccessLog(t *testing.T) {
	var log strings.Builder
	h := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), Deps{AccessLog: &log})

	serve(h, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if !strings.Contains(log.String(), `"GET /api/status HTTP/1.1" 418`) {
		t.Errorf("access log = %q", log.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("cms is %w", ErrNotConfigured), http.StatusServiceUnavailable},
		{storage.ErrNotFound, http.StatusNotFound},
		{badRequest("x"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", storage.ErrInvalid), http.StatusBadRequest},
		{envelope.Invalid("email is required"), http.StatusBadRequest},
		{&workflow.StepError{Step: workflow.StepLine, Err: envelope.Invalid("no voicemail profile configured")}, http.StatusBadRequest},
		{fmt.Errorf("%w: call flow %q already exists", storage.ErrConflict, "a"), http.StatusConflict},
		{&envelope.VendorError{Vendor: envelope.Webex, Status: 404}, http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
