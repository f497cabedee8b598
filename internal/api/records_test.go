package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/kalambet/ucportal/internal/flows"
	"github.com/kalambet/ucportal/internal/ingest"
	"github.com/kalambet/ucportal/internal/storage"
)

func TestCallFlows_CRUD(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	body := `{"name":"internal-to-pstn","callingNumber":"1001","calledNumber":"915551234567","steps":["dial","verify clid"]}`
	rr := serve(h, authReq(http.MethodPost, "/api/call-flows", body, testToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var created storage.CallFlow
	decodeResult(t, rr, &created)
	if created.ID == "" {
		t.Fatal("created flow has no id")
	}

	rr = serve(h, authReq(http.MethodGet, "/api/call-flows/"+created.ID, "", testToken))
	var got storage.CallFlow
	decodeResult(t, rr, &got)
	if got.Name != "internal-to-pstn" || len(got.Steps) != 2 {
		t.Errorf("flow = %+v", got)
	}

	rr = serve(h, authReq(http.MethodPut, "/api/call-flows/"+created.ID, `{"name":"internal-to-pstn","expectedResult":"answered"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d; body = %s", rr.Code, rr.Body.String())
	}
	decodeResult(t, rr, &got)
	if got.ExpectedResult != "answered" {
		t.Errorf("ExpectedResult = %q, want %q", got.ExpectedResult, "answered")
	}

	rr = serve(h, authReq(http.MethodGet, "/api/call-flows", "", testToken))
	var list []storage.CallFlow
	decodeResult(t, rr, &list)
	if len(list) != 1 {
		t.Errorf("len(list) = %d, want 1", len(list))
	}

	rr = serve(h, authReq(http.MethodDelete, "/api/call-flows/"+created.ID, "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = serve(h, authReq(http.MethodDelete, "/api/call-flows/"+created.ID, "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCallFlows_NameRequired(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	rr := serve(h, authReq(http.MethodPost, "/api/call-flows", `{"description":"no name"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCallFlows_DuplicateName(t *testing.T) {
	h, store := setupHandler(t, Vendors{})
	if _, err := store.CreateCallFlow(storage.CallFlow{Name: "hunt-group"}); err != nil {
		t.Fatalf("CreateCallFlow: %v", err)
	}
	other, err := store.CreateCallFlow(storage.CallFlow{Name: "pickup"})
	if err != nil {
		t.Fatalf("CreateCallFlow: %v", err)
	}

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"create", authReq(http.MethodPost, "/api/call-flows", `{"name":"hunt-group"}`, testToken)},
		{"rename", authReq(http.MethodPut, "/api/call-flows/"+other.ID, `{"name":"hunt-group"}`, testToken)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, tt.req)
			if rr.Code != http.StatusConflict {
				t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusConflict, rr.Body.String())
			}
			res := decodeResult(t, rr, nil)
			if res.Success {
				t.Error("success = true, want false")
			}
			if !strings.Contains(res.Message, `"hunt-group" already exists`) {
				t.Errorf("message = %q", res.Message)
			}
			if strings.Contains(res.Message, "constraint") || strings.Contains(res.Message, "2067") {
				t.Errorf("message leaks driver text: %q", res.Message)
			}
		})
	}

	got, _ := store.GetCallFlow(other.ID)
	if got.Name != "pickup" {
		t.Errorf("Name = %q after failed rename, want pickup", got.Name)
	}
}

func TestCallFlows_Import(t *testing.T) {
	h, store := setupHandler(t, Vendors{})
	if _, err := store.CreateCallFlow(storage.CallFlow{Name: "a"}); err != nil {
		t.Fatalf("CreateCallFlow: %v", err)
	}

	yaml := "- name: a\n  expect: ringback\n- name: b\n  calling: \"1001\"\n"
	rr := serve(h, authReq(http.MethodPost, "/api/call-flows/import", yaml, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var sum flows.Summary
	decodeResult(t, rr, &sum)
	if len(sum.Created) != 1 || sum.Created[0] != "b" {
		t.Errorf("Created = %v, want [b]", sum.Created)
	}
	if len(sum.Updated) != 1 || sum.Updated[0] != "a" {
		t.Errorf("Updated = %v, want [a]", sum.Updated)
	}

	a, err := store.GetCallFlowByName("a")
	if err != nil {
		t.Fatalf("GetCallFlowByName: %v", err)
	}
	if a.ExpectedResult != "ringback" {
		t.Errorf("ExpectedResult = %q, want %q", a.ExpectedResult, "ringback")
	}
}

func TestCallFlows_ImportInvalidWritesNothing(t *testing.T) {
	h, store := setupHandler(t, Vendors{})

	yaml := "- name: a\n- name: a\n"
	rr := serve(h, authReq(http.MethodPost, "/api/call-flows/import", yaml, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	res := decodeResult(t, rr, nil)
	if !strings.Contains(res.Message, "defined twice") {
		t.Errorf("message = %q", res.Message)
	}
	list, _ := store.ListCallFlows(0)
	if len(list) != 0 {
		t.Errorf("flows written: %+v", list)
	}
}

func TestResults_Lifecycle(t *testing.T) {
	h, store := setupHandler(t, Vendors{})
	flow, err := store.CreateCallFlow(storage.CallFlow{Name: "hunt-group"})
	if err != nil {
		t.Fatalf("CreateCallFlow: %v", err)
	}

	rr := serve(h, authReq(http.MethodPost, "/api/results", `{"callFlowId":"`+flow.ID+`","outcome":"fail","notes":"no ringback"}`, testToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var res storage.Result
	decodeResult(t, rr, &res)

	rr = serve(h, authReq(http.MethodPatch, "/api/results/"+res.ID, `{"outcome":"pass","notes":"fixed CSS"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d; body = %s", rr.Code, rr.Body.String())
	}
	decodeResult(t, rr, &res)
	if res.Outcome != storage.OutcomePass || res.Notes != "fixed CSS" {
		t.Errorf("result = %+v", res)
	}

	rr = serve(h, authReq(http.MethodGet, "/api/results?callFlowId="+flow.ID, "", testToken))
	var list []storage.Result
	decodeResult(t, rr, &list)
	if len(list) != 1 {
		t.Errorf("len(list) = %d, want 1", len(list))
	}

	rr = serve(h, authReq(http.MethodGet, "/api/results?callFlowId=other", "", testToken))
	decodeResult(t, rr, &list)
	if len(list) != 0 {
		t.Errorf("len(list) for other flow = %d, want 0", len(list))
	}
}

func TestResults_Validation(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	tests := []struct {
		name, body string
	}{
		{"missing flow", `{"outcome":"pass"}`},
		{"bad outcome", `{"callFlowId":"f1","outcome":"maybe"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, authReq(http.MethodPost, "/api/results", tt.body, testToken))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}

	rr := serve(h, authReq(http.MethodPatch, "/api/results/missing", `{"outcome":"pass"}`, testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("patch missing status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestLocations_CRUD(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	rr := serve(h, authReq(http.MethodPost, "/api/locations", `{"name":"Lab West","siteCode":"LW","timezone":"America/Los_Angeles"}`, testToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var loc storage.Location
	decodeResult(t, rr, &loc)

	rr = serve(h, authReq(http.MethodPut, "/api/locations/"+loc.ID, `{"name":"Lab West","timezone":"Mars/Olympus"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad timezone status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = serve(h, authReq(http.MethodPut, "/api/locations/"+loc.ID, `{"name":"Lab West 2","devicePool":"DP_West"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d; body = %s", rr.Code, rr.Body.String())
	}
	decodeResult(t, rr, &loc)
	if loc.Name != "Lab West 2" || loc.DevicePool != "DP_West" {
		t.Errorf("location = %+v", loc)
	}

	rr = serve(h, authReq(http.MethodDelete, "/api/locations/"+loc.ID, "", testToken))
	if rr.Code != http.StatusOK {
		t.Errorf("delete status = %d", rr.Code)
	}
	rr = serve(h, authReq(http.MethodGet, "/api/locations/"+loc.ID, "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestJobs_List(t *testing.T) {
	h, store := setupHandler(t, Vendors{})
	id, err := store.EnqueueJob(storage.Job{Type: ingest.JobCMSSync, PayloadJSON: "{}"})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	rr := serve(h, authReq(http.MethodGet, "/api/jobs?status=pending", "", testToken))
	var jobs []storage.Job
	decodeResult(t, rr, &jobs)
	if len(jobs) != 1 || jobs[0].ID != id {
		t.Errorf("jobs = %+v", jobs)
	}

	rr = serve(h, authReq(http.MethodGet, "/api/jobs/"+id, "", testToken))
	var job storage.Job
	decodeResult(t, rr, &job)
	if job.Type != ingest.JobCMSSync {
		t.Errorf("Type = %q, want %q", job.Type, ingest.JobCMSSync)
	}

	rr = serve(h, authReq(http.MethodGet, "/api/jobs/nope", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
