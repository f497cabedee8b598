package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/kalambet/ucportal/internal/ingest"
	"github.com/kalambet/ucportal/internal/storage"
)

func uploadReq(t *testing.T, filename, content, description string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	if description != "" {
		mw.WriteField("description", description)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func TestUploads_CreateAndFetch(t *testing.T) {
	h, store := setupHandler(t, Vendors{})

	rr := serve(h, uploadReq(t, "trace.txt", "SIP/2.0 200 OK\r\n", "lobby call"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var u storage.Upload
	decodeResult(t, rr, &u)
	if u.Filename != "trace.txt" || u.Size != int64(len("SIP/2.0 200 OK\r\n")) {
		t.Errorf("upload = %+v", u)
	}
	if u.Description != "lobby call" {
		t.Errorf("Description = %q, want %q", u.Description, "lobby call")
	}

	stored, err := store.GetUpload(u.ID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if _, err := os.Stat(stored.StoredPath); err != nil {
		t.Errorf("stored file: %v", err)
	}

	jobs, _ := store.ListJobs(storage.JobPending, 10)
	if len(jobs) != 1 || jobs[0].Type != ingest.JobUploadPreview {
		t.Fatalf("jobs = %+v, want one upload_preview", jobs)
	}
	var p ingest.PreviewPayload
	json.Unmarshal([]byte(jobs[0].PayloadJSON), &p)
	if p.UploadID != u.ID {
		t.Errorf("payload upload id = %q, want %q", p.UploadID, u.ID)
	}

	rr = serve(h, authReq(http.MethodGet, "/api/uploads/"+u.ID+"/content", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("content status = %d", rr.Code)
	}
	if rr.Body.String() != "SIP/2.0 200 OK\r\n" {
		t.Errorf("content = %q", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename=trace.txt` {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestUploads_MissingFile(t *testing.T) {
	h, _ := setupHandler(t, Vendors{})

	rr := serve(h, authReq(http.MethodPost, "/api/uploads", `{"file":"nope"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUploads_UpdateAndDelete(t *testing.T) {
	h, store := setupHandler(t, Vendors{})

	rr := serve(h, uploadReq(t, "capture.pcap", "\xd4\xc3\xb2\xa1", ""))
	var u storage.Upload
	decodeResult(t, rr, &u)
	stored, _ := store.GetUpload(u.ID)

	rr = serve(h, authReq(http.MethodPatch, "/api/uploads/"+u.ID, `{"description":"one-way audio"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d; body = %s", rr.Code, rr.Body.String())
	}
	decodeResult(t, rr, &u)
	if u.Description != "one-way audio" {
		t.Errorf("Description = %q", u.Description)
	}

	rr = serve(h, authReq(http.MethodDelete, "/api/uploads/"+u.ID, "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if _, err := os.Stat(stored.StoredPath); !os.IsNotExist(err) {
		t.Errorf("stored file still present: %v", err)
	}
	rr = serve(h, authReq(http.MethodGet, "/api/uploads/"+u.ID+"/content", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("content after delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
