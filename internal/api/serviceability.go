package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/sxml"
	"github.com/kalambet/ucportal/internal/workflow"
)

// splitParam collects a repeated query parameter, also splitting each value
// on commas: ?name=SEP1,SEP2&name=SEP3.
func splitParam(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func handleDeviceStatus(c *sxml.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		devices, err := c.SelectCmDevice(r.Context(), sxml.DeviceQuery{
			Names:       splitParam(r, "name"),
			Status:      q.Get("status"),
			DeviceClass: q.Get("class"),
		})
		respond(w, r, devices, err)
	}
}

func handleListCounters(c *sxml.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objs, err := c.ListCounters(r.Context(), chi.URLParam(r, "host"))
		respond(w, r, objs, err)
	}
}

func handleCollectCounters(c *sxml.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objects := splitParam(r, "object")
		if len(objects) == 0 {
			fail(w, r, badRequest("at least one object is required"))
			return
		}
		data, err := c.CollectObjects(r.Context(), chi.URLParam(r, "host"), objects)
		respond(w, r, data, err)
	}
}

type enableVoicemailRequest struct {
	UserID string `json:"userid"`
	workflow.VoicemailOptions
}

// handleEnableVoicemail runs the voicemail workflow. A failed run still
// returns the steps that completed.
func handleEnableVoicemail(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enableVoicemailRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := deps.Voicemail.Enable(r.Context(), strings.TrimSpace(req.UserID), req.VoicemailOptions)
		if err != nil && len(res.Steps) > 0 {
			code := statusFor(err)
			out := envelope.Fail(err)
			out.Response = res
			writeResult(w, code, out)
			return
		}
		respond(w, r, res, err)
	}
}
