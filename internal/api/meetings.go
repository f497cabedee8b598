package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ucportal/internal/cms"
	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/ingest"
	"github.com/kalambet/ucportal/internal/storage"
	"github.com/kalambet/ucportal/internal/webex"
)

func cmsListOptions(r *http.Request) cms.ListOptions {
	return cms.ListOptions{
		Filter: r.URL.Query().Get("filter"),
		Limit:  parseIntParam(r, "limit", 0, 100),
		Offset: parseIntParam(r, "offset", 0, 0),
	}
}

func mountCMS(r chi.Router, c *cms.Client) {
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		st, err := c.SystemStatus(r.Context())
		respond(w, r, st, err)
	})
	r.Get("/calls", func(w http.ResponseWriter, r *http.Request) {
		calls, err := c.ListCalls(r.Context(), cmsListOptions(r))
		respond(w, r, calls, err)
	})

	r.Get("/cospaces", func(w http.ResponseWriter, r *http.Request) {
		if parseBoolParam(r, "all") {
			all, err := c.AllCoSpaces(r.Context(), r.URL.Query().Get("filter"))
			respond(w, r, all, err)
			return
		}
		list, err := c.ListCoSpaces(r.Context(), cmsListOptions(r))
		respond(w, r, list, err)
	})
	r.Post("/cospaces", func(w http.ResponseWriter, r *http.Request) {
		var p cms.CoSpaceParams
		if !decodeBody(w, r, &p) {
			return
		}
		id, err := c.CreateCoSpace(r.Context(), p)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeCreated(w, map[string]string{"id": id})
	})
	r.Get("/cospaces/{id}", func(w http.ResponseWriter, r *http.Request) {
		sp, err := c.GetCoSpace(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, sp, err)
	})
	r.Put("/cospaces/{id}", func(w http.ResponseWriter, r *http.Request) {
		var p cms.CoSpaceParams
		if !decodeBody(w, r, &p) {
			return
		}
		err := c.UpdateCoSpace(r.Context(), chi.URLParam(r, "id"), p)
		respond(w, r, nil, err)
	})
	r.Delete("/cospaces/{id}", func(w http.ResponseWriter, r *http.Request) {
		err := c.DeleteCoSpace(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, nil, err)
	})
	r.Get("/cospaces/{id}/members", func(w http.ResponseWriter, r *http.Request) {
		m, err := c.ListCoSpaceMembers(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, m, err)
	})
	r.Post("/cospaces/{id}/members", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserJID string `json:"userJid"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		id, err := c.AddCoSpaceMember(r.Context(), chi.URLParam(r, "id"), req.UserJID)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeCreated(w, map[string]string{"id": id})
	})
}

// handleSyncSpaces queues a cms_sync job. An empty body syncs everything.
func handleSyncSpaces(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p ingest.CMSSyncPayload
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		payload, err := json.Marshal(p)
		if err != nil {
			fail(w, r, err)
			return
		}
		id, err := deps.Store.EnqueueJob(storage.Job{Type: ingest.JobCMSSync, PayloadJSON: string(payload)})
		if err != nil {
			fail(w, r, err)
			return
		}
		writeResult(w, http.StatusAccepted, envelope.OK(map[string]string{"jobId": id}))
	}
}

func handleListSpaces(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spaces, err := deps.Store.ListCMSSpaces(parseIntParam(r, "limit", 100, 1000))
		respond(w, r, spaces, err)
	}
}

func handleGetSpace(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sp, err := deps.Store.GetCMSSpace(chi.URLParam(r, "id"))
		respond(w, r, sp, err)
	}
}

func handleDeleteSpace(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteCMSSpace(chi.URLParam(r, "id"))
		respond(w, r, nil, err)
	}
}

func mountWebex(r chi.Router, c *webex.Client) {
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		me, err := c.Me(r.Context())
		respond(w, r, me, err)
	})

	r.Get("/people", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		people, err := c.ListPeople(r.Context(), webex.PeopleQuery{
			Email:       q.Get("email"),
			DisplayName: q.Get("displayName"),
			Max:         parseIntParam(r, "max", 0, 1000),
		})
		respond(w, r, people, err)
	})
	r.Post("/people", func(w http.ResponseWriter, r *http.Request) {
		var p webex.Person
		if !decodeBody(w, r, &p) {
			return
		}
		out, err := c.CreatePerson(r.Context(), p)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeCreated(w, out)
	})
	r.Get("/people/{id}", func(w http.ResponseWriter, r *http.Request) {
		p, err := c.GetPerson(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, p, err)
	})
	r.Delete("/people/{id}", func(w http.ResponseWriter, r *http.Request) {
		err := c.DeletePerson(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, nil, err)
	})

	r.Get("/meetings", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		m, err := c.ListMeetings(r.Context(), webex.MeetingQuery{
			From: q.Get("from"),
			To:   q.Get("to"),
			Max:  parseIntParam(r, "max", 0, 100),
		})
		respond(w, r, m, err)
	})
	r.Post("/meetings", func(w http.ResponseWriter, r *http.Request) {
		var m webex.Meeting
		if !decodeBody(w, r, &m) {
			return
		}
		out, err := c.CreateMeeting(r.Context(), m)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeCreated(w, out)
	})
	r.Get("/meetings/{id}", func(w http.ResponseWriter, r *http.Request) {
		m, err := c.GetMeeting(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, m, err)
	})
	r.Delete("/meetings/{id}", func(w http.ResponseWriter, r *http.Request) {
		err := c.DeleteMeeting(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, nil, err)
	})

	r.Get("/rooms", func(w http.ResponseWriter, r *http.Request) {
		rooms, err := c.ListRooms(r.Context(), parseIntParam(r, "max", 0, 1000))
		respond(w, r, rooms, err)
	})
	r.Post("/messages", func(w http.ResponseWriter, r *http.Request) {
		var m webex.Message
		if !decodeBody(w, r, &m) {
			return
		}
		out, err := c.SendMessage(r.Context(), m)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeCreated(w, out)
	})
}
