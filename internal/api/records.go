package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ucportal/internal/flows"
	"github.com/kalambet/ucportal/internal/storage"
)

// mountRecords serves the portal's own SQLite tables.
func mountRecords(r chi.Router, deps Deps) {
	s := deps.Store

	r.Route("/call-flows", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			list, err := s.ListCallFlows(parseIntParam(r, "limit", 100, 1000))
			respond(w, r, list, err)
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var f storage.CallFlow
			if !decodeBody(w, r, &f) {
				return
			}
			out, err := s.CreateCallFlow(f)
			if err != nil {
				fail(w, r, err)
				return
			}
			writeCreated(w, out)
		})
		r.Post("/import", handleImportFlows(deps))
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			f, err := s.GetCallFlow(chi.URLParam(r, "id"))
			respond(w, r, f, err)
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var f storage.CallFlow
			if !decodeBody(w, r, &f) {
				return
			}
			out, err := s.UpdateCallFlow(chi.URLParam(r, "id"), f)
			respond(w, r, out, err)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			respond(w, r, nil, s.DeleteCallFlow(chi.URLParam(r, "id")))
		})
	})

	r.Route("/results", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			list, err := s.ListResults(r.URL.Query().Get("callFlowId"), parseIntParam(r, "limit", 100, 1000))
			respond(w, r, list, err)
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var res storage.Result
			if !decodeBody(w, r, &res) {
				return
			}
			if res.CallFlowID == "" {
				fail(w, r, badRequest("callFlowId is required"))
				return
			}
			out, err := s.CreateResult(res)
			if err != nil {
				fail(w, r, err)
				return
			}
			writeCreated(w, out)
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			res, err := s.GetResult(chi.URLParam(r, "id"))
			respond(w, r, res, err)
		})
		r.Patch("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Outcome string `json:"outcome"`
				Notes   string `json:"notes"`
			}
			if !decodeBody(w, r, &req) {
				return
			}
			id := chi.URLParam(r, "id")
			if err := s.UpdateResult(id, req.Outcome, req.Notes); err != nil {
				fail(w, r, err)
				return
			}
			res, err := s.GetResult(id)
			respond(w, r, res, err)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			respond(w, r, nil, s.DeleteResult(chi.URLParam(r, "id")))
		})
	})

	r.Route("/locations", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			list, err := s.ListLocations(parseIntParam(r, "limit", 100, 1000))
			respond(w, r, list, err)
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var l storage.Location
			if !decodeBody(w, r, &l) {
				return
			}
			out, err := s.CreateLocation(l)
			if err != nil {
				fail(w, r, err)
				return
			}
			writeCreated(w, out)
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			l, err := s.GetLocation(chi.URLParam(r, "id"))
			respond(w, r, l, err)
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var l storage.Location
			if !decodeBody(w, r, &l) {
				return
			}
			out, err := s.UpdateLocation(chi.URLParam(r, "id"), l)
			respond(w, r, out, err)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			respond(w, r, nil, s.DeleteLocation(chi.URLParam(r, "id")))
		})
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			jobs, err := s.ListJobs(r.URL.Query().Get("status"), parseIntParam(r, "limit", 50, 500))
			respond(w, r, jobs, err)
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			j, err := s.GetJob(chi.URLParam(r, "id"))
			respond(w, r, j, err)
		})
	})

	mountUploads(r, deps)
}

// handleImportFlows upserts the call flows in a YAML body by name. A body
// that does not parse writes nothing.
func handleImportFlows(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		defs, err := flows.Parse(r.Body)
		if err != nil {
			fail(w, r, badRequest("%v", err))
			return
		}
		sum, err := flows.Save(deps.Store, defs)
		respond(w, r, sum, err)
	}
}
