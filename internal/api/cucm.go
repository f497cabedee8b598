package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ucportal/internal/axl"
	"github.com/kalambet/ucportal/internal/cupi"
	"github.com/kalambet/ucportal/internal/uds"
)

func mountAXL(r chi.Router, c *axl.Client) {
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		v, err := c.GetCCMVersion(r.Context())
		respond(w, r, map[string]string{"version": v}, err)
	})

	r.Get("/phones", func(w http.ResponseWriter, r *http.Request) {
		phones, err := c.ListPhones(r.Context(), r.URL.Query().Get("name"))
		respond(w, r, phones, err)
	})
	r.Post("/phones", func(w http.ResponseWriter, r *http.Request) {
		var p axl.NewPhone
		if !decodeBody(w, r, &p) {
			return
		}
		id, err := c.AddPhone(r.Context(), p)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeCreated(w, map[string]string{"uuid": id})
	})
	r.Get("/phones/{name}", func(w http.ResponseWriter, r *http.Request) {
		p, err := c.GetPhone(r.Context(), chi.URLParam(r, "name"))
		respond(w, r, p, err)
	})
	r.Patch("/phones/{name}", func(w http.ResponseWriter, r *http.Request) {
		var u axl.PhoneUpdate
		if !decodeBody(w, r, &u) {
			return
		}
		id, err := c.UpdatePhone(r.Context(), chi.URLParam(r, "name"), u)
		respond(w, r, map[string]string{"uuid": id}, err)
	})
	r.Delete("/phones/{name}", func(w http.ResponseWriter, r *http.Request) {
		err := c.RemovePhone(r.Context(), chi.URLParam(r, "name"))
		respond(w, r, nil, err)
	})
	r.Post("/phones/{name}/reset", func(w http.ResponseWriter, r *http.Request) {
		err := c.DoDeviceReset(r.Context(), chi.URLParam(r, "name"), parseBoolParam(r, "restart"))
		respond(w, r, nil, err)
	})

	r.Post("/lines", func(w http.ResponseWriter, r *http.Request) {
		var l axl.Line
		if !decodeBody(w, r, &l) {
			return
		}
		if l.Pattern == "" {
			fail(w, r, badRequest("pattern is required"))
			return
		}
		id, err := c.AddLine(r.Context(), l)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeCreated(w, map[string]string{"uuid": id})
	})
	r.Get("/lines/{pattern}", func(w http.ResponseWriter, r *http.Request) {
		l, err := c.GetLine(r.Context(), chi.URLParam(r, "pattern"), r.URL.Query().Get("partition"))
		respond(w, r, l, err)
	})
	r.Patch("/lines/{pattern}", func(w http.ResponseWriter, r *http.Request) {
		var u axl.LineUpdate
		if !decodeBody(w, r, &u) {
			return
		}
		id, err := c.UpdateLine(r.Context(), chi.URLParam(r, "pattern"), r.URL.Query().Get("partition"), u)
		respond(w, r, map[string]string{"uuid": id}, err)
	})

	r.Get("/users", func(w http.ResponseWriter, r *http.Request) {
		users, err := c.ListUsers(r.Context(), r.URL.Query().Get("last"))
		respond(w, r, users, err)
	})
	r.Get("/users/{userid}", func(w http.ResponseWriter, r *http.Request) {
		u, err := c.GetUser(r.Context(), chi.URLParam(r, "userid"))
		respond(w, r, u, err)
	})
	r.Patch("/users/{userid}", func(w http.ResponseWriter, r *http.Request) {
		var u axl.UserUpdate
		if !decodeBody(w, r, &u) {
			return
		}
		id, err := c.UpdateUser(r.Context(), chi.URLParam(r, "userid"), u)
		respond(w, r, map[string]string{"uuid": id}, err)
	})

	r.Post("/sql", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			fail(w, r, badRequest("query is required"))
			return
		}
		rows, err := c.ExecuteSQLQuery(r.Context(), req.Query)
		respond(w, r, map[string]any{"columns": axl.Columns(rows), "rows": rows}, err)
	})
}

func mountUDS(r chi.Router, c *uds.Client) {
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		v, err := c.Version(r.Context())
		respond(w, r, map[string]string{"version": v}, err)
	})
	r.Get("/users", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s := uds.Search{
			UserName: q.Get("username"),
			LastName: q.Get("last"),
			Name:     q.Get("name"),
			Max:      parseIntParam(r, "max", 0, 500),
		}
		if s.UserName == "" && s.LastName == "" && s.Name == "" {
			fail(w, r, badRequest("one of username, last or name is required"))
			return
		}
		users, err := c.SearchUsers(r.Context(), s)
		respond(w, r, users, err)
	})
	r.Get("/users/{userid}", func(w http.ResponseWriter, r *http.Request) {
		u, err := c.GetUser(r.Context(), chi.URLParam(r, "userid"))
		respond(w, r, u, err)
	})
	r.Get("/users/{userid}/devices", func(w http.ResponseWriter, r *http.Request) {
		d, err := c.UserDevices(r.Context(), chi.URLParam(r, "userid"))
		respond(w, r, d, err)
	})
}

func mountCUPI(r chi.Router, c *cupi.Client) {
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		v, err := c.Version(r.Context())
		respond(w, r, map[string]string{"version": v}, err)
	})
	r.Get("/users", func(w http.ResponseWriter, r *http.Request) {
		list, err := c.ListUsers(r.Context(), cupi.Query{
			Query:       r.URL.Query().Get("query"),
			RowsPerPage: parseIntParam(r, "rows", 0, 2000),
			PageNumber:  parseIntParam(r, "page", 0, 0),
		})
		respond(w, r, list, err)
	})
	r.Post("/users", func(w http.ResponseWriter, r *http.Request) {
		var u cupi.User
		if !decodeBody(w, r, &u) {
			return
		}
		id, err := c.CreateUser(r.Context(), r.URL.Query().Get("template"), u)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeCreated(w, map[string]string{"objectId": id})
	})
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		u, err := c.GetUser(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, u, err)
	})
	r.Delete("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		err := c.DeleteUser(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, nil, err)
	})
	r.Put("/users/{id}/pin", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PIN string `json:"pin"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.PIN == "" {
			fail(w, r, badRequest("pin is required"))
			return
		}
		err := c.SetPIN(r.Context(), chi.URLParam(r, "id"), req.PIN)
		respond(w, r, nil, err)
	})
	r.Get("/templates", func(w http.ResponseWriter, r *http.Request) {
		t, err := c.ListUserTemplates(r.Context())
		respond(w, r, t, err)
	})
}
