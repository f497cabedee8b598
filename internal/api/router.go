// Package api is the portal's REST facade and MCP surface. Vendor routes
// pass straight through to the vendor clients; every answer, success or
// failure, is an envelope.Result.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"

	"github.com/kalambet/ucportal/internal/axl"
	"github.com/kalambet/ucportal/internal/cms"
	"github.com/kalambet/ucportal/internal/cupi"
	"github.com/kalambet/ucportal/internal/storage"
	"github.com/kalambet/ucportal/internal/sxml"
	"github.com/kalambet/ucportal/internal/uds"
	"github.com/kalambet/ucportal/internal/webex"
	"github.com/kalambet/ucportal/internal/workflow"
)

// Vendors holds one client per vendor API. A nil client means the vendor is
// not configured and its routes answer 503.
type Vendors struct {
	AXL            *axl.Client
	UDS            *uds.Client
	CUPI           *cupi.Client
	CMS            *cms.Client
	Webex          *webex.Client
	Serviceability *sxml.Client
}

type Deps struct {
	Store     *storage.Store
	Vendors   Vendors
	Voicemail *workflow.Voicemail // nil unless UDS, CUPI and AXL are all configured
	Token     string
	UploadDir string

	// CheckTimeout bounds each vendor check of GET /api/status.
	CheckTimeout time.Duration
	// AccessLog receives one Apache-style line per request when set.
	AccessLog io.Writer
	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string
}

// NewHandler builds the portal router: /health is public, everything under
// /api needs the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/status", handleStatus(deps))

		r.Route("/axl", func(r chi.Router) {
			r.Use(requireConfigured(deps.Vendors.AXL != nil, "cucm"))
			mountAXL(r, deps.Vendors.AXL)
		})
		r.Route("/uds", func(r chi.Router) {
			r.Use(requireConfigured(deps.Vendors.UDS != nil, "cucm"))
			mountUDS(r, deps.Vendors.UDS)
		})
		r.Route("/cupi", func(r chi.Router) {
			r.Use(requireConfigured(deps.Vendors.CUPI != nil, "unity connection"))
			mountCUPI(r, deps.Vendors.CUPI)
		})
		r.Route("/cms", func(r chi.Router) {
			// The local mirror stays readable without a CMS.
			r.Get("/spaces", handleListSpaces(deps))
			r.Get("/spaces/{id}", handleGetSpace(deps))
			r.Delete("/spaces/{id}", handleDeleteSpace(deps))

			r.Group(func(r chi.Router) {
				r.Use(requireConfigured(deps.Vendors.CMS != nil, "cms"))
				r.Post("/spaces/sync", handleSyncSpaces(deps))
				mountCMS(r, deps.Vendors.CMS)
			})
		})
		r.Route("/webex", func(r chi.Router) {
			r.Use(requireConfigured(deps.Vendors.Webex != nil, "webex"))
			mountWebex(r, deps.Vendors.Webex)
		})
		r.Route("/ris", func(r chi.Router) {
			r.Use(requireConfigured(deps.Vendors.Serviceability != nil, "cucm"))
			r.Get("/devices", handleDeviceStatus(deps.Vendors.Serviceability))
		})
		r.Route("/perfmon", func(r chi.Router) {
			r.Use(requireConfigured(deps.Vendors.Serviceability != nil, "cucm"))
			r.Get("/{host}/counters", handleListCounters(deps.Vendors.Serviceability))
			r.Get("/{host}/data", handleCollectCounters(deps.Vendors.Serviceability))
		})
		r.Route("/workflows", func(r chi.Router) {
			r.Use(requireConfigured(deps.Voicemail != nil, "voicemail workflow (cucm and unity connection)"))
			r.Post("/voicemail", handleEnableVoicemail(deps))
		})

		mountRecords(r, deps)
	})

	return wrap(r, deps)
}

// wrap adds panic recovery, CORS and the access log around h.
func wrap(h http.Handler, deps Deps) http.Handler {
	errLog := slog.NewLogLogger(slog.Default().Handler(), slog.LevelError)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(errLog), handlers.PrintRecoveryStack(true))(h)
	if len(deps.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(deps.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}
	if deps.AccessLog != nil {
		h = handlers.LoggingHandler(deps.AccessLog, h)
	}
	return h
}

func requireConfigured(ok bool, vendor string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ok {
				fail(w, r, fmt.Errorf("%s is %w", vendor, ErrNotConfigured))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// Checks returns one status check per configured vendor.
func (v Vendors) Checks() []workflow.VendorCheck {
	var checks []workflow.VendorCheck
	if v.AXL != nil {
		checks = append(checks, workflow.VendorCheck{Vendor: "axl", Check: v.AXL.GetCCMVersion})
	}
	if v.UDS != nil {
		checks = append(checks, workflow.VendorCheck{Vendor: "uds", Check: v.UDS.Version})
	}
	if v.CUPI != nil {
		checks = append(checks, workflow.VendorCheck{Vendor: "cupi", Check: v.CUPI.Version})
	}
	if v.CMS != nil {
		checks = append(checks, workflow.VendorCheck{Vendor: "cms", Check: func(ctx context.Context) (string, error) {
			st, err := v.CMS.SystemStatus(ctx)
			return st.SoftwareVersion, err
		}})
	}
	if v.Webex != nil {
		checks = append(checks, workflow.VendorCheck{Vendor: "webex", Check: func(ctx context.Context) (string, error) {
			me, err := v.Webex.Me(ctx)
			return me.DisplayName, err
		}})
	}
	return checks
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, workflow.Status(r.Context(), deps.Vendors.Checks(), deps.CheckTimeout))
	}
}
