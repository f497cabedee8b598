package main

import (
	"log/slog"
	"net/http"

	"github.com/kalambet/ucportal/internal/api"
	"github.com/kalambet/ucportal/internal/axl"
	"github.com/kalambet/ucportal/internal/cms"
	"github.com/kalambet/ucportal/internal/config"
	"github.com/kalambet/ucportal/internal/cupi"
	"github.com/kalambet/ucportal/internal/sxml"
	"github.com/kalambet/ucportal/internal/transport"
	"github.com/kalambet/ucportal/internal/uds"
	"github.com/kalambet/ucportal/internal/webex"
	"github.com/kalambet/ucportal/internal/workflow"
)

func newVendorHTTPClient(cfg config.Config) *http.Client {
	return transport.NewHTTPClient(transport.Options{
		Timeout:            cfg.HTTP.RequestTimeout(),
		InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
	})
}

// newVendors builds a client for every configured vendor. Unconfigured
// vendors stay nil.
func newVendors(cfg config.Config, hc *http.Client) api.Vendors {
	var v api.Vendors
	if cfg.CUCM.Configured() {
		v.AXL = axl.New(axl.Config{
			Host:     cfg.CUCM.Host,
			Username: cfg.CUCM.Username,
			Password: cfg.CUCM.Password,
			Version:  cfg.CUCM.AXLVersion,
		}, hc)
		v.UDS = uds.New(uds.Config{Host: cfg.CUCM.Host, Username: cfg.CUCM.Username, Password: cfg.CUCM.Password}, hc)
		v.Serviceability = sxml.New(sxml.Config{Host: cfg.CUCM.Host, Username: cfg.CUCM.Username, Password: cfg.CUCM.Password}, hc)
	}
	if cfg.CUC.Configured() {
		v.CUPI = cupi.New(cupi.Config{Host: cfg.CUC.Host, Username: cfg.CUC.Username, Password: cfg.CUC.Password}, hc)
	}
	if cfg.CMS.Configured() {
		v.CMS = cms.New(cms.Config{
			Host:     cfg.CMS.Host,
			Port:     cfg.CMS.Port,
			Username: cfg.CMS.Username,
			Password: cfg.CMS.Password,
		}, hc)
	}
	if cfg.Webex.Configured() {
		v.Webex = webex.NewClient(cfg.Webex.Token, cfg.Webex.BaseURL, hc)
	}
	return v
}

// newVoicemail returns the voicemail workflow, or nil unless both CUCM and
// Unity Connection are configured.
func newVoicemail(cfg config.Config, v api.Vendors) *workflow.Voicemail {
	if v.UDS == nil || v.CUPI == nil || v.AXL == nil {
		return nil
	}
	return &workflow.Voicemail{
		Directory: v.UDS,
		Mailboxes: v.CUPI,
		Lines:     v.AXL,
		Defaults: workflow.VoicemailOptions{
			Template:  cfg.Workflow.VoicemailTemplate,
			Profile:   cfg.Workflow.VoicemailProfile,
			Partition: cfg.Workflow.LinePartition,
		},
		Logger: slog.Default(),
	}
}

// mcpDeps leaves the interface fields nil for unconfigured vendors so the
// tools can tell.
func mcpDeps(v api.Vendors) api.MCPDeps {
	var d api.MCPDeps
	if v.AXL != nil {
		d.Phones = v.AXL
	}
	if v.Serviceability != nil {
		d.Devices = v.Serviceability
	}
	if v.UDS != nil {
		d.Directory = v.UDS
	}
	return d
}

func configuredNames(v api.Vendors) []string {
	var names []string
	if v.AXL != nil {
		names = append(names, "cucm")
	}
	if v.CUPI != nil {
		names = append(names, "unity-connection")
	}
	if v.CMS != nil {
		names = append(names, "cms")
	}
	if v.Webex != nil {
		names = append(names, "webex")
	}
	return names
}
