// Package sxml wraps the CUCM serviceability SOAP APIs: RisPort70 for
// real-time device registration and PerfMon for performance counters.
package sxml

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/soap"
)

const (
	soapNS          = "http://schemas.cisco.com/ast/soap"
	actionPrefix    = "http://schemas.cisco.com/ast/soap/action/"
	maxDevices      = 1000
	anyModel        = "255"
	selectCmDevice  = actionPrefix + "#RisPort70#SelectCmDevice"
	perfmonList     = actionPrefix + "#PerfmonPort#perfmonListCounter"
	perfmonCollect  = actionPrefix + "#PerfmonPort#perfmonCollectCounterData"
	risportPath     = "/realtimeservice2/services/RISService70"
	perfmonPortPath = "/perfmonservice2/services/PerfmonService"
)

// Config holds serviceability credentials. Endpoints default to the
// standard paths on Host port 8443.
type Config struct {
	Host            string
	Username        string
	Password        string
	RisEndpoint     string
	PerfmonEndpoint string
}

// Client calls RisPort70 and PerfMon.
type Client struct {
	ris     *soap.Client
	perfmon *soap.Client
}

// New creates a serviceability client.
func New(cfg Config, httpClient *http.Client) *Client {
	ris := cfg.RisEndpoint
	if ris == "" {
		ris = fmt.Sprintf("https://%s:8443%s", cfg.Host, risportPath)
	}
	pm := cfg.PerfmonEndpoint
	if pm == "" {
		pm = fmt.Sprintf("https://%s:8443%s", cfg.Host, perfmonPortPath)
	}
	return &Client{
		ris: soap.New(soap.Config{
			Vendor: envelope.RIS, Endpoint: ris, Namespace: soapNS,
			Username: cfg.Username, Password: cfg.Password,
		}, httpClient),
		perfmon: soap.New(soap.Config{
			Vendor: envelope.PerfMon, Endpoint: pm, Namespace: soapNS,
			Username: cfg.Username, Password: cfg.Password,
		}, httpClient),
	}
}

// DeviceQuery selects devices by name pattern ("SEP*" style wildcards).
// Status is Any, Registered, UnRegistered, Rejected, PartiallyRegistered or
// Unknown; empty means Any.
type DeviceQuery struct {
	Names       []string
	Status      string
	DeviceClass string
}

// DeviceStatus is one device's registration as seen by one node.
type DeviceStatus struct {
	Node         string `json:"node"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	DirNumber    string `json:"dirNumber,omitempty"`
	Model        string `json:"model,omitempty"`
	Protocol     string `json:"protocol,omitempty"`
	Status       string `json:"status"`
	StatusReason string `json:"statusReason,omitempty"`
	IPAddress    string `json:"ipAddress,omitempty"`
	TimeStamp    int64  `json:"timestamp,omitempty"`
}

type selectItem struct {
	Item string `xml:"ns:Item"`
}

type selectCmDeviceReq struct {
	XMLName   xml.Name `xml:"ns:selectCmDevice"`
	StateInfo string   `xml:"ns:StateInfo"`
	Criteria  struct {
		MaxReturnedDevices int          `xml:"ns:MaxReturnedDevices"`
		DeviceClass        string       `xml:"ns:DeviceClass"`
		Model              string       `xml:"ns:Model"`
		Status             string       `xml:"ns:Status"`
		NodeName           string       `xml:"ns:NodeName"`
		SelectBy           string       `xml:"ns:SelectBy"`
		SelectItems        []selectItem `xml:"ns:SelectItems>ns:item"`
		Protocol           string       `xml:"ns:Protocol"`
		DownloadStatus     string       `xml:"ns:DownloadStatus"`
	} `xml:"ns:CmSelectionCriteria"`
}

type cmDevice struct {
	Name         string `xml:"Name"`
	Description  string `xml:"Description"`
	DirNumber    string `xml:"DirNumber"`
	Model        string `xml:"Model"`
	Protocol     string `xml:"Protocol"`
	Status       string `xml:"Status"`
	StatusReason string `xml:"StatusReason"`
	IPAddress    []struct {
		IP string `xml:"IP"`
	} `xml:"IPAddress>item"`
	TimeStamp int64 `xml:"TimeStamp"`
}

type selectCmDeviceResp struct {
	Result struct {
		TotalDevicesFound int `xml:"TotalDevicesFound"`
		CmNodes           []struct {
			ReturnCode string     `xml:"ReturnCode"`
			Name       string     `xml:"Name"`
			CmDevices  []cmDevice `xml:"CmDevices>item"`
		} `xml:"CmNodes>item"`
	} `xml:"selectCmDeviceReturn>SelectCmDeviceResult"`
}

// SelectCmDevice returns the registration state of matching devices across
// all cluster nodes. A device registered nowhere is simply absent.
func (c *Client) SelectCmDevice(ctx context.Context, q DeviceQuery) ([]DeviceStatus, error) {
	var req selectCmDeviceReq
	req.Criteria.MaxReturnedDevices = maxDevices
	req.Criteria.DeviceClass = orDefault(q.DeviceClass, "Any")
	req.Criteria.Model = anyModel
	req.Criteria.Status = orDefault(q.Status, "Any")
	req.Criteria.SelectBy = "Name"
	req.Criteria.Protocol = "Any"
	req.Criteria.DownloadStatus = "Any"
	names := q.Names
	if len(names) == 0 {
		names = []string{"*"}
	}
	for _, n := range names {
		req.Criteria.SelectItems = append(req.Criteria.SelectItems, selectItem{Item: n})
	}

	var resp selectCmDeviceResp
	if err := c.ris.Call(ctx, selectCmDevice, req, &resp); err != nil {
		return nil, fmt.Errorf("risport selectCmDevice: %w", err)
	}

	out := []DeviceStatus{}
	for _, node := range resp.Result.CmNodes {
		for _, d := range node.CmDevices {
			ds := DeviceStatus{
				Node:         node.Name,
				Name:         d.Name,
				Description:  d.Description,
				DirNumber:    d.DirNumber,
				Model:        d.Model,
				Protocol:     d.Protocol,
				Status:       d.Status,
				StatusReason: d.StatusReason,
				TimeStamp:    d.TimeStamp,
			}
			if len(d.IPAddress) > 0 {
				ds.IPAddress = d.IPAddress[0].IP
			}
			out = append(out, ds)
		}
	}
	return out, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
