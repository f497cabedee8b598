package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/ucportal/internal/axl"
	"github.com/kalambet/ucportal/internal/storage"
	"github.com/kalambet/ucportal/internal/sxml"
	"github.com/kalambet/ucportal/internal/uds"
)

// MCPPhones looks up phones in CUCM.
type MCPPhones interface {
	GetPhone(ctx context.Context, name string) (axl.Phone, error)
}

// MCPDevices reports real-time device registration.
type MCPDevices interface {
	SelectCmDevice(ctx context.Context, q sxml.DeviceQuery) ([]sxml.DeviceStatus, error)
}

// MCPDirectory searches the CUCM user directory.
type MCPDirectory interface {
	SearchUsers(ctx context.Context, s uds.Search) (uds.Users, error)
}

// MCPDeps holds dependencies for the MCP server. Vendor fields may be nil;
// their tools then answer with an error result.
type MCPDeps struct {
	Store     *storage.Store
	Phones    MCPPhones
	Devices   MCPDevices
	Directory MCPDirectory
}

// NewMCPServer creates an MCP server with the portal tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"ucportal",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("ucportal: look up CUCM phones and users, check registration, and record call flow test results."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("lookup_phone",
			mcp.WithDescription("Get a phone's configuration from CUCM by device name (e.g. SEP001122334455)."),
			mcp.WithString("name", mcp.Description("Device name"), mcp.Required()),
		),
		mcpLookupPhone(deps),
	)

	s.AddTool(
		mcp.NewTool("device_status",
			mcp.WithDescription("Show real-time registration status of devices across the cluster."),
			mcp.WithString("names", mcp.Description("Comma-separated device names; * wildcards allowed"), mcp.Required()),
			mcp.WithString("status", mcp.Description("Any, Registered, UnRegistered, Rejected (default Any)")),
		),
		mcpDeviceStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("find_user",
			mcp.WithDescription("Search the CUCM user directory by first or last name."),
			mcp.WithString("name", mcp.Description("Name to search for"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of users (default 10)")),
		),
		mcpFindUser(deps),
	)

	s.AddTool(
		mcp.NewTool("list_spaces",
			mcp.WithDescription("List CMS spaces from the local mirror."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of spaces (default 50)")),
		),
		mcpListSpaces(deps),
	)

	s.AddTool(
		mcp.NewTool("list_call_flows",
			mcp.WithDescription("List the call flow test definitions."),
		),
		mcpListCallFlows(deps),
	)

	s.AddTool(
		mcp.NewTool("record_result",
			mcp.WithDescription("Record the outcome of running a call flow."),
			mcp.WithString("call_flow", mcp.Description("Call flow name or id"), mcp.Required()),
			mcp.WithString("outcome", mcp.Description("pass, fail or blocked"), mcp.Required()),
			mcp.WithString("notes", mcp.Description("Free-form notes")),
		),
		mcpRecordResult(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"portal://locations",
			"Lab Locations",
			mcp.WithResourceDescription("Sites covered by the lab, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLocations(deps),
	)

	return s
}

func mcpLookupPhone(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Phones == nil {
			return mcpError("cucm is not configured"), nil
		}
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		p, err := deps.Phones.GetPhone(ctx, name)
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		return mcpJSON(p)
	}
}

func mcpDeviceStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Devices == nil {
			return mcpError("cucm is not configured"), nil
		}
		raw, err := req.RequireString("names")
		if err != nil {
			return mcpError("names is required"), nil
		}
		var names []string
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			return mcpError("names is required"), nil
		}
		devices, err := deps.Devices.SelectCmDevice(ctx, sxml.DeviceQuery{
			Names:  names,
			Status: req.GetString("status", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("device status failed: %v", err)), nil
		}
		return mcpJSON(devices)
	}
}

func mcpFindUser(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Directory == nil {
			return mcpError("cucm is not configured"), nil
		}
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		limit := req.GetInt("limit", 10)
		if limit <= 0 || limit > 100 {
			limit = 10
		}
		users, err := deps.Directory.SearchUsers(ctx, uds.Search{Name: name, Max: limit})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if users.Users == nil {
			users.Users = []uds.User{}
		}
		return mcpJSON(users.Users)
	}
}

func mcpListSpaces(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 50)
		if limit <= 0 {
			limit = 50
		}
		spaces, err := deps.Store.ListCMSSpaces(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("listing spaces failed: %v", err)), nil
		}
		return mcpJSON(spaces)
	}
}

func mcpListCallFlows(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := deps.Store.ListCallFlows(0)
		if err != nil {
			return mcpError(fmt.Sprintf("listing call flows failed: %v", err)), nil
		}
		return mcpJSON(list)
	}
}

func mcpRecordResult(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref, err := req.RequireString("call_flow")
		if err != nil {
			return mcpError("call_flow is required"), nil
		}
		outcome, err := req.RequireString("outcome")
		if err != nil {
			return mcpError("outcome is required"), nil
		}

		flow, err := deps.Store.GetCallFlowByName(ref)
		if err == storage.ErrNotFound {
			flow, err = deps.Store.GetCallFlow(ref)
		}
		if err == storage.ErrNotFound {
			return mcpError(fmt.Sprintf("no call flow named %q", ref)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("finding call flow failed: %v", err)), nil
		}

		res, err := deps.Store.CreateResult(storage.Result{
			CallFlowID: flow.ID,
			Outcome:    strings.ToLower(outcome),
			Notes:      req.GetString("notes", ""),
			ExecutedBy: "mcp",
		})
		if err != nil {
			return mcpError(fmt.Sprintf("recording result failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Recorded %s for %s (result %s)", res.Outcome, flow.Name, res.ID)), nil
	}
}

func mcpResourceLocations(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		locs, err := deps.Store.ListLocations(0)
		if err != nil {
			return nil, fmt.Errorf("failed to list locations: %w", err)
		}

		b, err := json.Marshal(locs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal locations: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
