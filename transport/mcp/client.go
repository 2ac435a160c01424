package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
	"github.com/wricardo/mcp-training/autodrive/sim/render"
	"github.com/wricardo/mcp-training/autodrive/sim/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Autodrive Simulation",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Autodrive - MCP Interface

Vehicles move on a bounded grid, one command per tick, all in lock-step.
Commands: L (rotate left), R (rotate right), F (move forward one cell).
Headings: N, E, S, W. (0,0) is the bottom-left cell; N increases y.
A forward move that would leave the field is ignored.
Two vehicles that land on the same cell in the same tick collide and stop.

TYPICAL FLOW:
1. create_session (scenario_id, or width/height for an empty field)
2. add_vehicle (repeat)
3. run_simulation
4. reset_session to start over on the same field

AVAILABLE TOOLS:
- create_session, get_session, list_sessions, reset_session
- add_vehicle, run_simulation, get_result
- list_scenarios`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new simulation session from a scenario, or an empty field when width and height are given",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"scenario_id": map[string]interface{}{
					"type":        "string",
					"description": "Scenario to start from (optional, defaults to the default scenario)",
				},
				"width": map[string]interface{}{
					"type":        "integer",
					"description": "Field width for an empty field (optional)",
				},
				"height": map[string]interface{}{
					"type":        "integer",
					"description": "Field height for an empty field (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active simulation sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get the field and vehicles of a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_session",
		Description: "Remove all vehicles and the last run from a session, keeping its field",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleResetSession)

	// Simulation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_vehicle",
		Description: "Add a vehicle to the session's field",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Unique vehicle name",
				},
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "Starting column (0-based)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Starting row (0-based, 0 is the bottom row)",
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"N", "E", "S", "W"},
					"description": "Starting heading",
				},
				"commands": map[string]interface{}{
					"type":        "string",
					"description": "Command string made of L, R and F",
				},
			},
			Required: []string{"session_id", "name", "x", "y", "direction", "commands"},
		},
	}, c.handleAddVehicle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_simulation",
		Description: "Run the simulation for every vehicle in the session and report collisions and final positions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"show_fields": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the rendered field after every tick",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRunSimulation)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_result",
		Description: "Get the outcome of the session's last run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetResult)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_scenarios",
		Description: "List the scenarios available for new sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListScenarios)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeStdio serves the MCP tools over stdin/stdout until the client disconnects
func (c *Client) ServeStdio() error {
	return server.ServeStdio(c.mcpServer)
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// intArg reads a numeric argument; JSON numbers arrive as float64
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]interface{}{}
	if scenarioID, _ := args["scenario_id"].(string); scenarioID != "" {
		body["scenario_id"] = scenarioID
	}
	width, hasWidth := intArg(args, "width")
	height, hasHeight := intArg(args, "height")
	if hasWidth != hasHeight {
		return mcp.NewToolResultError("width and height must be given together"), nil
	}
	if hasWidth {
		body["width"] = width
		body["height"] = height
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Created session: " + session.ID + "\n" + formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (Scenario: %s, Field: %s, Vehicles: %d, Created: %s)\n",
			s.ID, s.ScenarioID, s.Field, len(s.Vehicles), s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+sessionID, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleResetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/reset", nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Session reset\n" + formatSessionInfo(&session)), nil
}

func (c *Client) handleAddVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	spec := engine.VehicleSpec{}
	spec.Name, _ = args["name"].(string)
	spec.Direction, _ = args["direction"].(string)
	spec.Commands, _ = args["commands"].(string)

	var ok bool
	if spec.X, ok = intArg(args, "x"); !ok {
		return mcp.NewToolResultError("x must be an integer"), nil
	}
	if spec.Y, ok = intArg(args, "y"); !ok {
		return mcp.NewToolResultError("y must be an integer"), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/vehicles", spec, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(render.VehicleList(session.Vehicles)), nil
}

func (c *Client) handleRunSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	showFields, _ := args["show_fields"].(bool)

	var run service.RunInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/run?ticks=false", nil, &run); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRun(&run, showFields)), nil
}

func (c *Client) handleGetResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var run service.RunInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+sessionID+"/result?ticks=false", nil, &run); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRun(&run, false)), nil
}

func (c *Client) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count     int                    `json:"count"`
		Scenarios []service.ScenarioInfo `json:"scenarios"`
	}

	if err := c.apiCall(ctx, "GET", "/api/scenarios", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Available Scenarios (%d):\n\n", response.Count)
	for _, s := range response.Scenarios {
		result += fmt.Sprintf("- %s: %dx%d, %d vehicles", s.ScenarioID, s.Width, s.Height, s.Vehicles)
		if s.Description != "" {
			result += " - " + s.Description
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nScenario: %s\nField: %s\n", session.ID, session.ScenarioID, session.Field)
	if len(session.Vehicles) == 0 {
		b.WriteString("No cars added yet.\n")
	} else {
		b.WriteString(render.VehicleList(session.Vehicles))
	}
	if session.LastRunID != "" {
		fmt.Fprintf(&b, "Last run: %s\n", session.LastRunID)
	}
	return b.String()
}

// formatRun summarises a run. The full report carries a field per tick, so it is
// only included on request.
func formatRun(run *service.RunInfo, showFields bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d ticks, %d of %d vehicles survived\n\n",
		run.RunID, run.TotalTicks, run.Survivors, len(run.Final))

	if showFields {
		b.WriteString(run.Report)
		return b.String()
	}

	if len(run.Collisions) == 0 {
		b.WriteString("No collisions.\n")
	}
	for _, c := range run.Collisions {
		b.WriteString(c.String() + "\n")
	}
	b.WriteString("\n" + render.FinalReport(run.Final))
	return b.String()
}
