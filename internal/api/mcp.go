package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/annex/internal/event"
	"github.com/kalambet/annex/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Router *event.Router
}

// NewMCPServer creates an MCP server exposing the datastore and
// segmentation operations as tools. MCP carries no request auth, so the
// owner is an explicit tool argument and segmentation takes the
// caller's upstream key directly.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"annex",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("annex — versioned annotation datastore with a cached document-segmentation proxy."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("store_annotations",
			mcp.WithDescription("Store an annotation payload as a new revision of (owner, key)."),
			mcp.WithString("owner", mcp.Description("Owner identifier, e.g. app.alveo.edu.au:42"), mcp.Required()),
			mcp.WithString("key", mcp.Description("Dataset key grouping revisions"), mcp.Required()),
			mcp.WithString("annotations", mcp.Description("JSON array of {start, end, speaker, annotation} records"), mcp.Required()),
		),
		mcpStoreAnnotations(deps),
	)

	s.AddTool(
		mcp.NewTool("get_annotations",
			mcp.WithDescription("Fetch one stored entry by its store id."),
			mcp.WithNumber("store_id", mcp.Description("Store id returned by store_annotations"), mcp.Required()),
		),
		mcpGetAnnotations(deps),
	)

	s.AddTool(
		mcp.NewTool("list_annotations",
			mcp.WithDescription("List stored entries, one per series, grouped by owner or by key."),
			mcp.WithString("owner", mcp.Description("List every key this owner has written")),
			mcp.WithString("key", mcp.Description("List every owner who has written this key")),
			mcp.WithString("revision", mcp.Description("\"latest\" (default) or an explicit revision number")),
		),
		mcpListAnnotations(deps),
	)

	s.AddTool(
		mcp.NewTool("segment_document",
			mcp.WithDescription("Segment a remote document, reusing the cached result when available."),
			mcp.WithString("remote_url", mcp.Description("URL of the remote document to segment"), mcp.Required()),
			mcp.WithString("api_key", mcp.Description("Upstream API key used to fetch the document"), mcp.Required()),
		),
		mcpSegmentDocument(deps),
	)

	return s
}

func mcpStoreAnnotations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		owner, err := req.RequireString("owner")
		if err != nil {
			return mcpError("owner is required"), nil
		}
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		annotationsJSON, err := req.RequireString("annotations")
		if err != nil {
			return mcpError("annotations is required"), nil
		}

		var payload []storage.Annotation
		if err := json.Unmarshal([]byte(annotationsJSON), &payload); err != nil {
			return mcpError(fmt.Sprintf("invalid annotations JSON: %v", err)), nil
		}

		result, err := deps.Router.Dispatch(ctx, event.DatastorePut, event.Request{
			OwnerID: owner,
			Key:     key,
			Payload: payload,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("store failed: %v", err)), nil
		}
		return mcpJSON(result)
	}
}

func mcpGetAnnotations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storeID, err := req.RequireInt("store_id")
		if err != nil {
			return mcpError("store_id is required"), nil
		}

		result, err := deps.Router.Dispatch(ctx, event.DatastoreGet, event.Request{
			StoreID: int64(storeID),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("get failed: %v", err)), nil
		}
		return mcpJSON(result)
	}
}

func mcpListAnnotations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		owner := req.GetString("owner", "")
		key := req.GetString("key", "")
		revision := req.GetString("revision", "")

		var name event.Name
		switch {
		case owner != "" && key == "":
			name = event.DatastoreList
		case key != "" && owner == "":
			name = event.DatastoreListByKey
		default:
			return mcpError("exactly one of owner or key is required"), nil
		}

		result, err := deps.Router.Dispatch(ctx, name, event.Request{
			OwnerID:  owner,
			Key:      key,
			Revision: revision,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcpJSON(result)
	}
}

func mcpSegmentDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		remoteURL, err := req.RequireString("remote_url")
		if err != nil {
			return mcpError("remote_url is required"), nil
		}
		apiKey, err := req.RequireString("api_key")
		if err != nil {
			return mcpError("api_key is required"), nil
		}

		result, err := deps.Router.Dispatch(ctx, event.SegmentDocument, event.Request{
			RemoteURL: remoteURL,
			APIKey:    apiKey,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("segmentation failed: %v", err)), nil
		}
		return mcpJSON(result)
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
