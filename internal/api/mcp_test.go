package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/annex/internal/datastore"
	"github.com/kalambet/annex/internal/event"
	"github.com/kalambet/annex/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	router := event.NewRouter()
	if err := datastore.NewService(store).Register(router); err != nil {
		t.Fatalf("registering datastore events: %v", err)
	}

	return MCPDeps{Router: router}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPTool_StoreAndGetAnnotations(t *testing.T) {
	deps := newTestMCPDeps(t)

	store := mcpStoreAnnotations(deps)
	result, err := store(context.Background(), makeCallToolRequest("store_annotations", map[string]interface{}{
		"owner":       "app.alveo.edu.au:10",
		"key":         "item-42",
		"annotations": `[{"start":0.3,"end":4.71,"speaker":"16","annotation":"hello"}]`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var stored struct {
		ID       int64 `json:"id"`
		Revision int   `json:"revision"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &stored); err != nil {
		t.Fatalf("parsing store result: %v", err)
	}
	if stored.Revision != 1 {
		t.Errorf("revision = %d, want 1", stored.Revision)
	}

	get := mcpGetAnnotations(deps)
	result, err = get(context.Background(), makeCallToolRequest("get_annotations", map[string]interface{}{
		"store_id": float64(stored.ID),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var entry struct {
		ID   int64                `json:"id"`
		Key  string               `json:"key"`
		Data []storage.Annotation `json:"data"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &entry); err != nil {
		t.Fatalf("parsing get result: %v", err)
	}
	if entry.ID != stored.ID || entry.Key != "item-42" {
		t.Errorf("entry = %+v, want id %d key item-42", entry, stored.ID)
	}
	if len(entry.Data) != 1 || entry.Data[0].Speaker != "16" || entry.Data[0].End != 4.71 {
		t.Errorf("unexpected annotation data: %+v", entry.Data)
	}
}

func TestMCPTool_StoreAnnotations_InvalidJSON(t *testing.T) {
	deps := newTestMCPDeps(t)

	handler := mcpStoreAnnotations(deps)
	result, err := handler(context.Background(), makeCallToolRequest("store_annotations", map[string]interface{}{
		"owner":       "app.alveo.edu.au:10",
		"key":         "item-42",
		"annotations": `{not json`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error for malformed annotation JSON")
	}
	if !strings.Contains(toolText(t, result), "invalid annotations JSON") {
		t.Errorf("error text = %q", toolText(t, result))
	}
}

func TestMCPTool_GetAnnotations_Unknown(t *testing.T) {
	deps := newTestMCPDeps(t)

	handler := mcpGetAnnotations(deps)
	result, err := handler(context.Background(), makeCallToolRequest("get_annotations", map[string]interface{}{
		"store_id": float64(424242),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error for an unknown store id")
	}
}

func TestMCPTool_ListAnnotations(t *testing.T) {
	deps := newTestMCPDeps(t)

	store := mcpStoreAnnotations(deps)
	for _, key := range []string{"item-1", "item-2", "item-3"} {
		result, err := store(context.Background(), makeCallToolRequest("store_annotations", map[string]interface{}{
			"owner":       "app.alveo.edu.au:10",
			"key":         key,
			"annotations": `[]`,
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %s", toolText(t, result))
		}
	}

	list := mcpListAnnotations(deps)

	result, err := list(context.Background(), makeCallToolRequest("list_annotations", map[string]interface{}{
		"owner": "app.alveo.edu.au:10",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var byOwner struct {
		Revision string `json:"revision"`
		List     []struct {
			ID int64 `json:"id"`
		} `json:"list"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &byOwner); err != nil {
		t.Fatalf("parsing list result: %v", err)
	}
	if len(byOwner.List) != 3 {
		t.Errorf("list has %d items, want 3", len(byOwner.List))
	}
	if byOwner.Revision != "latest" {
		t.Errorf("revision = %q, want latest", byOwner.Revision)
	}

	result, err = list(context.Background(), makeCallToolRequest("list_annotations", map[string]interface{}{
		"key": "item-2",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var byKey struct {
		List []struct {
			ID  int64  `json:"id"`
			Key string `json:"key"`
		} `json:"list"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &byKey); err != nil {
		t.Fatalf("parsing list result: %v", err)
	}
	if len(byKey.List) != 1 || byKey.List[0].Key != "item-2" {
		t.Errorf("list = %+v, want one item-2 entry", byKey.List)
	}
}

func TestMCPTool_ListAnnotations_OwnerKeyExclusive(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpListAnnotations(deps)

	for name, args := range map[string]map[string]interface{}{
		"neither": {},
		"both":    {"owner": "app.alveo.edu.au:10", "key": "item-1"},
	} {
		result, err := handler(context.Background(), makeCallToolRequest("list_annotations", args))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !result.IsError {
			t.Fatalf("%s: expected a tool error", name)
		}
		if !strings.Contains(toolText(t, result), "exactly one of owner or key") {
			t.Errorf("%s: error text = %q", name, toolText(t, result))
		}
	}
}
