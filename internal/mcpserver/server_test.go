package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/opdedupe/internal/journal"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/planservice"
	"github.com/starford/opdedupe/internal/testutil"
)

const sampleReport = "key_type,url_or_title_key,username,item_id,title,url,updatedAt,is_newest,action\n" +
	"full_url,https://example.com,alice,new,Example,https://example.com,2024-06-01 00:00:00,YES,KEEP\n" +
	"full_url,https://example.com,alice,old,Example,https://example.com,2024-01-01 00:00:00,NO,DELETE\n" +
	"full_url,https://example.com,alice,mid,Example,https://example.com,2024-03-01 00:00:00,NO,archive\n"

func testServer(t *testing.T) (*Server, *journal.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := os.WriteFile(path, []byte(sampleReport), 0o600); err != nil {
		t.Fatal(err)
	}
	db := testutil.TestJournal(t)
	return New(planservice.NewService(path, db, testutil.Logger()), "test"), db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_plan":
		result, err = srv.getPlan(ctx, req)
	case "list_report_rows":
		result, err = srv.listReportRows(ctx, req)
	case "list_runs":
		result, err = srv.listRuns(ctx, req)
	case "get_run_actions":
		result, err = srv.getRunActions(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetPlan(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_plan", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("get_plan error: %s", resultText(r))
	}
	var view planservice.PlanView
	if err := json.Unmarshal([]byte(resultText(r)), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Counts.Updates != 2 || view.Counts.Archives != 1 || view.Counts.Deletes != 1 {
		t.Errorf("counts = %+v", view.Counts)
	}
	if view.Schema != "exact" {
		t.Errorf("schema = %q", view.Schema)
	}
}

func TestListReportRows(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_report_rows", map[string]interface{}{"action": "archive"})
	var rows []models.Change
	if err := json.Unmarshal([]byte(resultText(r)), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0].ItemID != "mid" {
		t.Errorf("rows = %+v", rows)
	}

	r = callTool(t, srv, "list_report_rows", map[string]interface{}{})
	rows = nil
	_ = json.Unmarshal([]byte(resultText(r)), &rows)
	if len(rows) != 3 {
		t.Errorf("unfiltered rows = %d, want 3", len(rows))
	}
}

func TestRunTools(t *testing.T) {
	srv, db := testServer(t)
	_ = db.BeginRun(journal.Run{ID: "run-1", Kind: journal.KindApply, DryRun: true})
	_ = db.RecordAction(journal.Action{RunID: "run-1", Phase: "delete", ItemID: "old", Outcome: journal.OutcomePlanned})

	r := callTool(t, srv, "list_runs", map[string]interface{}{"limit": 5})
	if !strings.Contains(resultText(r), "run-1") {
		t.Errorf("list_runs = %q", resultText(r))
	}

	r = callTool(t, srv, "get_run_actions", map[string]interface{}{"run_id": "run-1"})
	if r.IsError || !strings.Contains(resultText(r), `"item_id": "old"`) {
		t.Errorf("get_run_actions = %q", resultText(r))
	}
}

func TestGetRunActions_Errors(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "get_run_actions", map[string]interface{}{}); !r.IsError {
		t.Error("expected error without run_id")
	}
	if r := callTool(t, srv, "get_run_actions", map[string]interface{}{"run_id": "ghost"}); !r.IsError {
		t.Error("expected error for unknown run")
	}
}

func TestReportFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readReportFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != ReportFormatURI || !strings.Contains(tc.Text, "keep_or_delete") {
		t.Errorf("resource = %+v", contents[0])
	}
}
