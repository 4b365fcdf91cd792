package mcp

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"bsod-cli/internal/bugcheck"
	"bsod-cli/internal/config"
	"bsod-cli/internal/driver"
	"bsod-cli/internal/engine"
	"bsod-cli/internal/storage"
)

func newAnalyzer() *engine.Analyzer {
	registry := driver.NewRegistry()
	if cfg, err := config.Load(); err == nil {
		if _, err := os.Stat(cfg.KnownDriversPath); err == nil {
			_ = registry.LoadFile(cfg.KnownDriversPath)
		}
	}
	return engine.New(registry)
}

func registerAnalyzeDumpTool(s *server.MCPServer) {
	tool := mcp.NewTool("analyze_dump",
		mcp.WithDescription("Analyze a Windows crash dump file (minidump, kernel dump, or full memory dump) and return the diagnosis: bugcheck, suspect driver, cause, confidence."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Filesystem path to the .dmp file"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Persist the result to crash history (default: false)"),
		),
	)

	s.AddTool(tool, analyzeDumpHandler)
}

func analyzeDumpHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	path, _ := args["path"].(string)
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	result, err := newAnalyzer().AnalyzeFile(path)
	if err != nil {
		return mcp.NewToolResultError("analysis failed: " + err.Error()), nil
	}

	if save, _ := args["save"].(bool); save {
		db, err := storage.InitDB()
		if err != nil {
			return mcp.NewToolResultError("failed to open database: " + err.Error()), nil
		}
		defer db.Close()
		if _, err := storage.SaveAnalysis(db, result); err != nil {
			return mcp.NewToolResultError("failed to save analysis: " + err.Error()), nil
		}
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func registerQueryHistoryTool(s *server.MCPServer) {
	tool := mcp.NewTool("query_crash_history",
		mcp.WithDescription("List previously analyzed crashes, newest first, with bugcheck, suspect driver, and confidence."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records to return (default: 20)"),
		),
		mcp.WithNumber("days",
			mcp.Description("Only include analyses from the last N days"),
		),
		mcp.WithString("driver",
			mcp.Description("Filter by suspected driver name substring (e.g. 'nvlddmkm')"),
		),
	)

	s.AddTool(tool, queryHistoryHandler)
}

func queryHistoryHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	opts := storage.QueryOpts{Limit: 20}
	if l, ok := args["limit"].(float64); ok && l > 0 {
		opts.Limit = int(l)
	}
	if d, ok := args["days"].(float64); ok && d > 0 {
		opts.Since = time.Duration(d) * 24 * time.Hour
	}
	if drv, ok := args["driver"].(string); ok {
		opts.Driver = drv
	}

	db, err := storage.InitDB()
	if err != nil {
		return mcp.NewToolResultError("failed to open database: " + err.Error()), nil
	}
	defer db.Close()

	records, err := storage.RecentCrashes(db, opts)
	if err != nil {
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func registerLookupBugcheckTool(s *server.MCPServer) {
	tool := mcp.NewTool("lookup_bugcheck",
		mcp.WithDescription("Look up a Windows bugcheck (stop) code: name, description, common causes, and remediation steps."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("The bugcheck code, hex or decimal (e.g. '0x3B', 'D1', '59')"),
		),
	)

	s.AddTool(tool, lookupBugcheckHandler)
}

func lookupBugcheckHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	codeStr, _ := req.GetArguments()["code"].(string)
	code, err := bugcheck.ParseCode(codeStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, _ := json.MarshalIndent(bugcheck.Lookup(code), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func registerCrashPatternsTool(s *server.MCPServer) {
	tool := mcp.NewTool("crash_patterns",
		mcp.WithDescription("Aggregate crash history into frequency tables: recurring suspect drivers and bugcheck codes."),
		mcp.WithNumber("days",
			mcp.Description("Aggregation window in days (default: 30)"),
		),
	)

	s.AddTool(tool, crashPatternsHandler)
}

func crashPatternsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := 30.0
	if d, ok := req.GetArguments()["days"].(float64); ok && d > 0 {
		days = d
	}

	db, err := storage.InitDB()
	if err != nil {
		return mcp.NewToolResultError("failed to open database: " + err.Error()), nil
	}
	defer db.Close()

	records, err := storage.RecentCrashes(db, storage.QueryOpts{})
	if err != nil {
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	entries := make([]engine.HistoryEntry, len(records))
	for i, r := range records {
		entries[i] = r.HistoryEntry()
	}
	report := engine.AggregatePatterns(entries, time.Duration(days)*24*time.Hour, time.Now())

	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
