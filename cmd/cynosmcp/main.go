// Command cynosmcp exposes engine.Database's programmatic surface
// (create_table, insert, update, delete, select, observe) as MCP tools.
// Every tool handler runs its work through a daemon.Loop so concurrent
// HTTP requests never touch the unsynchronized engine core directly —
// the same single-goroutine discipline cmd/cynosd uses.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kasuganosora/cynos/checkpoint"
	"github.com/kasuganosora/cynos/daemon"
	"github.com/kasuganosora/cynos/engine"
)

func main() {
	host := flag.String("host", "127.0.0.1", "listen host")
	port := flag.Int("port", 8089, "listen port")
	dataDir := flag.String("data-dir", "", "badger checkpoint directory to restore from at startup (optional)")
	flag.Parse()

	var db *engine.Database
	if *dataDir != "" {
		store, err := checkpoint.Open(*dataDir, false)
		if err != nil {
			log.Fatalf("cynosmcp: open checkpoint store: %v", err)
		}
		defer store.Close()
		db, err = checkpoint.Load(store)
		if err != nil {
			log.Fatalf("cynosmcp: load checkpoint: %v", err)
		}
	} else {
		db = engine.NewDatabase()
	}

	loop := daemon.NewLoop(db)
	deps := &toolDeps{loop: loop}

	mcpSrv := mcpserver.NewMCPServer(
		"cynos",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	registerTools(mcpSrv, deps)

	httpServer := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)

	addr := fmt.Sprintf("%s:%d", *host, *port)
	log.Printf("cynosmcp: listening on %s", addr)
	if err := httpServer.Start(addr); err != nil {
		log.Fatalf("cynosmcp: server error: %v", err)
	}
}

func registerTools(mcpSrv *mcpserver.MCPServer, deps *toolDeps) {
	createTableTool := mcp.NewTool("create_table",
		mcp.WithDescription("Create a table from a JSON schema description: {\"name\":str,\"columns\":[{\"name\":str,\"type\":\"int32|int64|float64|boolean|datetime|string|bytes|jsonb\",\"nullable\":bool,\"unique\":bool}],\"primary_key\":[str,...]}"),
		mcp.WithString("schema", mcp.Description("JSON schema description"), mcp.Required()),
	)
	insertTool := mcp.NewTool("insert",
		mcp.WithDescription("Insert one row into a table. values is a JSON array matching the table's column order."),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("values", mcp.Description("JSON array of column values"), mcp.Required()),
	)
	updateTool := mcp.NewTool("update",
		mcp.WithDescription("Update one row by RowId. values is a JSON array matching the table's column order."),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("row_id", mcp.Description("RowId of the row to update"), mcp.Required()),
		mcp.WithString("values", mcp.Description("JSON array of column values"), mcp.Required()),
	)
	deleteTool := mcp.NewTool("delete",
		mcp.WithDescription("Delete one row by RowId."),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("row_id", mcp.Description("RowId of the row to delete"), mcp.Required()),
	)
	selectTool := mcp.NewTool("select",
		mcp.WithDescription("Scan a table, optionally filtered by one column equality, returned as JSON rows."),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("filter_column", mcp.Description("Optional column name to filter on")),
		mcp.WithString("filter_value", mcp.Description("Optional JSON-encoded value to compare filter_column against")),
	)
	observeTool := mcp.NewTool("observe",
		mcp.WithDescription("Start a live-maintained view over a table (optionally filtered) and return its id plus the current result."),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("filter_column", mcp.Description("Optional column name to filter on")),
		mcp.WithString("filter_value", mcp.Description("Optional JSON-encoded value to compare filter_column against")),
	)
	observePollTool := mcp.NewTool("observe_poll",
		mcp.WithDescription("Drain the change-sets accumulated since the last poll for a running observe() view."),
		mcp.WithString("observation_id", mcp.Description("id returned by observe"), mcp.Required()),
	)

	mcpSrv.AddTool(createTableTool, deps.handleCreateTable)
	mcpSrv.AddTool(insertTool, deps.handleInsert)
	mcpSrv.AddTool(updateTool, deps.handleUpdate)
	mcpSrv.AddTool(deleteTool, deps.handleDelete)
	mcpSrv.AddTool(selectTool, deps.handleSelect)
	mcpSrv.AddTool(observeTool, deps.handleObserve)
	mcpSrv.AddTool(observePollTool, deps.handleObservePoll)
}
