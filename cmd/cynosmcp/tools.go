package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kasuganosora/cynos/daemon"
	"github.com/kasuganosora/cynos/engine"
	"github.com/kasuganosora/cynos/planner"
	"github.com/kasuganosora/cynos/reactive"
	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

// toolDeps holds the shared daemon.Loop every tool handler submits its
// work through, and the set of live observations started via observe.
type toolDeps struct {
	loop *daemon.Loop

	mu           sync.Mutex
	observations map[string]*observation
}

type observation struct {
	query   *reactive.ObservableQuery
	subID   reactive.SubscriptionId
	pending []reactive.ChangeSet
}

func (d *toolDeps) run(ctx context.Context, fn func(*engine.Database) (any, error)) (any, error) {
	return d.loop.Submit(ctx, fn)
}

type columnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Unique   bool   `json:"unique"`
}

type tableSpec struct {
	Name       string       `json:"name"`
	Columns    []columnSpec `json:"columns"`
	PrimaryKey []string     `json:"primary_key"`
}

func parseDataType(s string) (value.DataType, bool) {
	switch s {
	case "boolean":
		return value.TypeBoolean, true
	case "int32":
		return value.TypeInt32, true
	case "int64":
		return value.TypeInt64, true
	case "float64":
		return value.TypeFloat64, true
	case "datetime":
		return value.TypeDateTime, true
	case "string":
		return value.TypeString, true
	case "bytes":
		return value.TypeBytes, true
	case "jsonb":
		return value.TypeJsonb, true
	default:
		return value.TypeNull, false
	}
}

func (d *toolDeps) handleCreateTable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := request.GetString("schema", "")
	if raw == "" {
		return mcp.NewToolResultError("schema parameter is required"), nil
	}
	var spec tableSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid schema JSON: %v", err)), nil
	}
	if spec.Name == "" {
		return mcp.NewToolResultError("schema.name is required"), nil
	}

	b := schema.NewBuilder(spec.Name)
	for _, c := range spec.Columns {
		dt, ok := parseDataType(c.Type)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown column type %q", c.Type)), nil
		}
		b = b.AddColumn(c.Name, dt).Nullable(c.Nullable)
		if c.Unique {
			b = b.Unique()
		}
	}
	if len(spec.PrimaryKey) > 0 {
		b = b.AddPrimaryKey(spec.PrimaryKey, false)
	}
	t, err := b.Build()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid schema: %v", err)), nil
	}

	_, err = d.run(ctx, func(db *engine.Database) (any, error) {
		return nil, db.CreateTable(t)
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create_table failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("table %q created", spec.Name)), nil
}

// rowValues decodes a JSON array of scalars into a *value.Row shaped by
// table's column types, in declared order.
func rowValues(t schema.Table, raw string) (*value.Row, error) {
	var jsonVals []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &jsonVals); err != nil {
		return nil, fmt.Errorf("invalid values JSON: %w", err)
	}
	if len(jsonVals) != len(t.Columns) {
		return nil, fmt.Errorf("expected %d values, got %d", len(t.Columns), len(jsonVals))
	}
	vals := make([]value.Value, len(t.Columns))
	for i, col := range t.Columns {
		v, err := jsonToValue(col.DataType, jsonVals[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		vals[i] = v
	}
	return value.NewRow(value.DummyRowID, vals), nil
}

func jsonToValue(dt value.DataType, raw json.RawMessage) (value.Value, error) {
	if string(raw) == "null" {
		return value.Null(), nil
	}
	switch dt {
	case value.TypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return value.Value{}, err
		}
		return value.Bool(b), nil
	case value.TypeInt32:
		var n int32
		if err := json.Unmarshal(raw, &n); err != nil {
			return value.Value{}, err
		}
		return value.Int32(n), nil
	case value.TypeInt64:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return value.Value{}, err
		}
		return value.Int64(n), nil
	case value.TypeDateTime:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return value.Value{}, err
		}
		return value.DateTime(n), nil
	case value.TypeFloat64:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return value.Value{}, err
		}
		return value.Float64(f), nil
	case value.TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return value.Value{}, err
		}
		return value.String(s), nil
	case value.TypeBytes:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return value.Value{}, err
		}
		return value.Bytes([]byte(s)), nil
	case value.TypeJsonb:
		return value.Jsonb(append([]byte(nil), raw...)), nil
	default:
		return value.Value{}, fmt.Errorf("unsupported column type %v", dt)
	}
}

func valueToJSON(v value.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.DataType() {
	case value.TypeBoolean:
		return v.AsBool()
	case value.TypeInt32:
		return v.AsInt32()
	case value.TypeInt64:
		return v.AsInt64()
	case value.TypeDateTime:
		return v.AsDateTime()
	case value.TypeFloat64:
		return v.AsFloat64()
	case value.TypeString:
		return v.AsString()
	case value.TypeJsonb:
		return json.RawMessage(v.AsJsonb())
	default:
		return string(v.AsBytes())
	}
}

func rowToJSON(t schema.Table, row *value.Row) map[string]any {
	out := make(map[string]any, len(t.Columns)+1)
	out["row_id"] = row.ID
	for i, col := range t.Columns {
		out[col.Name] = valueToJSON(row.Get(i))
	}
	return out
}

func (d *toolDeps) handleInsert(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := request.GetString("table", "")
	valuesRaw := request.GetString("values", "")
	if table == "" || valuesRaw == "" {
		return mcp.NewToolResultError("table and values parameters are required"), nil
	}

	result, err := d.run(ctx, func(db *engine.Database) (any, error) {
		t, ok := db.TableSchema(table)
		if !ok {
			return nil, fmt.Errorf("unknown table %q", table)
		}
		row, err := rowValues(t, valuesRaw)
		if err != nil {
			return nil, err
		}
		tx := db.BeginTransaction()
		inserted, err := tx.Insert(table, row)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return rowToJSON(t, inserted), nil
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("insert failed: %v", err)), nil
	}
	out, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(out)), nil
}

func (d *toolDeps) handleUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := request.GetString("table", "")
	rowIDRaw := request.GetString("row_id", "")
	valuesRaw := request.GetString("values", "")
	if table == "" || rowIDRaw == "" || valuesRaw == "" {
		return mcp.NewToolResultError("table, row_id, and values parameters are required"), nil
	}
	rowID, err := strconv.ParseUint(rowIDRaw, 10, 64)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid row_id: %v", err)), nil
	}

	_, err = d.run(ctx, func(db *engine.Database) (any, error) {
		t, ok := db.TableSchema(table)
		if !ok {
			return nil, fmt.Errorf("unknown table %q", table)
		}
		row, err := rowValues(t, valuesRaw)
		if err != nil {
			return nil, err
		}
		tx := db.BeginTransaction()
		if err := tx.Update(table, value.RowId(rowID), row); err != nil {
			tx.Rollback()
			return nil, err
		}
		return nil, tx.Commit()
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("update failed: %v", err)), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func (d *toolDeps) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := request.GetString("table", "")
	rowIDRaw := request.GetString("row_id", "")
	if table == "" || rowIDRaw == "" {
		return mcp.NewToolResultError("table and row_id parameters are required"), nil
	}
	rowID, err := strconv.ParseUint(rowIDRaw, 10, 64)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid row_id: %v", err)), nil
	}

	_, err = d.run(ctx, func(db *engine.Database) (any, error) {
		tx := db.BeginTransaction()
		if err := tx.Delete(table, value.RowId(rowID)); err != nil {
			tx.Rollback()
			return nil, err
		}
		return nil, tx.Commit()
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

// buildScanPlan builds Scan(table), optionally wrapped in an equality
// Filter against filterColumn, resolving its position from the table's
// schema so the executor can read it by PositionHint.
func buildScanPlan(t schema.Table, filterColumn, filterValueRaw string) (*planner.LogicalPlan, error) {
	scan := planner.Scan(t.Name)
	if filterColumn == "" {
		return scan, nil
	}
	col, idx := t.GetColumn(filterColumn)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q", filterColumn)
	}
	lit, err := jsonToValue(col.DataType, json.RawMessage(filterValueRaw))
	if err != nil {
		return nil, fmt.Errorf("filter_value: %w", err)
	}
	pred := planner.Binary(planner.OpEq, planner.ColumnAt(idx), planner.Literal(lit))
	return planner.NewFilter(scan, pred), nil
}

func (d *toolDeps) handleSelect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := request.GetString("table", "")
	filterColumn := request.GetString("filter_column", "")
	filterValue := request.GetString("filter_value", "")
	if table == "" {
		return mcp.NewToolResultError("table parameter is required"), nil
	}

	result, err := d.run(ctx, func(db *engine.Database) (any, error) {
		t, ok := db.TableSchema(table)
		if !ok {
			return nil, fmt.Errorf("unknown table %q", table)
		}
		plan, err := buildScanPlan(t, filterColumn, filterValue)
		if err != nil {
			return nil, err
		}
		rel, err := db.Select(plan)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, len(rel.Entries))
		for i, e := range rel.Entries {
			rows[i] = rowToJSON(t, e.Row)
		}
		return rows, nil
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("select failed: %v", err)), nil
	}
	out, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(out)), nil
}

func (d *toolDeps) handleObserve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := request.GetString("table", "")
	filterColumn := request.GetString("filter_column", "")
	filterValue := request.GetString("filter_value", "")
	if table == "" {
		return mcp.NewToolResultError("table parameter is required"), nil
	}

	type observeResult struct {
		id     string
		schema schema.Table
		initial []*value.Row
	}

	res, err := d.run(ctx, func(db *engine.Database) (any, error) {
		t, ok := db.TableSchema(table)
		if !ok {
			return nil, fmt.Errorf("unknown table %q", table)
		}
		plan, err := buildScanPlan(t, filterColumn, filterValue)
		if err != nil {
			return nil, err
		}
		q, err := db.Observe(plan)
		if err != nil {
			return nil, err
		}

		id := uuid.NewString()
		obs := &observation{query: q}
		d.mu.Lock()
		if d.observations == nil {
			d.observations = make(map[string]*observation)
		}
		d.observations[id] = obs
		d.mu.Unlock()

		var initial []*value.Row
		obs.subID = q.Subscribe(func(cs reactive.ChangeSet) {
			d.mu.Lock()
			defer d.mu.Unlock()
			obs.pending = append(obs.pending, cs)
		})
		// Subscribe's synchronous Initial delivery landed in pending;
		// surface it directly as this call's result too.
		d.mu.Lock()
		if len(obs.pending) > 0 {
			initial = obs.pending[0].Result
			obs.pending = obs.pending[1:]
		}
		d.mu.Unlock()

		return observeResult{id: id, schema: t, initial: initial}, nil
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("observe failed: %v", err)), nil
	}
	o := res.(observeResult)
	rows := make([]map[string]any, len(o.initial))
	for i, r := range o.initial {
		rows[i] = rowToJSON(o.schema, r)
	}
	out, _ := json.Marshal(map[string]any{"observation_id": o.id, "result": rows})
	return mcp.NewToolResultText(string(out)), nil
}

func (d *toolDeps) handleObservePoll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("observation_id", "")
	if id == "" {
		return mcp.NewToolResultError("observation_id parameter is required"), nil
	}

	d.mu.Lock()
	obs, ok := d.observations[id]
	var pending []reactive.ChangeSet
	if ok {
		pending = obs.pending
		obs.pending = nil
	}
	d.mu.Unlock()
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown observation_id %q", id)), nil
	}

	changeSets := make([]map[string]any, len(pending))
	for i, cs := range pending {
		changeSets[i] = map[string]any{
			"initial":      cs.Initial,
			"added_count":  len(cs.Added),
			"removed_count": len(cs.Removed),
			"result_count": len(cs.Result),
		}
	}
	out, _ := json.Marshal(changeSets)
	return mcp.NewToolResultText(string(out)), nil
}
