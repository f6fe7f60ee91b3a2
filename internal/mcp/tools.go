package mcp

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/pipeline"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source"
)

const defaultDateFormat = "DAILY"

// --- Tool definitions ---

var toolConvert = mcp.NewTool("convert",
	mcp.WithDescription("Convert a Fitbit export into OSCAR-importable files: a Dreem sleep CSV and Viatom pulse-oximeter binaries, written into the output directory."),
	mcp.WithString("source", mcp.Required(), mcp.Description("Export format: takeout or health_sync")),
	mcp.WithString("input", mcp.Required(), mcp.Description("Path to the export directory")),
	mcp.WithString("output", mcp.Required(), mcp.Description("Directory to write the OSCAR files into")),
	mcp.WithString("start", mcp.Description("Earliest date to convert (YYYY-M-D). Defaults to everything.")),
	mcp.WithString("end", mcp.Description("Latest date to convert (YYYY-M-D). Defaults to today.")),
	mcp.WithString("date_format", mcp.Description("Health Sync filename granularity. Defaults to DAILY."), mcp.Enum("DAILY", "WEEKLY", "MONTHLY")),
	mcp.WithBoolean("force", mcp.Description("Reconvert files the ledger has already seen unchanged")),
)

var toolListSources = mcp.NewTool("list_sources",
	mcp.WithDescription("List the export formats the converter reads and the data kinds each provides."),
)

var toolInspectExport = mcp.NewTool("inspect_export",
	mcp.WithDescription("Locate and count an export's files and records per data kind without converting anything."),
	mcp.WithString("source", mcp.Required(), mcp.Description("Export format: takeout or health_sync")),
	mcp.WithString("input", mcp.Required(), mcp.Description("Path to the export directory")),
	mcp.WithString("date_format", mcp.Description("Health Sync filename granularity. Defaults to DAILY."), mcp.Enum("DAILY", "WEEKLY", "MONTHLY")),
)

var toolListRuns = mcp.NewTool("list_runs",
	mcp.WithDescription("Show recent conversion runs from the ledger, newest first."),
	mcp.WithNumber("limit", mcp.Description("Maximum runs to return. Defaults to 20.")),
)

// --- Tool handlers ---

func (h *handlers) convert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source parameter is required"), nil
	}
	input, err := req.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError("input parameter is required"), nil
	}
	output, err := req.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError("output parameter is required"), nil
	}

	start, end, err := pipeline.Window(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	handler, err := h.handlerFor(src, req.GetString("date_format", defaultDateFormat))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stats, err := pipeline.New(handler, h.ledger, h.log).Run(ctx, pipeline.Options{
		InputRoot: input,
		OutputDir: output,
		Start:     start,
		End:       end,
		Force:     req.GetBool("force", false),
	})
	if err != nil {
		h.log.Error("mcp convert", "source", src, "error", err)
		return mcp.NewToolResultError("conversion failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := h.sourceInfos()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := mcp.NewToolResultJSON(infos)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// kindReport is one data kind's portion of an inspection.
type kindReport struct {
	Kind    string `json:"kind"`
	Files   int    `json:"files"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

func (h *handlers) inspectExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source parameter is required"), nil
	}
	input, err := req.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError("input parameter is required"), nil
	}
	handler, err := h.handlerFor(src, req.GetString("date_format", defaultDateFormat))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var reports []kindReport
	for _, kind := range models.Kinds() {
		if _, ok := handler.Schema().Kinds[kind]; !ok {
			continue
		}
		report := kindReport{Kind: string(kind)}
		files, err := handler.Locate(input, kind)
		if err != nil {
			report.Error = err.Error()
			reports = append(reports, report)
			continue
		}
		report.Files = len(files)
		for _, f := range files {
			records, err := handler.Extract(f, kind)
			if err != nil {
				report.Error = err.Error()
				break
			}
			report.Records += len(records)
		}
		reports = append(reports, report)
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"source":   handler.Name(),
		"timezone": handler.Timezone(input).String(),
		"kinds":    reports,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.ledger == nil {
		return mcp.NewToolResultError("the run ledger is disabled"), nil
	}
	runs, err := h.ledger.ListRuns(ctx, req.GetInt("limit", 0))
	if err != nil {
		h.log.Error("mcp list_runs", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	result, err := mcp.NewToolResultJSON(runs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// handlerFor resolves one source handler through a fresh registry.
func (h *handlers) handlerFor(src, dateFormat string) (source.Handler, error) {
	reg, err := h.newRegistry(dateFormat)
	if err != nil {
		return nil, err
	}
	return reg.Get(src)
}

// sourceInfo describes one handler for tool and resource output.
type sourceInfo struct {
	Name  string   `json:"name"`
	Kinds []string `json:"kinds"`
}

func (h *handlers) sourceInfos() ([]sourceInfo, error) {
	reg, err := h.newRegistry(defaultDateFormat)
	if err != nil {
		return nil, err
	}
	names := reg.Names()
	infos := make([]sourceInfo, 0, len(names))
	for _, name := range names {
		handler, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		kinds := make([]string, 0, len(handler.Schema().Kinds))
		for kind := range handler.Schema().Kinds {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)
		infos = append(infos, sourceInfo{Name: name, Kinds: kinds})
	}
	return infos, nil
}
