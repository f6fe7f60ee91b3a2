package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) sources(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	infos, err := h.sourceInfos()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(infos)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
