package api

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/buonappetort/rex/internal/model"
	"github.com/buonappetort/rex/internal/query"
	"github.com/buonappetort/rex/internal/service"
)

// NewMCPServer creates an MCP server exposing the rex collection as tools.
func NewMCPServer(svc *service.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"rex",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("rex: a personal collection of recommendations. Add items, list them per owner, and search by keyword."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_rex",
			mcp.WithDescription("Add a recommendation to the collection. Product links on known marketplaces are enriched with page metadata."),
			mcp.WithString("ownerId", mcp.Required(), mcp.Description("Owner of the item")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
			mcp.WithString("category", mcp.Required(), mcp.Description("Item category, e.g. Book or Restaurant")),
			mcp.WithString("description", mcp.Description("Free-text description")),
			mcp.WithString("mediaUrl", mcp.Description("Link to the item, e.g. a product page")),
			mcp.WithArray("tags", mcp.Description("Optional tags")),
		),
		mcpAddRex(svc),
	)

	s.AddTool(
		mcp.NewTool("search_rex",
			mcp.WithDescription("Keyword search over title, description, category and tags."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
			mcp.WithString("ownerId", mcp.Description("Restrict the search to one owner")),
			mcp.WithBoolean("useLLM", mcp.Description("Extract keywords with the configured language model (default true)")),
		),
		mcpSearchRex(svc),
	)

	s.AddTool(
		mcp.NewTool("list_rex",
			mcp.WithDescription("List items ordered by creation time."),
			mcp.WithString("ownerId", mcp.Description("Restrict the listing to one owner")),
			mcp.WithString("order", mcp.Description("asc (default) or desc")),
			mcp.WithNumber("page", mcp.Description("1-based page number; requires limit")),
			mcp.WithNumber("limit", mcp.Description("Page size; requires page")),
		),
		mcpListRex(svc),
	)

	s.AddTool(
		mcp.NewTool("get_rex",
			mcp.WithDescription("Fetch one item by id."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		),
		mcpGetRex(svc),
	)

	s.AddTool(
		mcp.NewTool("seed_rex",
			mcp.WithDescription("Add the starter catalog for an owner. Titles the owner already has are skipped."),
			mcp.WithString("ownerId", mcp.Required(), mcp.Description("Owner to seed")),
		),
		mcpSeedRex(svc),
	)

	return s
}

func mcpAddRex(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c := model.Candidate{
			OwnerID:     req.GetString("ownerId", ""),
			Title:       req.GetString("title", ""),
			Category:    req.GetString("category", ""),
			Description: req.GetString("description", ""),
			MediaURL:    req.GetString("mediaUrl", ""),
			Tags:        req.GetStringSlice("tags", nil),
		}
		item, err := svc.Create(ctx, c)
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(item)
	}
}

func mcpSearchRex(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		res, err := svc.Search(ctx, service.SearchRequest{
			Query:       q,
			OwnerID:     req.GetString("ownerId", ""),
			UseExternal: req.GetBool("useLLM", true),
		})
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(res)
	}
}

func mcpListRex(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		page, err := svc.List(ctx, query.Params{
			OwnerID: req.GetString("ownerId", ""),
			Order:   query.ParseOrder(req.GetString("order", "")),
			Page:    req.GetInt("page", 0),
			Limit:   req.GetInt("limit", 0),
		})
		if err != nil {
			return mcpFailure(err), nil
		}
		if !page.Paginated {
			if page.Items == nil {
				page.Items = []model.Item{}
			}
			return mcpJSON(page.Items)
		}
		return mcpJSON(page)
	}
}

func mcpGetRex(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		item, err := svc.Get(ctx, id)
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpJSON(item)
	}
}

func mcpSeedRex(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		owner := req.GetString("ownerId", "")
		n, err := svc.Seed(ctx, owner)
		if err != nil {
			return mcpFailure(err), nil
		}
		return mcpText(fmt.Sprintf("Seeded %d items for %s.", n, owner)), nil
	}
}

func mcpFailure(err error) *mcp.CallToolResult {
	switch model.Classify(err) {
	case model.KindBadInput:
		return mcpError(err.Error())
	case model.KindNotFound:
		return mcpError("not found")
	default:
		return mcpError(fmt.Sprintf("internal error: %v", err))
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcpText(string(data)), nil
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
