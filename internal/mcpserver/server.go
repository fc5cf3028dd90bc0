// Package mcpserver exposes the documentation queue as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/timmy/docqueue/internal/logger"
	"github.com/timmy/docqueue/internal/service"
)

const (
	serverName    = "docqueue"
	serverVersion = "1.0.0"
)

// QueueService is the queue surface the MCP tools call.
type QueueService interface {
	service.Processor
	Enqueue(ctx context.Context, urls []string) (int, error)
	Pending(ctx context.Context) ([]string, error)
}

// Deps holds dependencies for the MCP server.
type Deps struct {
	Queue QueueService
}

// NewServer creates an MCP server with the queue tools registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions("docqueue: queue documentation URLs and ingest them into a vector collection."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("run_queue",
			mcp.WithDescription("Process queued documentation URLs and report how many were ingested, failed or remain."),
		),
		runQueue(deps),
	)

	s.AddTool(
		mcp.NewTool("add_to_queue",
			mcp.WithDescription("Append documentation URLs to the ingestion queue."),
			mcp.WithArray("urls",
				mcp.Description("Absolute http, https or file URLs"),
				mcp.Required(),
				mcp.WithStringItems(),
			),
		),
		addToQueue(deps),
	)

	s.AddTool(
		mcp.NewTool("list_queue",
			mcp.WithDescription("List the documentation URLs waiting in the queue, in processing order."),
		),
		listQueue(deps),
	)

	return s
}

func runQueue(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logger.SetComponent(ctx, "mcp")
		report := deps.Queue.Run(ctx)
		if report.IsError {
			return mcpError(report.Text), nil
		}
		return mcpText(report.Text), nil
	}
}

func addToQueue(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logger.SetComponent(ctx, "mcp")
		urls := req.GetStringSlice("urls", nil)
		if len(urls) == 0 {
			return mcpError("urls is required"), nil
		}

		added, err := deps.Queue.Enqueue(ctx, urls)
		if err != nil {
			if errors.Is(err, service.ErrInvalidURL) {
				return mcpError(err.Error()), nil
			}
			return mcpError(fmt.Sprintf("failed to enqueue: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added %d URLs to queue", added)), nil
	}
}

func listQueue(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := deps.Queue.Pending(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read queue: %v", err)), nil
		}
		if len(urls) == 0 {
			return mcpText("Queue is empty"), nil
		}
		return mcpText(fmt.Sprintf("Queued URLs (%d):\n%s", len(urls), strings.Join(urls, "\n"))), nil
	}
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
