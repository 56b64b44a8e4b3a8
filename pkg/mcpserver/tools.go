package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
	"github.com/oceanbase/powermem-mcp/pkg/core"
)

const (
	argQuery       = "query"
	argMemoryLevel = "memory_level"
	argRole        = "role"
	argLimit       = "limit"
	argDocID       = "doc_id"
	argDocIDs      = "doc_ids"
	argDocument    = "document"
	argMetadata    = "metadata"
	argPattern     = "pattern"
)

func levelArg() mcp.ToolOption {
	return mcp.WithString(argMemoryLevel,
		mcp.Required(),
		mcp.Description(`"global" for role collections, or a project name / "proj-" collection name`),
	)
}

func roleArg() mcp.ToolOption {
	return mcp.WithString(argRole,
		mcp.Description("Role collection used when memory_level is global (default universal)"),
		mcp.Enum(roleNames()...),
	)
}

func roleNames() []string {
	roles := collection.Roles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

func searchTool() mcp.Tool {
	return mcp.NewTool("search_memory",
		mcp.WithDescription("Semantic search returning memory previews without full content. Use get_memory for the full document."),
		mcp.WithString(argQuery, mcp.Required(), mcp.Description("What to look for")),
		levelArg(),
		roleArg(),
		mcp.WithNumber(argLimit, mcp.Description("Maximum number of previews (default 10)")),
	)
}

func getTool() mcp.Tool {
	return mcp.NewTool("get_memory",
		mcp.WithDescription("Retrieve the full content of one memory by id."),
		mcp.WithString(argDocID, mcp.Required(), mcp.Description("Memory id from search_memory")),
		levelArg(),
		roleArg(),
	)
}

func batchGetTool() mcp.Tool {
	return mcp.NewTool("batch_get_memories",
		mcp.WithDescription("Retrieve the full content of several memories in one call. Missing ids are skipped."),
		mcp.WithArray(argDocIDs, mcp.Required(), mcp.Description("Memory ids"), mcp.WithStringItems()),
		levelArg(),
		roleArg(),
	)
}

func storeTool() mcp.Tool {
	return mcp.NewTool("store_memory",
		mcp.WithDescription("Store a new memory. The document should carry **Title:**, **Description:**, **Content:** and **Tags:** lines."),
		mcp.WithString(argDocument, mcp.Required(), mcp.Description("Formatted memory document")),
		mcp.WithObject(argMetadata, mcp.Description("memory_type, role, tags, title and any extra keys")),
		levelArg(),
	)
}

func updateTool() mcp.Tool {
	return mcp.NewTool("update_memory",
		mcp.WithDescription("Replace the document of an existing memory and merge its metadata."),
		mcp.WithString(argDocID, mcp.Required(), mcp.Description("Memory id")),
		mcp.WithString(argDocument, mcp.Required(), mcp.Description("New formatted document")),
		mcp.WithObject(argMetadata, mcp.Description("Metadata merged over the stored one")),
		levelArg(),
	)
}

func deleteTool() mcp.Tool {
	return mcp.NewTool("delete_memory",
		mcp.WithDescription("Delete a memory. Deleting a missing id succeeds."),
		mcp.WithString(argDocID, mcp.Required(), mcp.Description("Memory id")),
		levelArg(),
		roleArg(),
	)
}

func listCollectionsTool() mcp.Tool {
	return mcp.NewTool("list_collections",
		mcp.WithDescription("List memory collections with their point counts."),
		mcp.WithString(argPattern, mcp.Description(`Optional glob such as "proj-*"`)),
	)
}

func consolidateTool() mcp.Tool {
	return mcp.NewTool("consolidate_memory",
		mcp.WithDescription("Store a memory, merging it into, updating, or generalizing similar existing memories when appropriate."),
		mcp.WithString(argDocument, mcp.Required(), mcp.Description("Formatted memory document")),
		mcp.WithObject(argMetadata, mcp.Description("memory_type, role, tags, title and any extra keys")),
		levelArg(),
	)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString(argQuery)
	if err != nil {
		return errorResult(err), nil
	}
	level, err := req.RequireString(argMemoryLevel)
	if err != nil {
		return errorResult(err), nil
	}

	res, err := s.client.Search(ctx, query, level,
		core.WithRole(req.GetString(argRole, string(collection.RoleUniversal))),
		core.WithLimit(req.GetInt(argLimit, core.DefaultSearchLimit)),
	)
	return s.respond("search_memory", res, err)
}

func (s *Server) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString(argDocID)
	if err != nil {
		return errorResult(err), nil
	}
	level, err := req.RequireString(argMemoryLevel)
	if err != nil {
		return errorResult(err), nil
	}

	memory, err := s.client.Get(ctx, id, level, core.WithRoleForGet(req.GetString(argRole, "")))
	return s.respond("get_memory", memory, err)
}

func (s *Server) handleBatchGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := req.RequireStringSlice(argDocIDs)
	if err != nil {
		return errorResult(err), nil
	}
	level, err := req.RequireString(argMemoryLevel)
	if err != nil {
		return errorResult(err), nil
	}

	res, err := s.client.BatchGet(ctx, ids, level, core.WithRoleForGet(req.GetString(argRole, "")))
	return s.respond("batch_get_memories", res, err)
}

func (s *Server) handleStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, level, metadata, err := writeArgs(req)
	if err != nil {
		return errorResult(err), nil
	}

	res, err := s.client.Store(ctx, doc, metadata, level)
	return s.respond("store_memory", res, err)
}

func (s *Server) handleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString(argDocID)
	if err != nil {
		return errorResult(err), nil
	}
	doc, level, metadata, err := writeArgs(req)
	if err != nil {
		return errorResult(err), nil
	}

	res, err := s.client.Update(ctx, id, doc, metadata, level)
	return s.respond("update_memory", res, err)
}

func (s *Server) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString(argDocID)
	if err != nil {
		return errorResult(err), nil
	}
	level, err := req.RequireString(argMemoryLevel)
	if err != nil {
		return errorResult(err), nil
	}

	res, err := s.client.Delete(ctx, id, level, core.WithRoleForDelete(req.GetString(argRole, "")))
	return s.respond("delete_memory", res, err)
}

func (s *Server) handleListCollections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.client.ListCollections(ctx, core.WithPattern(req.GetString(argPattern, "")))
	return s.respond("list_collections", res, err)
}

func (s *Server) handleConsolidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, level, metadata, err := writeArgs(req)
	if err != nil {
		return errorResult(err), nil
	}

	res, err := s.client.Consolidate(ctx, doc, metadata, level)
	return s.respond("consolidate_memory", res, err)
}

// writeArgs reads the document, level and metadata shared by write tools.
func writeArgs(req mcp.CallToolRequest) (string, string, core.Metadata, error) {
	var metadata core.Metadata

	doc, err := req.RequireString(argDocument)
	if err != nil {
		return "", "", metadata, err
	}
	level, err := req.RequireString(argMemoryLevel)
	if err != nil {
		return "", "", metadata, err
	}

	raw, ok := req.GetArguments()[argMetadata]
	if !ok || raw == nil {
		return doc, level, metadata, nil
	}
	if _, isObject := raw.(map[string]interface{}); !isObject {
		return "", "", metadata, fmt.Errorf("%s must be an object", argMetadata)
	}

	body, err := json.Marshal(raw)
	if err != nil {
		return "", "", metadata, fmt.Errorf("%s: %w", argMetadata, err)
	}
	if err := json.Unmarshal(body, &metadata); err != nil {
		return "", "", metadata, fmt.Errorf("%s: %w", argMetadata, err)
	}
	return doc, level, metadata, nil
}

// respond renders value as the JSON body of the tool result, or err as an
// error result.
func (s *Server) respond(tool string, value interface{}, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrInvalidInput) {
			s.obs.Log().Debug().Str("tool", tool).Err(err).Msg("tool call rejected")
		} else {
			s.obs.Log().Error().Str("tool", tool).Err(err).Msg("tool call failed")
		}
		return errorResult(err), nil
	}

	body, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	body, _ := json.Marshal(map[string]string{"error": errorMessage(err)})
	return mcp.NewToolResultError(string(body))
}

// errorMessage strips the operation prefix so clients see the cause only.
func errorMessage(err error) string {
	var memErr *core.MemoryError
	if errors.As(err, &memErr) {
		return memErr.Err.Error()
	}
	return err.Error()
}
