package drive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/concordhq/concord/internal/tools"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/sheets/v4"
	"google.golang.org/api/slides/v1"
)

// FacadeFor resolves the per-user Facade for a tool call. Drive clients are
// constructed on demand and never shared across users (spec's
// no-shared-Drive-client invariant).
type FacadeFor func(ctx context.Context, userID string) (Facade, error)

func schema(props string, required string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"type":"object","properties":{%s},"required":[%s],"additionalProperties":false}`,
		props, required))
}

const strProp = `"type":"string"`

// nullableStrProp/nullableIntProp mark an optional argument per P4: every
// property stays listed in "required", but a caller that has nothing to
// pass sends an explicit null rather than omitting the key.
const nullableStrProp = `"type":["string","null"]`
const nullableIntProp = `"type":["integer","null"]`

// --- read-only tools -------------------------------------------------

type searchTool struct{ facadeFor FacadeFor }

func (t *searchTool) Name() string        { return "search_drive_files" }
func (t *searchTool) Description() string { return "Search the user's Google Drive by full-text query." }
func (t *searchTool) Writes() bool         { return false }
func (t *searchTool) Schema() json.RawMessage {
	return schema(`"query":{`+strProp+`},"limit":{`+nullableIntProp+`}`, `"query","limit"`)
}
func (t *searchTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := f.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, err
	}
	return resultJSON(entries)
}

type listTool struct{ facadeFor FacadeFor }

func (t *listTool) Name() string        { return "list_folder" }
func (t *listTool) Description() string { return "List the direct children of a Drive folder." }
func (t *listTool) Writes() bool        { return false }
func (t *listTool) Schema() json.RawMessage {
	return schema(`"folder_id":{`+strProp+`}`, `"folder_id"`)
}
func (t *listTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FolderID string `json:"folder_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := f.List(ctx, in.FolderID)
	if err != nil {
		return nil, err
	}
	return resultJSON(entries)
}

type findFolderTool struct{ facadeFor FacadeFor }

func (t *findFolderTool) Name() string        { return "find_folder_by_name" }
func (t *findFolderTool) Description() string { return "Find a folder by name, optionally under a parent." }
func (t *findFolderTool) Writes() bool        { return false }
func (t *findFolderTool) Schema() json.RawMessage {
	return schema(`"name":{`+strProp+`},"parent_id":{`+nullableStrProp+`}`, `"name","parent_id"`)
}
func (t *findFolderTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		Name     string `json:"name"`
		ParentID string `json:"parent_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry, err := f.FindFolder(ctx, in.Name, in.ParentID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &tools.ToolResult{Content: "no matching folder found"}, nil
	}
	return resultJSON(entry)
}

type getPathTool struct{ facadeFor FacadeFor }

func (t *getPathTool) Name() string        { return "get_file_path" }
func (t *getPathTool) Description() string { return "Resolve a file's full path from Drive root." }
func (t *getPathTool) Writes() bool        { return false }
func (t *getPathTool) Schema() json.RawMessage {
	return schema(`"file_id":{`+strProp+`}`, `"file_id"`)
}
func (t *getPathTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	path, err := f.GetPath(ctx, in.FileID)
	if err != nil {
		return nil, err
	}
	return &tools.ToolResult{Content: path}, nil
}

type listWithPathsTool struct{ facadeFor FacadeFor }

func (t *listWithPathsTool) Name() string { return "list_files_with_paths" }
func (t *listWithPathsTool) Description() string {
	return "List a folder's children with each entry's resolved path."
}
func (t *listWithPathsTool) Writes() bool { return false }
func (t *listWithPathsTool) Schema() json.RawMessage {
	return schema(`"folder_id":{`+strProp+`}`, `"folder_id"`)
}
func (t *listWithPathsTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FolderID string `json:"folder_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := f.ListWithPaths(ctx, in.FolderID)
	if err != nil {
		return nil, err
	}
	return resultJSON(entries)
}

type readDocTool struct{ facadeFor FacadeFor }

func (t *readDocTool) Name() string        { return "read_doc" }
func (t *readDocTool) Description() string { return "Read the text content of a Google Doc." }
func (t *readDocTool) Writes() bool        { return false }
func (t *readDocTool) Schema() json.RawMessage {
	return schema(`"file_id":{`+strProp+`}`, `"file_id"`)
}
func (t *readDocTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	text, err := f.ReadDoc(ctx, in.FileID)
	if err != nil {
		return nil, err
	}
	return &tools.ToolResult{Content: text}, nil
}

type readSheetTool struct{ facadeFor FacadeFor }

func (t *readSheetTool) Name() string        { return "read_sheet" }
func (t *readSheetTool) Description() string { return "Read a range of cells from a Google Sheet." }
func (t *readSheetTool) Writes() bool        { return false }
func (t *readSheetTool) Schema() json.RawMessage {
	return schema(`"file_id":{`+strProp+`},"range":{`+strProp+`}`, `"file_id","range"`)
}
func (t *readSheetTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FileID string `json:"file_id"`
		Range  string `json:"range"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	values, err := f.ReadSheet(ctx, in.FileID, in.Range)
	if err != nil {
		return nil, err
	}
	return resultJSON(values)
}

type readSlideTool struct{ facadeFor FacadeFor }

func (t *readSlideTool) Name() string        { return "read_slide" }
func (t *readSlideTool) Description() string { return "Read the text content of a Google Slides presentation." }
func (t *readSlideTool) Writes() bool        { return false }
func (t *readSlideTool) Schema() json.RawMessage {
	return schema(`"file_id":{`+strProp+`}`, `"file_id"`)
}
func (t *readSlideTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	text, err := f.ReadSlide(ctx, in.FileID)
	if err != nil {
		return nil, err
	}
	return &tools.ToolResult{Content: text}, nil
}

// --- write tools (registered ungated; ApprovalGate can wrap them) ------

type editDocTool struct{ facadeFor FacadeFor }

func (t *editDocTool) Name() string        { return "edit_doc" }
func (t *editDocTool) Description() string { return "Apply a batch of edit requests to a Google Doc." }
func (t *editDocTool) Writes() bool        { return true }
func (t *editDocTool) Schema() json.RawMessage {
	return schema(`"file_id":{`+strProp+`},"requests":{"type":"array","items":{"type":"object"}}`, `"file_id","requests"`)
}
func (t *editDocTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FileID   string          `json:"file_id"`
		Requests json.RawMessage `json:"requests"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	var requests []*docs.Request
	if err := json.Unmarshal(in.Requests, &requests); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := f.EditDoc(ctx, in.FileID, requests); err != nil {
		return nil, err
	}
	return &tools.ToolResult{Content: "doc updated"}, nil
}

type editSheetTool struct{ facadeFor FacadeFor }

func (t *editSheetTool) Name() string        { return "edit_sheet" }
func (t *editSheetTool) Description() string { return "Write values into a Google Sheet range." }
func (t *editSheetTool) Writes() bool        { return true }
func (t *editSheetTool) Schema() json.RawMessage {
	return schema(`"file_id":{`+strProp+`},"range":{`+strProp+`},"values":{"type":"array","items":{"type":"array"}}`, `"file_id","range","values"`)
}
func (t *editSheetTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FileID string  `json:"file_id"`
		Range  string  `json:"range"`
		Values [][]any `json:"values"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := f.EditSheet(ctx, in.FileID, &sheets.ValueRange{Values: in.Values}, in.Range); err != nil {
		return nil, err
	}
	return &tools.ToolResult{Content: "sheet updated"}, nil
}

type createDocTool struct{ facadeFor FacadeFor }

func (t *createDocTool) Name() string        { return "create_doc" }
func (t *createDocTool) Description() string { return "Create a new Google Doc." }
func (t *createDocTool) Writes() bool        { return true }
func (t *createDocTool) Schema() json.RawMessage {
	return schema(`"title":{`+strProp+`},"parent_id":{`+nullableStrProp+`}`, `"title","parent_id"`)
}
func (t *createDocTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		Title    string `json:"title"`
		ParentID string `json:"parent_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry, err := f.CreateDoc(ctx, in.Title, in.ParentID)
	if err != nil {
		return nil, err
	}
	return resultJSON(entry)
}

type createSheetTool struct{ facadeFor FacadeFor }

func (t *createSheetTool) Name() string        { return "create_sheet" }
func (t *createSheetTool) Description() string { return "Create a new Google Sheet." }
func (t *createSheetTool) Writes() bool        { return true }
func (t *createSheetTool) Schema() json.RawMessage {
	return schema(`"title":{`+strProp+`},"parent_id":{`+nullableStrProp+`}`, `"title","parent_id"`)
}
func (t *createSheetTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		Title    string `json:"title"`
		ParentID string `json:"parent_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry, err := f.CreateSheet(ctx, in.Title, in.ParentID)
	if err != nil {
		return nil, err
	}
	return resultJSON(entry)
}

type createSlideTool struct{ facadeFor FacadeFor }

func (t *createSlideTool) Name() string        { return "create_slide" }
func (t *createSlideTool) Description() string { return "Create a new Google Slides presentation." }
func (t *createSlideTool) Writes() bool        { return true }
func (t *createSlideTool) Schema() json.RawMessage {
	return schema(`"title":{`+strProp+`},"parent_id":{`+nullableStrProp+`}`, `"title","parent_id"`)
}
func (t *createSlideTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		Title    string `json:"title"`
		ParentID string `json:"parent_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry, err := f.CreateSlide(ctx, in.Title, in.ParentID)
	if err != nil {
		return nil, err
	}
	return resultJSON(entry)
}

type addSlideTool struct{ facadeFor FacadeFor }

func (t *addSlideTool) Name() string        { return "add_slide" }
func (t *addSlideTool) Description() string { return "Append a slide to a presentation via batch update requests." }
func (t *addSlideTool) Writes() bool        { return true }
func (t *addSlideTool) Schema() json.RawMessage {
	return schema(`"presentation_id":{`+strProp+`},"requests":{"type":"array","items":{"type":"object"}}`, `"presentation_id","requests"`)
}
func (t *addSlideTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		PresentationID string          `json:"presentation_id"`
		Requests       json.RawMessage `json:"requests"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	var requests []*slides.Request
	if err := json.Unmarshal(in.Requests, &requests); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := f.AddSlide(ctx, in.PresentationID, requests); err != nil {
		return nil, err
	}
	return &tools.ToolResult{Content: "slide added"}, nil
}

type copyTool struct{ facadeFor FacadeFor }

func (t *copyTool) Name() string        { return "copy_file" }
func (t *copyTool) Description() string { return "Copy a Drive file to a new name and optional destination folder." }
func (t *copyTool) Writes() bool        { return true }
func (t *copyTool) Schema() json.RawMessage {
	return schema(`"file_id":{`+strProp+`},"new_name":{`+strProp+`},"dest_parent_id":{`+nullableStrProp+`}`, `"file_id","new_name","dest_parent_id"`)
}
func (t *copyTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FileID       string `json:"file_id"`
		NewName      string `json:"new_name"`
		DestParentID string `json:"dest_parent_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry, err := f.Copy(ctx, in.FileID, in.NewName, in.DestParentID)
	if err != nil {
		return nil, err
	}
	return resultJSON(entry)
}

type moveTool struct{ facadeFor FacadeFor }

func (t *moveTool) Name() string        { return "move_file" }
func (t *moveTool) Description() string { return "Move a Drive file to a new parent folder." }
func (t *moveTool) Writes() bool        { return true }
func (t *moveTool) Schema() json.RawMessage {
	return schema(`"file_id":{`+strProp+`},"new_parent_id":{`+strProp+`}`, `"file_id","new_parent_id"`)
}
func (t *moveTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FileID      string `json:"file_id"`
		NewParentID string `json:"new_parent_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := f.Move(ctx, in.FileID, in.NewParentID); err != nil {
		return nil, err
	}
	return &tools.ToolResult{Content: "moved"}, nil
}

type deleteTool struct{ facadeFor FacadeFor }

func (t *deleteTool) Name() string        { return "delete_file" }
func (t *deleteTool) Description() string { return "Move a Drive file to trash (soft delete)." }
func (t *deleteTool) Writes() bool        { return true }
func (t *deleteTool) Schema() json.RawMessage {
	return schema(`"file_id":{`+strProp+`}`, `"file_id"`)
}
func (t *deleteTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	var in struct {
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	f, err := t.facadeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := f.Delete(ctx, in.FileID); err != nil {
		return nil, err
	}
	return &tools.ToolResult{Content: "trashed"}, nil
}

// RegisterAll registers all 17 Drive tools against reg, resolving each
// call's Facade through facadeFor.
func RegisterAll(reg *tools.Registry, facadeFor FacadeFor) error {
	all := []tools.Tool{
		&searchTool{facadeFor}, &listTool{facadeFor}, &findFolderTool{facadeFor},
		&getPathTool{facadeFor}, &listWithPathsTool{facadeFor},
		&readDocTool{facadeFor}, &readSheetTool{facadeFor}, &readSlideTool{facadeFor},
		&editDocTool{facadeFor}, &editSheetTool{facadeFor},
		&createDocTool{facadeFor}, &createSheetTool{facadeFor}, &createSlideTool{facadeFor}, &addSlideTool{facadeFor},
		&copyTool{facadeFor}, &moveTool{facadeFor}, &deleteTool{facadeFor},
	}
	for _, t := range all {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("registering %s: %w", t.Name(), err)
		}
	}
	return nil
}

func resultJSON(v any) (*tools.ToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &tools.ToolResult{Content: string(b)}, nil
}
