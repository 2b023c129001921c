// Package drive implements Concord's Google Drive tool family behind a
// Facade interface, so the tool registrations in tools.go never depend on
// the concrete Google API clients directly.
package drive

import (
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"google.golang.org/api/slides/v1"
)

// Entry is one file or folder as returned by search/list operations.
type Entry struct {
	ID       string
	Name     string
	MimeType string
	ParentID string
	Path     string // only populated by path-aware operations
}

// Facade is the narrow surface the Drive tools call through, independent
// of the concrete Google API client construction, so tools can be tested
// against a fake.
type Facade interface {
	Search(ctx context.Context, query string, limit int) ([]Entry, error)
	List(ctx context.Context, folderID string) ([]Entry, error)
	FindFolder(ctx context.Context, name, parentID string) (*Entry, error)
	GetPath(ctx context.Context, fileID string) (string, error)
	ListWithPaths(ctx context.Context, folderID string) ([]Entry, error)

	ReadDoc(ctx context.Context, fileID string) (string, error)
	ReadSheet(ctx context.Context, fileID, rangeA1 string) ([][]any, error)
	ReadSlide(ctx context.Context, fileID string) (string, error)

	EditDoc(ctx context.Context, fileID string, requests []*docs.Request) error
	EditSheet(ctx context.Context, fileID string, valueRange *sheets.ValueRange, rangeA1 string) error
	CreateDoc(ctx context.Context, title, parentID string) (*Entry, error)
	CreateSheet(ctx context.Context, title, parentID string) (*Entry, error)
	CreateSlide(ctx context.Context, title, parentID string) (*Entry, error)
	AddSlide(ctx context.Context, presentationID string, requests []*slides.Request) error

	Copy(ctx context.Context, fileID, newName, destParentID string) (*Entry, error)
	Move(ctx context.Context, fileID, newParentID string) error
	Delete(ctx context.Context, fileID string) error // soft: moves to Drive trash
}

// googleFacade is the production Facade backed by real Google API clients.
// One instance is constructed per user from that user's OAuth token; Drive
// clients are never shared across users.
type googleFacade struct {
	drive  *drive.Service
	docs   *docs.Service
	sheets *sheets.Service
	slides *slides.Service
}

// NewGoogleFacade builds a Facade scoped to a single user's OAuth token.
func NewGoogleFacade(ctx context.Context, token *oauth2.Token, tokenSource oauth2.TokenSource) (Facade, error) {
	opt := option.WithTokenSource(tokenSource)

	driveSvc, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, err
	}
	docsSvc, err := docs.NewService(ctx, opt)
	if err != nil {
		return nil, err
	}
	sheetsSvc, err := sheets.NewService(ctx, opt)
	if err != nil {
		return nil, err
	}
	slidesSvc, err := slides.NewService(ctx, opt)
	if err != nil {
		return nil, err
	}

	return &googleFacade{drive: driveSvc, docs: docsSvc, sheets: sheetsSvc, slides: slidesSvc}, nil
}

func (g *googleFacade) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "fullText contains '" + escapeQuery(query) + "' and trashed = false"
	call := g.drive.Files.List().Q(q).PageSize(int64(limit)).
		Fields("files(id, name, mimeType, parents)").Context(ctx)
	res, err := call.Do()
	if err != nil {
		return nil, err
	}
	return entriesFromFiles(res.Files), nil
}

func (g *googleFacade) List(ctx context.Context, folderID string) ([]Entry, error) {
	q := "'" + folderID + "' in parents and trashed = false"
	res, err := g.drive.Files.List().Q(q).Fields("files(id, name, mimeType, parents)").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return entriesFromFiles(res.Files), nil
}

func (g *googleFacade) FindFolder(ctx context.Context, name, parentID string) (*Entry, error) {
	q := "name = '" + escapeQuery(name) + "' and mimeType = 'application/vnd.google-apps.folder' and trashed = false"
	if parentID != "" {
		q += " and '" + parentID + "' in parents"
	}
	res, err := g.drive.Files.List().Q(q).PageSize(1).Fields("files(id, name, mimeType, parents)").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(res.Files) == 0 {
		return nil, nil
	}
	entries := entriesFromFiles(res.Files)
	return &entries[0], nil
}

func (g *googleFacade) GetPath(ctx context.Context, fileID string) (string, error) {
	var segments []string
	current := fileID
	for current != "" {
		f, err := g.drive.Files.Get(current).Fields("id, name, parents").Context(ctx).Do()
		if err != nil {
			return "", err
		}
		segments = append([]string{f.Name}, segments...)
		if len(f.Parents) == 0 {
			break
		}
		current = f.Parents[0]
	}
	path := ""
	for _, s := range segments {
		path += "/" + s
	}
	return path, nil
}

func (g *googleFacade) ListWithPaths(ctx context.Context, folderID string) ([]Entry, error) {
	entries, err := g.List(ctx, folderID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		p, err := g.GetPath(ctx, entries[i].ID)
		if err != nil {
			continue
		}
		entries[i].Path = p
	}
	return entries, nil
}

func (g *googleFacade) ReadDoc(ctx context.Context, fileID string) (string, error) {
	doc, err := g.docs.Documents.Get(fileID).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	var text string
	for _, elem := range doc.Body.Content {
		if elem.Paragraph == nil {
			continue
		}
		for _, pe := range elem.Paragraph.Elements {
			if pe.TextRun != nil {
				text += pe.TextRun.Content
			}
		}
	}
	return text, nil
}

func (g *googleFacade) ReadSheet(ctx context.Context, fileID, rangeA1 string) ([][]any, error) {
	res, err := g.sheets.Spreadsheets.Values.Get(fileID, rangeA1).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}

func (g *googleFacade) ReadSlide(ctx context.Context, fileID string) (string, error) {
	pres, err := g.slides.Presentations.Get(fileID).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	var text string
	for _, slide := range pres.Slides {
		for _, el := range slide.PageElements {
			if el.Shape == nil || el.Shape.Text == nil {
				continue
			}
			for _, te := range el.Shape.Text.TextElements {
				if te.TextRun != nil {
					text += te.TextRun.Content
				}
			}
		}
	}
	return text, nil
}

func (g *googleFacade) EditDoc(ctx context.Context, fileID string, requests []*docs.Request) error {
	_, err := g.docs.Documents.BatchUpdate(fileID, &docs.BatchUpdateDocumentRequest{Requests: requests}).Context(ctx).Do()
	return err
}

func (g *googleFacade) EditSheet(ctx context.Context, fileID string, valueRange *sheets.ValueRange, rangeA1 string) error {
	_, err := g.sheets.Spreadsheets.Values.Update(fileID, rangeA1, valueRange).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (g *googleFacade) CreateDoc(ctx context.Context, title, parentID string) (*Entry, error) {
	doc, err := g.docs.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if parentID != "" {
		if _, err := g.drive.Files.Update(doc.DocumentId, nil).AddParents(parentID).Context(ctx).Do(); err != nil {
			return nil, err
		}
	}
	return &Entry{ID: doc.DocumentId, Name: title, MimeType: "application/vnd.google-apps.document"}, nil
}

func (g *googleFacade) CreateSheet(ctx context.Context, title, parentID string) (*Entry, error) {
	sheet, err := g.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if parentID != "" {
		if _, err := g.drive.Files.Update(sheet.SpreadsheetId, nil).AddParents(parentID).Context(ctx).Do(); err != nil {
			return nil, err
		}
	}
	return &Entry{ID: sheet.SpreadsheetId, Name: title, MimeType: "application/vnd.google-apps.spreadsheet"}, nil
}

func (g *googleFacade) CreateSlide(ctx context.Context, title, parentID string) (*Entry, error) {
	pres, err := g.slides.Presentations.Create(&slides.Presentation{Title: title}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if parentID != "" {
		if _, err := g.drive.Files.Update(pres.PresentationId, nil).AddParents(parentID).Context(ctx).Do(); err != nil {
			return nil, err
		}
	}
	return &Entry{ID: pres.PresentationId, Name: title, MimeType: "application/vnd.google-apps.presentation"}, nil
}

func (g *googleFacade) AddSlide(ctx context.Context, presentationID string, requests []*slides.Request) error {
	_, err := g.slides.Presentations.BatchUpdate(presentationID, &slides.BatchUpdatePresentationRequest{Requests: requests}).Context(ctx).Do()
	return err
}

func (g *googleFacade) Copy(ctx context.Context, fileID, newName, destParentID string) (*Entry, error) {
	f := &drive.File{Name: newName}
	if destParentID != "" {
		f.Parents = []string{destParentID}
	}
	copied, err := g.drive.Files.Copy(fileID, f).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &Entry{ID: copied.Id, Name: copied.Name, MimeType: copied.MimeType}, nil
}

func (g *googleFacade) Move(ctx context.Context, fileID, newParentID string) error {
	f, err := g.drive.Files.Get(fileID).Fields("parents").Context(ctx).Do()
	if err != nil {
		return err
	}
	call := g.drive.Files.Update(fileID, nil).AddParents(newParentID).Context(ctx)
	if len(f.Parents) > 0 {
		call = call.RemoveParents(f.Parents[0])
	}
	_, err = call.Do()
	return err
}

// Delete soft-deletes fileID by moving it to the Drive trash rather than
// permanently removing it.
func (g *googleFacade) Delete(ctx context.Context, fileID string) error {
	_, err := g.drive.Files.Update(fileID, &drive.File{Trashed: true}).Context(ctx).Do()
	return err
}

func entriesFromFiles(files []*drive.File) []Entry {
	out := make([]Entry, len(files))
	for i, f := range files {
		var parent string
		if len(f.Parents) > 0 {
			parent = f.Parents[0]
		}
		out[i] = Entry{ID: f.Id, Name: f.Name, MimeType: f.MimeType, ParentID: parent}
	}
	return out
}

func escapeQuery(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\'' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
