package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/remote"
	"github.com/starford/dagaz/internal/views"
	"github.com/starford/dagaz/internal/viewservice"
)

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult reports err to the model. Validation and submission failures
// carry their user-facing message.
func errorResult(err error) (*mcp.CallToolResult, error) {
	var (
		ve *apperr.ValidationError
		se *apperr.SubmissionError
	)
	switch {
	case errors.As(err, &ve):
		return mcp.NewToolResultError(ve.Error()), nil
	case errors.As(err, &se):
		return mcp.NewToolResultError(se.Message), nil
	case errors.Is(err, apperr.ErrUnknownView):
		return mcp.NewToolResultError("unknown view; call list_views"), nil
	default:
		return mcp.NewToolResultError(err.Error()), nil
	}
}

// withSession runs fn on the locked session of the "view" argument.
func (s *Server) withSession(req mcp.CallToolRequest, fn func(*session) (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("view")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.session(views.Name(name))
	if err != nil {
		return errorResult(err)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

// show syncs the session and renders its current page.
func (s *Server) show(ctx context.Context, sess *session) (*mcp.CallToolResult, error) {
	if err := s.sync(ctx, sess); err != nil {
		return errorResult(err)
	}
	view, err := s.render(sess)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(view)
}

func (s *Server) listViews(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Views())
}

func (s *Server) queryView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(req, func(sess *session) (*mcp.CallToolResult, error) {
		return s.show(ctx, sess)
	})
}

func (s *Server) setFilter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(req, func(sess *session) (*mcp.CallToolResult, error) {
		st := sess.state
		if q, err := req.RequireString("q"); err == nil {
			st.Query = q
		}
		if field, err := req.RequireString("field"); err == nil && field != "" {
			st = st.WithCategory(field, req.GetString("value", filter.All))
		}
		if start, err := req.RequireString("start"); err == nil {
			st.StartDate = start
		}
		if end, err := req.RequireString("end"); err == nil {
			st.EndDate = end
		}
		if preset, err := req.RequireString("preset"); err == nil {
			st.Preset = filter.ParsePreset(preset)
		}
		sess.state = st
		return s.show(ctx, sess)
	})
}

func (s *Server) clearFilters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(req, func(sess *session) (*mcp.CallToolResult, error) {
		sess.state = sess.state.Clear()
		return s.show(ctx, sess)
	})
}

func (s *Server) quickFilter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(req, func(sess *session) (*mcp.CallToolResult, error) {
		if err := s.sync(ctx, sess); err != nil {
			return errorResult(err)
		}
		sess.quick = req.GetString("text", "")
		_ = sess.grid.Do(func(a *grid.Adapter) error {
			a.QuickFilter(sess.quick)
			return nil
		})
		view, err := s.render(sess)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(view)
	})
}

func (s *Server) toggleSort(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(req, func(sess *session) (*mcp.CallToolResult, error) {
		field, err := req.RequireString("field")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.sync(ctx, sess); err != nil {
			return errorResult(err)
		}
		if err := sess.grid.Do(func(a *grid.Adapter) error { return a.ToggleSort(field) }); err != nil {
			return errorResult(err)
		}
		view, err := s.render(sess)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(view)
	})
}

func (s *Server) setPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(req, func(sess *session) (*mcp.CallToolResult, error) {
		if err := s.sync(ctx, sess); err != nil {
			return errorResult(err)
		}
		page := req.GetInt("page", 0)
		size := req.GetInt("page_size", 0)
		_ = sess.grid.Do(func(a *grid.Adapter) error {
			if size > 0 {
				a.SetPageSize(size)
			}
			a.SetPage(page)
			return nil
		})
		view, err := s.render(sess)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(view)
	})
}

func (s *Server) selectRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(req, func(sess *session) (*mcp.CallToolResult, error) {
		id := req.GetString("id", "")
		if id == "" {
			sess.sel.Clear()
			return mcp.NewToolResultText("selection cleared"), nil
		}
		sess.sel.SelectID(id)
		d, err := s.svc.Record(ctx, sess.name, id)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(d)
	})
}

func (s *Server) refreshView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(req, func(sess *session) (*mcp.CallToolResult, error) {
		res, err := s.svc.Refresh(ctx, sess.name)
		if err != nil && !errors.Is(err, apperr.ErrFetch) {
			return errorResult(err)
		}
		if err != nil {
			s.log.Warn("refresh failed, keeping previous records", slog.String("view", string(sess.name)), slog.String("error", err.Error()))
		}
		if syncErr := s.sync(ctx, sess); syncErr != nil {
			return errorResult(syncErr)
		}
		return jsonResult(res)
	})
}

type exportResult struct {
	File   string `json:"file"`
	Format string `json:"format"`
	Rows   int    `json:"rows"`
	Stale  bool   `json:"stale,omitempty"`
}

func (s *Server) exportView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.sink == nil {
		return mcp.NewToolResultError("export directory is not configured"), nil
	}
	format := req.GetString("format", grid.FormatCSV)
	if format != grid.FormatCSV && format != grid.FormatXLSX {
		return mcp.NewToolResultError("format must be csv or xlsx"), nil
	}
	return s.withSession(req, func(sess *session) (*mcp.CallToolResult, error) {
		info, err := s.svc.View(sess.name)
		if err != nil {
			return errorResult(err)
		}
		if err := s.sync(ctx, sess); err != nil {
			return errorResult(err)
		}
		if snap := sess.snap; !snap.Loaded && snap.Err != nil {
			return errorResult(snap.Err)
		}

		name := grid.ExportFilename(info.Resource, format, time.Now())
		rows := 0
		err = s.sink.WriteFrom(name, func(w io.Writer) error {
			return sess.grid.Do(func(a *grid.Adapter) error {
				rows = a.Len()
				return a.Export(w, format)
			})
		})
		if err != nil {
			return errorResult(err)
		}
		s.log.Info("export written", slog.String("view", string(sess.name)), slog.String("file", name), slog.Int("rows", rows))
		return jsonResult(exportResult{File: name, Format: format, Rows: rows, Stale: sess.snap.Stale()})
	})
}

type downloadResult struct {
	File        string `json:"file"`
	Bytes       int    `json:"bytes"`
	SHA256      string `json:"sha256"`
	ContentType string `json:"contentType"`
}

func documentRef(req mcp.CallToolRequest) (remote.DocumentRef, error) {
	pid, err := req.RequireString("project_id")
	if err != nil {
		return remote.DocumentRef{}, err
	}
	uuid, err := req.RequireString("document_type_uuid")
	if err != nil {
		return remote.DocumentRef{}, err
	}
	return remote.DocumentRef{ProjectID: pid, DocumentTypeUUID: uuid}, nil
}

func (s *Server) downloadDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.sink == nil {
		return mcp.NewToolResultError("export directory is not configured"), nil
	}
	ref, err := documentRef(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dl, err := s.svc.Download(ctx, ref)
	if err != nil {
		return errorResult(err)
	}
	name := sanitizeFilename(dl.Filename)
	if err := s.sink.Write(name, dl.Data); err != nil {
		return errorResult(err)
	}
	return jsonResult(downloadResult{
		File:        name,
		Bytes:       len(dl.Data),
		SHA256:      checksum.Sum(dl.Data),
		ContentType: dl.ContentType,
	})
}

func (s *Server) returnDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := documentRef(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := viewservice.ReturnInput{
		Ref:      ref,
		Feedback: req.GetString("feedback", ""),
		FileName: req.GetString("file_name", ""),
	}
	if raw := req.GetString("document", ""); raw != "" {
		data, err := decodeDocument(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in.File = data
		if in.FileName == "" {
			in.FileName = "document.docx"
		}
	}

	res, err := s.svc.Return(ctx, in)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (s *Server) listReturns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.Returns(ctx, req.GetInt("limit", 0))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(entries)
}

func (s *Server) dashboard(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := s.svc.Dashboard(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(d)
}
