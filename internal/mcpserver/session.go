package mcpserver

import (
	"context"
	"sync"

	"github.com/starford/dagaz/internal/detail"
	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/source"
	"github.com/starford/dagaz/internal/views"
	"github.com/starford/dagaz/internal/viewservice"
)

// session is the interactive state of one view: its filters, the grid
// (attached once records first load) and the selected record.
type session struct {
	name views.Name

	mu    sync.Mutex
	state filter.State
	quick string
	grid  grid.Handle
	sel   detail.Selection
	snap  *source.Snapshot
}

// sessionView is what query tools report.
type sessionView struct {
	Filters  filter.State      `json:"filters"`
	Quick    string            `json:"quick,omitempty"`
	Selected string            `json:"selected,omitempty"`
	Page     *viewservice.Page `json:"page"`
}

func (s *Server) session(name views.Name) (*session, error) {
	if _, err := s.svc.View(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[name]
	if !ok {
		sess = &session{name: name}
		s.sessions[name] = sess
	}
	return sess, nil
}

// sync re-derives the session's rows and hands them to the grid, which
// keeps its page, sort and quick filter. Must hold sess.mu.
func (s *Server) sync(ctx context.Context, sess *session) error {
	rows, snap, err := s.svc.Derive(ctx, sess.name, sess.state)
	if err != nil {
		return err
	}
	if !sess.grid.Ready() {
		a, err := s.svc.NewGrid(sess.name)
		if err != nil {
			return err
		}
		sess.grid.Attach(a)
	}
	sess.snap = snap
	return sess.grid.Do(func(a *grid.Adapter) error {
		a.SetRows(rows)
		return nil
	})
}

// render reports the session's current page. Must hold sess.mu.
func (s *Server) render(sess *session) (*sessionView, error) {
	var page *viewservice.Page
	err := sess.grid.Do(func(a *grid.Adapter) error {
		var err error
		page, err = s.svc.PageOf(sess.name, sess.snap, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	id, _ := sess.sel.ID()
	return &sessionView{Filters: sess.state, Quick: sess.quick, Selected: id, Page: page}, nil
}
