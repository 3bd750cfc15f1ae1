package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"finanlito/internal/core"
	"finanlito/internal/kanban"
	"finanlito/internal/ports"
)

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r, s.clock())
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.board(r, p.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cols := b.Columns(p)
	writeJSON(w, http.StatusOK, boardResponse{
		Year:    p.Year,
		Month:   int(p.Month),
		Pending: toJSONList(cols.Pending),
		Overdue: toJSONList(cols.Overdue),
		Paid:    toJSONList(cols.Paid),
		Summary: toSummaryJSON(b.Summary(p)),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r, s.clock())
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.board(r, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := b.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(b.Snapshot())})
}

// handleBalance answers whether amount could be paid in the month without
// a deficit.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r, s.clock())
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	amount := core.Money{}
	if v := q.Get("amount"); v != "" {
		if amount, err = core.ParseMoney(v); err != nil {
			writeError(w, r, badRequest("invalid amount %q", v))
			return
		}
	}
	creditCard, _ := strconv.ParseBool(q.Get("credit_card"))

	b, err := s.board(r, p.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceJSON(b.CanMarkPaid(p, amount, creditCard, q.Get("exclude"))))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := req.draft()
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.board(r, d.Date.Year())
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := b.Create(r.Context(), d, kanban.CreateOptions{
		Installments: req.Installments,
		AllowDeficit: req.AllowDeficit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !res.Applied {
		bal := toBalanceJSON(res.Balance)
		writeJSON(w, http.StatusOK, mutationResponse{Applied: false, Balance: &bal})
		return
	}
	s.forgetOtherYears(r, b, res.Created)
	writeJSON(w, http.StatusCreated, mutationResponse{Applied: true, Created: toJSONList(res.Created)})
}

// forgetOtherYears drops the cached boards of the years, other than b's,
// that created records landed in so they are reloaded on next use.
func (s *Server) forgetOtherYears(r *http.Request, b *kanban.Board, created []core.Transaction) {
	for _, t := range created {
		if y := t.Date.Year(); y != b.Year() {
			s.forgetYears(r, y)
		}
	}
}

func (s *Server) forgetYears(r *http.Request, years ...int) {
	tok := tokenOf(r)
	for _, y := range years {
		s.boards.Delete(sessionKey(tok, y))
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := req.patch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, ok := s.boardFromQuery(w, r)
	if !ok {
		return
	}
	res, err := b.Update(r.Context(), r.PathValue("id"), p, kanban.UpdateOptions{AllowDeficit: req.AllowDeficit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Applied {
		s.forgetOtherYears(r, b, []core.Transaction{res.Transaction})
	}
	writeMutation(w, res.Applied, res.Balance, res.Transaction)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, ok := s.boardFromQuery(w, r)
	if !ok {
		return
	}
	res, err := b.Reposition(r.Context(), kanban.Move{
		ID:           r.PathValue("id"),
		Status:       core.Status(req.Status),
		Index:        req.Index,
		AllowDeficit: req.AllowDeficit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMutation(w, res.Applied, res.Balance, res.Transaction)
}

func writeMutation(w http.ResponseWriter, applied bool, check kanban.BalanceCheck, t core.Transaction) {
	tx := toJSON(t)
	resp := mutationResponse{Applied: applied, Transaction: &tx}
	if !applied {
		bal := toBalanceJSON(check)
		resp.Balance = &bal
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	b, ok := s.boardFromQuery(w, r)
	if !ok {
		return
	}
	res, err := b.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.forgetYears(r, res.Years...)
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: res.Deleted, Reindexed: toJSONList(res.Reindexed)})
}

func (s *Server) handleDeleteMany(w http.ResponseWriter, r *http.Request) {
	ids, b, ok := s.idsAndBoard(w, r)
	if !ok {
		return
	}
	res, err := b.DeleteMany(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.forgetYears(r, res.Years...)
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: res.Deleted, Reindexed: toJSONList(res.Reindexed)})
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	b, ok := s.boardFromQuery(w, r)
	if !ok {
		return
	}
	res, err := b.Clone(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeClone(w, r, b, res)
}

func (s *Server) handleCloneMany(w http.ResponseWriter, r *http.Request) {
	ids, b, ok := s.idsAndBoard(w, r)
	if !ok {
		return
	}
	res, err := b.CloneMany(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeClone(w, r, b, res)
}

func (s *Server) handleReplicate(w http.ResponseWriter, r *http.Request) {
	var req replicateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := core.Period{Year: req.Year, Month: time.Month(req.Month)}
	if !p.Valid() {
		writeError(w, r, badRequest("invalid period %d-%d", req.Year, req.Month))
		return
	}
	b, err := s.board(r, p.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := b.ReplicateMonth(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeClone(w, r, b, res)
}

func (s *Server) writeClone(w http.ResponseWriter, r *http.Request, b *kanban.Board, res kanban.CloneResult) {
	s.forgetOtherYears(r, b, res.Created)
	status := http.StatusOK
	if len(res.Created) > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, cloneResponse{Created: toJSONList(res.Created), Moved: res.Moved})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.Categories(ports.WithToken(r.Context(), tokenOf(r)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": cats})
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	var req renameCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	from, to := sanitizeInput(req.From), sanitizeInput(req.To)
	if from == "" || to == "" {
		writeError(w, r, badRequest("category names cannot be empty"))
		return
	}
	b, ok := s.boardFromQuery(w, r)
	if !ok {
		return
	}
	n, err := b.RenameCategory(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Updated: n})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, r, badRequest("category name cannot be empty"))
		return
	}
	b, ok := s.boardFromQuery(w, r)
	if !ok {
		return
	}
	n, err := b.DeleteCategory(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Updated: n})
}

func (s *Server) boardFromQuery(w http.ResponseWriter, r *http.Request) (*kanban.Board, bool) {
	year, err := parseYear(r, s.clock())
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	b, err := s.board(r, year)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return b, true
}

func (s *Server) idsAndBoard(w http.ResponseWriter, r *http.Request) ([]string, *kanban.Board, bool) {
	var req idsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	if len(req.IDs) == 0 {
		writeError(w, r, badRequest("ids cannot be empty"))
		return nil, nil, false
	}
	b, ok := s.boardFromQuery(w, r)
	if !ok {
		return nil, nil, false
	}
	return req.IDs, b, true
}
