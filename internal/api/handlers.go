package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/tomoru1741/Bloxd-Tools/internal/coverage"
	"github.com/tomoru1741/Bloxd-Tools/internal/extractor"
	"github.com/tomoru1741/Bloxd-Tools/internal/session"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

// handleGetItems returns the current item list
func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	items := snap.Items
	if items == nil {
		items = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":       items,
		"total_count": len(items),
		"generation":  snap.ItemsGeneration,
		"run_id":      snap.ItemsRunID,
	})
}

// handleGetCoverage returns the coverage report
func (s *Server) handleGetCoverage(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.state.Coverage())
}

// handleGetView returns the filtered and sorted entries
func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := coverage.ParseViewOptions(q.Get("filter"), q.Get("q"), q.Get("sort"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.state.Snapshot()
	entries := coverage.View(s.state.Coverage(), snap.Dictionary, opts)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries":     entries,
		"total_count": len(entries),
	})
}

// handleGetGroups returns the runs of consecutive missing items
func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.state.Groups())
}

// handleGetTemplateJSON returns the missing names as a JSON object with empty values
func (s *Server) handleGetTemplateJSON(w http.ResponseWriter, r *http.Request) {
	body := coverage.TemplateJSON(s.state.Coverage().MissingNames)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="missing_items.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// handleGetTemplateText returns the annotated insertion template
func (s *Server) handleGetTemplateText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(coverage.TemplateText(s.state.Groups())))
}

type textureView struct {
	extractor.BlockTexture
	Top   string `json:"top,omitempty"`
	Left  string `json:"left,omitempty"`
	Right string `json:"right,omitempty"`
}

// handleGetTextures mines block textures from the bundle
func (s *Server) handleGetTextures(w http.ResponseWriter, r *http.Request) {
	if s.textures == nil {
		respondError(w, http.StatusNotImplemented, "Texture mining is not configured")
		return
	}
	mined, err := s.textures.MineTextures(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, plugin.Diagnose(err))
		return
	}

	out := make([]textureView, 0, len(mined))
	for _, bt := range mined {
		v := textureView{BlockTexture: bt}
		v.Top, v.Left, v.Right = bt.Faces()
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"textures":    out,
		"total_count": len(out),
	})
}

// handleGetRuns returns the refresh history
func (s *Server) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, http.StatusNotImplemented, "Run history is not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch runs")
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

type sourceStatus struct {
	Generation uint64    `json:"generation"`
	Count      int       `json:"count"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
	Error      string    `json:"error,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Hint       string    `json:"hint,omitempty"`
}

func newSourceStatus(gen uint64, count int, loadedAt time.Time, err error) sourceStatus {
	st := sourceStatus{Generation: gen, Count: count, LoadedAt: loadedAt}
	if err != nil {
		st.Error = err.Error()
		st.Stage = string(plugin.StageOf(err))
		st.Hint = plugin.Diagnose(err)
	}
	return st
}

// handleGetStatus reports what is loaded and the last failure of each source
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	itemsErr, dictErr := s.state.LastErrors()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"load_mode":  s.state.Mode(),
		"items":      newSourceStatus(snap.ItemsGeneration, len(snap.Items), snap.ItemsLoadedAt, itemsErr),
		"dictionary": newSourceStatus(snap.DictGeneration, len(snap.Dictionary), snap.DictLoadedAt, dictErr),
	})
}

type refreshResponse struct {
	*session.Outcome
	ItemsError string `json:"items_error,omitempty"`
	DictError  string `json:"dict_error,omitempty"`
}

// handleRefresh reloads one or both sources. ?source=items|dictionary|all
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var (
		out *session.Outcome
		err error
	)
	switch src := r.URL.Query().Get("source"); src {
	case "", "all":
		out, err = s.state.Refresh(r.Context())
	case "items":
		out, err = s.state.RefreshItems(r.Context())
	case "dictionary":
		out, err = s.state.RefreshDictionary(r.Context())
	default:
		respondError(w, http.StatusBadRequest, "Unknown source "+strconv.Quote(src))
		return
	}

	resp := refreshResponse{Outcome: out}
	if out.ItemsErr != nil {
		resp.ItemsError = plugin.Diagnose(out.ItemsErr)
	}
	if out.DictErr != nil {
		resp.DictError = plugin.Diagnose(out.DictErr)
	}

	status := http.StatusOK
	if err != nil && !out.ItemsCommitted && !out.DictCommitted {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, resp)
}
