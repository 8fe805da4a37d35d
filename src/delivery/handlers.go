package delivery

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/pgcatalog/src"
	"github.com/Blackdeer1524/pgcatalog/src/catalog"
	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
	"github.com/Blackdeer1524/pgcatalog/src/raft"
	"github.com/Blackdeer1524/pgcatalog/src/storage/statextdata"
)

type Handler struct {
	Registry *catalog.Registry
	Node     Node
	Store    Store
	Logger   src.Logger
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/catalog/relations", h.ListRelations).Methods(http.MethodGet)
	router.HandleFunc("/catalog/relations/{relation}", h.GetRelation).Methods(http.MethodGet)
	router.HandleFunc("/catalog/relations/{relation}/attnum/{column}", h.GetAttnum).Methods(http.MethodGet)

	router.HandleFunc("/statistics", h.ListStatistics).Methods(http.MethodGet)
	router.HandleFunc("/statistics", h.UpsertStatistics).Methods(http.MethodPut)
	router.HandleFunc("/statistics/{stxoid}", h.GetStatisticsObject).Methods(http.MethodGet)
	router.HandleFunc("/statistics/{stxoid}", h.DeleteStatisticsObject).Methods(http.MethodDelete)
	router.HandleFunc("/statistics/{stxoid}/{inherit}", h.GetStatistics).Methods(http.MethodGet)
	router.HandleFunc("/statistics/{stxoid}/{inherit}", h.DeleteStatistics).Methods(http.MethodDelete)
}

// NewRouter returns a router with every route registered.
func (h *Handler) NewRouter() *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return router
}

// rowResponse carries a row together with the text form PostgreSQL would
// print for its payload columns.
type rowResponse struct {
	statextdata.Row

	NDistinctText    string `json:"stxdndistinct_text,omitempty"`
	DependenciesText string `json:"stxddependencies_text,omitempty"`
}

func toRowResponse(r statextdata.Row) rowResponse {
	resp := rowResponse{Row: r}

	if r.Stxdndistinct != nil {
		resp.NDistinctText = r.Stxdndistinct.String()
	}

	if r.Stxddependencies != nil {
		resp.DependenciesText = r.Stxddependencies.String()
	}

	return resp
}

func toRowResponses(rows []statextdata.Row) []rowResponse {
	out := make([]rowResponse, len(rows))
	for i, r := range rows {
		out[i] = toRowResponse(r)
	}

	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Errorw("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, statextdata.ErrEntityNotFound),
		errors.Is(err, catalog.ErrRelationNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, statextdata.ErrInvalidRow),
		errors.Is(err, statextdata.ErrInvalidPayload):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case raft.IsNotLeader(err):
		http.Error(w, "NOT_LEADER: "+err.Error(), http.StatusServiceUnavailable)
	default:
		h.Logger.Errorw("internal server error", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *Handler) resolveRelation(ident string) (*catalog.RelationDesc, error) {
	if n, err := strconv.ParseUint(ident, 10, 32); err == nil {
		return h.Registry.ByOID(common.Oid(n))
	}

	return h.Registry.ByName(ident)
}

func (h *Handler) ListRelations(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"relations": h.Registry.Names(),
	})
}

func (h *Handler) GetRelation(w http.ResponseWriter, r *http.Request) {
	desc, err := h.resolveRelation(mux.Vars(r)["relation"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, desc)
}

func (h *Handler) GetAttnum(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	desc, err := h.resolveRelation(vars["relation"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	attnum, ok := desc.AttnumByName(vars["column"])
	if !ok {
		http.Error(w, "column "+vars["column"]+" not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"relation": desc.Name,
		"column":   vars["column"],
		"attnum":   attnum,
	})
}

func parseStxoid(w http.ResponseWriter, r *http.Request) (common.Oid, bool) {
	raw := mux.Vars(r)["stxoid"]

	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		http.Error(w, "invalid stxoid "+strconv.Quote(raw), http.StatusBadRequest)
		return common.InvalidOid, false
	}

	return common.Oid(n), true
}

func parseInherit(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := mux.Vars(r)["inherit"]

	inherit, err := strconv.ParseBool(raw)
	if err != nil {
		http.Error(w, "invalid inherit flag "+strconv.Quote(raw), http.StatusBadRequest)
		return false, false
	}

	return inherit, true
}

func (h *Handler) ListStatistics(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.List()
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRowResponses(rows))
}

func (h *Handler) GetStatisticsObject(w http.ResponseWriter, r *http.Request) {
	stxoid, ok := parseStxoid(w, r)
	if !ok {
		return
	}

	rows, err := h.Store.ListByStxoid(stxoid)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRowResponses(rows))
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stxoid, ok := parseStxoid(w, r)
	if !ok {
		return
	}

	inherit, ok := parseInherit(w, r)
	if !ok {
		return
	}

	row, err := h.Store.Get(stxoid, inherit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRowResponse(row))
}

func (h *Handler) UpsertStatistics(w http.ResponseWriter, r *http.Request) {
	var row statextdata.Row

	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	key, err := h.Node.Upsert(row)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, key)
}

func (h *Handler) DeleteStatisticsObject(w http.ResponseWriter, r *http.Request) {
	stxoid, ok := parseStxoid(w, r)
	if !ok {
		return
	}

	removed, err := h.Node.DeleteByStxoid(stxoid)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"stxoid":  stxoid,
		"removed": removed,
	})
}

func (h *Handler) DeleteStatistics(w http.ResponseWriter, r *http.Request) {
	stxoid, ok := parseStxoid(w, r)
	if !ok {
		return
	}

	inherit, ok := parseInherit(w, r)
	if !ok {
		return
	}

	if err := h.Node.Delete(stxoid, inherit); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
