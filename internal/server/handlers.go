package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/knotwork-db/knotwork/internal/graph"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger *slog.Logger
	store  *graph.Store
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, store *graph.Store) *APIHandlers {
	return &APIHandlers{
		logger: logger,
		store:  store,
	}
}

func (h *APIHandlers) handleNodes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upsertNode(w, r, "")
	case http.MethodGet:
		respondJSON(w, http.StatusOK, listResponse{Items: orEmpty(h.store.Nodes())})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleNodeSubtree routes /nodes/{id}, /nodes/{id}/neighbors and
// /nodes/{id}/degree.
func (h *APIHandlers) handleNodeSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/nodes/"), "/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	segments := strings.SplitN(rest, "/", 2)
	id := segments[0]

	if len(segments) == 2 {
		switch segments[1] {
		case "neighbors":
			h.nodeNeighbors(w, r, id)
		case "degree":
			h.nodeDegree(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "unknown node resource")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		node, err := h.store.GetNode(id)
		if err != nil {
			h.writeGraphError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, node)
	case http.MethodPut, http.MethodPatch:
		h.upsertNode(w, r, id)
	case http.MethodDelete:
		if err := h.store.RemoveNode(id); err != nil {
			h.writeGraphError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, statusResponse{Status: "ok", ID: id})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

// upsertNode serves POST /nodes (replace) as well as PUT (replace) and PATCH
// (merge) on /nodes/{id}.
func (h *APIHandlers) upsertNode(w http.ResponseWriter, r *http.Request, pathID string) {
	var payload nodeRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := payload.ID
	if pathID != "" {
		if id != "" && id != pathID {
			writeError(w, http.StatusBadRequest, "body id does not match URL")
			return
		}
		id = pathID
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	var err error
	if r.Method == http.MethodPatch {
		err = h.store.SetNode(id, payload.Labels, payload.Attrs)
	} else {
		err = h.store.AddNode(id, payload.Labels, payload.Attrs)
	}
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, statusResponse{Status: "ok", ID: id})
}

func (h *APIHandlers) nodeNeighbors(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	dir, err := graph.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}
	neighbors, err := h.store.Neighbors(id, dir)
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}
	if neighbors == nil {
		neighbors = []string{}
	}
	respondJSON(w, http.StatusOK, neighborsResponse{ID: id, Direction: string(dir), Neighbors: neighbors})
}

func (h *APIHandlers) nodeDegree(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	dir, err := graph.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}
	degree, err := h.store.Degree(id, dir)
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, degreeResponse{ID: id, Direction: string(dir), Degree: degree})
}

func (h *APIHandlers) handleRelationships(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upsertRelationship(w, r, "", "")
	case http.MethodGet:
		respondJSON(w, http.StatusOK, listResponse{Items: orEmpty(h.store.Relationships())})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleRelationshipSubtree routes /relationships/{source}/{target}.
func (h *APIHandlers) handleRelationshipSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/relationships/"), "/")
	segments := strings.Split(rest, "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		writeError(w, http.StatusBadRequest, "source and target IDs are required")
		return
	}
	source, target := segments[0], segments[1]

	switch r.Method {
	case http.MethodGet:
		rel, err := h.store.GetRelationship(source, target)
		if err != nil {
			h.writeGraphError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, rel)
	case http.MethodPut, http.MethodPatch:
		h.upsertRelationship(w, r, source, target)
	case http.MethodDelete:
		if err := h.store.RemoveRelationship(source, target); err != nil {
			h.writeGraphError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, statusResponse{Status: "ok", ID: source + "->" + target})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

func (h *APIHandlers) upsertRelationship(w http.ResponseWriter, r *http.Request, source, target string) {
	var payload relationshipRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if source == "" {
		source, target = payload.Source, payload.Target
	} else if (payload.Source != "" && payload.Source != source) || (payload.Target != "" && payload.Target != target) {
		writeError(w, http.StatusBadRequest, "body endpoints do not match URL")
		return
	}
	if source == "" || target == "" {
		writeError(w, http.StatusBadRequest, "source and target are required")
		return
	}

	var err error
	if r.Method == http.MethodPatch {
		err = h.store.SetRelationship(source, target, payload.Type, payload.Attrs)
	} else {
		err = h.store.AddRelationship(source, target, payload.Type, payload.Attrs)
	}
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, statusResponse{Status: "ok", ID: source + "->" + target})
}

func (h *APIHandlers) handleQueryNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload nodeQueryRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.store.FindNodes(graph.NodeQuery{
		Label: payload.Label,
		Where: payload.Where,
		Logic: graph.Logic(payload.Logic),
	}, payload.Fields...)
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Items: orEmpty(items)})
}

func (h *APIHandlers) handleQueryRelationships(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload relationshipQueryRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.store.FindRelationships(graph.RelationshipQuery{
		Type:  payload.Type,
		Where: payload.Where,
		Logic: graph.Logic(payload.Logic),
	}, payload.Fields...)
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Items: orEmpty(items)})
}

func (h *APIHandlers) handleQueryPaths(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload pathQueryRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dir, err := graph.ParseDirection(payload.Direction)
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}

	query := graph.PathQuery{
		Start:      payload.Start,
		StartLogic: graph.Logic(payload.StartLogic),
		Label:      payload.Label,
		Direction:  dir,
	}
	for _, step := range payload.Pattern {
		query.Pattern = append(query.Pattern, graph.PatternStep{
			RelType: step.Type,
			Where:   step.Where,
			Logic:   graph.Logic(step.Logic),
		})
	}

	switch payload.Render {
	case "", "full":
		paths, err := h.store.MatchFullPaths(query, payload.NodeFields, payload.RelFields)
		if err != nil {
			h.writeGraphError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, pathsResponse{Paths: paths, Count: len(paths)})
	case "nodes":
		paths, err := h.store.MatchNodePaths(query, payload.NodeFields...)
		if err != nil {
			h.writeGraphError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, renderedPathsResponse{Paths: anyPaths(paths), Count: len(paths)})
	case "ids":
		paths, err := h.store.MatchNodeIDPaths(query)
		if err != nil {
			h.writeGraphError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, renderedPathsResponse{Paths: anyPaths(paths), Count: len(paths)})
	case "interleaved":
		paths, err := h.store.MatchInterleavedPaths(query)
		if err != nil {
			h.writeGraphError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, renderedPathsResponse{Paths: anyPaths(paths), Count: len(paths)})
	default:
		writeError(w, http.StatusBadRequest, "unknown render mode (want full, nodes, ids, interleaved)")
	}
}

func (h *APIHandlers) handleSnapshotSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload snapshotRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var err error
	if payload.Path != "" {
		err = h.store.SaveTo(payload.Path)
	} else {
		err = h.store.Save()
	}
	if err != nil {
		h.writeGraphError(w, r, err)
		return
	}

	path := payload.Path
	if path == "" {
		path = h.store.Path()
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok", ID: path})
}

// writeGraphError translates the store's error taxonomy to HTTP statuses.
func (h *APIHandlers) writeGraphError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *graph.ValidationError
		notFound    *graph.NotFoundError
		reference   *graph.ReferenceError
		persistence *graph.PersistenceError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &reference):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &persistence):
		h.logger.Error("persistence failure", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		h.logger.Error("unexpected failure", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// --- Request & Response DTOs ---

type nodeRequest struct {
	ID     string         `json:"id"`
	Labels []string       `json:"labels"`
	Attrs  map[string]any `json:"attrs"`
}

type relationshipRequest struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Type   string         `json:"type"`
	Attrs  map[string]any `json:"attrs"`
}

type nodeQueryRequest struct {
	Label  string       `json:"label"`
	Where  graph.Clause `json:"where"`
	Logic  string       `json:"logic"`
	Fields []string     `json:"fields"`
}

type relationshipQueryRequest struct {
	// Type is tri-state: omitted or null matches any relationship, a
	// concrete string matches that type, and "" matches untyped edges only.
	Type   *string      `json:"type"`
	Where  graph.Clause `json:"where"`
	Logic  string       `json:"logic"`
	Fields []string     `json:"fields"`
}

type patternStepRequest struct {
	Type  *string      `json:"type"`
	Where graph.Clause `json:"where"`
	Logic string       `json:"logic"`
}

type pathQueryRequest struct {
	Start      graph.Clause         `json:"start"`
	StartLogic string               `json:"startLogic"`
	Label      string               `json:"label"`
	Pattern    []patternStepRequest `json:"pattern"`
	Direction  string               `json:"direction"`
	Render     string               `json:"render"`
	NodeFields []string             `json:"nodeFields"`
	RelFields  []string             `json:"relFields"`
}

type snapshotRequest struct {
	Path string `json:"path"`
}

type listResponse struct {
	Items []map[string]any `json:"items"`
}

type neighborsResponse struct {
	ID        string   `json:"id"`
	Direction string   `json:"direction"`
	Neighbors []string `json:"neighbors"`
}

type degreeResponse struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
	Degree    int    `json:"degree"`
}

type pathsResponse struct {
	Paths []graph.Path `json:"paths"`
	Count int          `json:"count"`
}

type renderedPathsResponse struct {
	Paths []any `json:"paths"`
	Count int   `json:"count"`
}

type statusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// --- Helpers ---

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func orEmpty(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}

func anyPaths[T any](paths []T) []any {
	out := make([]any, 0, len(paths))
	for _, p := range paths {
		out = append(out, p)
	}
	return out
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
