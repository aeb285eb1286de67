// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

// Package api exposes the graph engines over HTTP with JSON bodies. The
// wire format is this service's own; the semantics are the engines',
// unchanged. The caller's principals arrive in the X-GraphVault-Principals
// header as a comma-separated list of TYPE:id entries.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/graphvault/graphvault/internal/authz"
	"github.com/graphvault/graphvault/internal/graph"
	"github.com/graphvault/graphvault/pkg/errutil"
)

// PrincipalsHeader carries the caller's principals.
const PrincipalsHeader = "X-GraphVault-Principals"

// ServerConfig holds dependencies for a Server.
type ServerConfig struct {
	Addr    string
	Mutator *graph.Mutator
	Deleter *graph.Deleter
	Reader  *graph.Reader
	Logger  *slog.Logger
}

// Server is the HTTP front of the graph store.
type Server struct {
	addr       string
	mutator    *graph.Mutator
	deleter    *graph.Deleter
	reader     *graph.Reader
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server with the given configuration.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    cfg.Addr,
		mutator: cfg.Mutator,
		deleter: cfg.Deleter,
		reader:  cfg.Reader,
		logger:  logger,
	}
}

// Handler returns the route table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/entity-sets/{entitySetID}/entities", s.handleCreateEntities)
	mux.HandleFunc("PATCH /api/entity-sets/{entitySetID}/entities", s.handleUpdateEntities)
	mux.HandleFunc("POST /api/associations", s.handleCreateAssociations)
	mux.HandleFunc("POST /api/edges", s.handleCreateEdges)
	mux.HandleFunc("POST /api/entity-sets/{entitySetID}/entities/delete", s.handleDeleteEntities)
	mux.HandleFunc("POST /api/entity-sets/{entitySetID}/delete-all", s.handleDeleteAll)
	mux.HandleFunc("POST /api/entity-sets/{entitySetID}/entities/{entityKeyID}/properties/delete", s.handleDeleteProperties)
	mux.HandleFunc("POST /api/entities/delete-with-neighbors", s.handleDeleteNeighbors)
	mux.HandleFunc("POST /api/entity-sets/{entitySetID}/load", s.handleLoad)
	mux.HandleFunc("GET /api/entity-sets/{entitySetID}/size", s.handleSize)
	return mux
}

// Start begins serving. Returns an error channel like the observability
// server: it receives serve failures and closes on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	return nil
}

// Addr returns the listen address, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// entityRef is the wire form of an EntityDataKey.
type entityRef struct {
	EntitySetID uuid.UUID `json:"entitySetId"`
	EntityKeyID uuid.UUID `json:"entityKeyId"`
}

func (r entityRef) key() graph.EntityDataKey {
	return graph.EntityDataKey{EntitySetID: r.EntitySetID, EntityKeyID: r.EntityKeyID}
}

type dataEdgeBody struct {
	Src  entityRef        `json:"src"`
	Dst  entityRef        `json:"dst"`
	Data graph.EntityData `json:"data"`
}

type edgeKeyBody struct {
	Src  entityRef `json:"src"`
	Dst  entityRef `json:"dst"`
	Edge entityRef `json:"edge"`
}

func (s *Server) handleCreateEntities(w http.ResponseWriter, r *http.Request) {
	entitySetID, principals, ok := s.setRequest(w, r)
	if !ok {
		return
	}
	var entities []graph.EntityData
	if !s.decode(w, r, &entities) {
		return
	}
	ids, err := s.mutator.CreateEntities(r.Context(), principals, entitySetID, entities)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entityKeyIds": ids})
}

func (s *Server) handleUpdateEntities(w http.ResponseWriter, r *http.Request) {
	entitySetID, principals, ok := s.setRequest(w, r)
	if !ok {
		return
	}
	var updates map[uuid.UUID]graph.EntityData
	if !s.decode(w, r, &updates) {
		return
	}
	updated, err := s.mutator.UpdateEntities(r.Context(), principals, entitySetID, updates)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (s *Server) handleCreateAssociations(w http.ResponseWriter, r *http.Request) {
	principals := parsePrincipals(r.Header.Get(PrincipalsHeader))
	var body map[uuid.UUID][]dataEdgeBody
	if !s.decode(w, r, &body) {
		return
	}
	associations := make(map[uuid.UUID][]graph.DataEdge, len(body))
	for edgeEntitySetID, edges := range body {
		converted := make([]graph.DataEdge, len(edges))
		for i, e := range edges {
			converted[i] = graph.DataEdge{Src: e.Src.key(), Dst: e.Dst.key(), Data: e.Data}
		}
		associations[edgeEntitySetID] = converted
	}
	created, err := s.mutator.CreateAssociations(r.Context(), principals, associations)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleCreateEdges(w http.ResponseWriter, r *http.Request) {
	principals := parsePrincipals(r.Header.Get(PrincipalsHeader))
	var body []edgeKeyBody
	if !s.decode(w, r, &body) {
		return
	}
	edges := make([]graph.DataEdgeKey, len(body))
	for i, e := range body {
		edges[i] = graph.DataEdgeKey{Src: e.Src.key(), Dst: e.Dst.key(), Edge: e.Edge.key()}
	}
	if err := s.mutator.CreateEdges(r.Context(), principals, edges); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEntities(w http.ResponseWriter, r *http.Request) {
	entitySetID, principals, ok := s.setRequest(w, r)
	if !ok {
		return
	}
	var body struct {
		EntityKeyIDs []uuid.UUID      `json:"entityKeyIds"`
		DeleteType   graph.DeleteType `json:"deleteType"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	deleted, err := s.deleter.DeleteEntities(r.Context(), principals, entitySetID, body.EntityKeyIDs, body.DeleteType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	entitySetID, principals, ok := s.setRequest(w, r)
	if !ok {
		return
	}
	var body struct {
		DeleteType graph.DeleteType `json:"deleteType"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	deleted, err := s.deleter.DeleteAllEntitiesFromEntitySet(r.Context(), principals, entitySetID, body.DeleteType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handleDeleteProperties(w http.ResponseWriter, r *http.Request) {
	entitySetID, principals, ok := s.setRequest(w, r)
	if !ok {
		return
	}
	entityKeyID, err := uuid.Parse(r.PathValue("entityKeyID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entity key id"})
		return
	}
	var body struct {
		PropertyTypeIDs []uuid.UUID      `json:"propertyTypeIds"`
		DeleteType      graph.DeleteType `json:"deleteType"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	cleared, err := s.deleter.DeleteEntityProperties(r.Context(), principals, entitySetID, entityKeyID, body.PropertyTypeIDs, body.DeleteType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

func (s *Server) handleDeleteNeighbors(w http.ResponseWriter, r *http.Request) {
	principals := parsePrincipals(r.Header.Get(PrincipalsHeader))
	var body struct {
		EntityKeyIDs            map[uuid.UUID][]uuid.UUID `json:"entityKeyIds"`
		SrcEntitySetIDs         []uuid.UUID               `json:"srcEntitySetIds"`
		DstEntitySetIDs         []uuid.UUID               `json:"dstEntitySetIds"`
		AssociationEntitySetIDs []uuid.UUID               `json:"associationEntitySetIds"`
		DeleteType              graph.DeleteType          `json:"deleteType"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	filter := graph.EntityNeighborsFilter{
		EntityKeyIDs:            body.EntityKeyIDs,
		SrcEntitySetIDs:         body.SrcEntitySetIDs,
		DstEntitySetIDs:         body.DstEntitySetIDs,
		AssociationEntitySetIDs: body.AssociationEntitySetIDs,
	}
	deleted, err := s.deleter.DeleteEntitiesAndNeighbors(r.Context(), principals, filter, body.DeleteType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	entitySetID, principals, ok := s.setRequest(w, r)
	if !ok {
		return
	}
	var body struct {
		EntityKeyIDs    []uuid.UUID `json:"entityKeyIds"`
		PropertyTypeIDs []uuid.UUID `json:"propertyTypeIds"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	selection := graph.Selection{EntityKeyIDs: body.EntityKeyIDs, PropertyTypeIDs: body.PropertyTypeIDs}
	entities, err := s.reader.LoadSelectedEntitySetData(r.Context(), principals, entitySetID, selection)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleSize(w http.ResponseWriter, r *http.Request) {
	entitySetID, principals, ok := s.setRequest(w, r)
	if !ok {
		return
	}
	size, err := s.reader.GetEntitySetSize(r.Context(), principals, entitySetID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"size": size})
}

// setRequest extracts the entity set id path segment and the caller's
// principals.
func (s *Server) setRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, []authz.Principal, bool) {
	entitySetID, err := uuid.Parse(r.PathValue("entitySetID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entity set id"})
		return uuid.Nil, nil, false
	}
	return entitySetID, parsePrincipals(r.Header.Get(PrincipalsHeader)), true
}

// parsePrincipals parses "USER:alice,ROLE:admin" into principals. Malformed
// entries are dropped: an unparseable principal grants nothing.
func parsePrincipals(header string) []authz.Principal {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	principals := make([]authz.Principal, 0, len(parts))
	for _, part := range parts {
		kind, id, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found || id == "" {
			continue
		}
		switch authz.PrincipalType(kind) {
		case authz.PrincipalUser, authz.PrincipalRole:
			principals = append(principals, authz.Principal{Type: authz.PrincipalType(kind), ID: id})
		}
	}
	return principals
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}

// writeError maps engine errors onto HTTP statuses: denial 403, unknown
// resource 404, validation 400, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, graph.ErrAuthorizationDenied):
		status = http.StatusForbidden
	case errors.Is(err, graph.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, graph.ErrTypeMismatch):
		status = http.StatusBadRequest
	case errutil.ErrorCode(err) == "SCHEMA_INCONSISTENCY",
		errutil.ErrorCode(err) == "INVALID_DELETE_TYPE":
		status = http.StatusBadRequest
	}
	body := map[string]string{"error": err.Error()}
	if code := errutil.ErrorCode(err); code != "" {
		body["code"] = code
	}
	s.writeJSON(w, status, body)
}
