//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

// Package debug provides an HTTP server for debugging and testing
// operators. It is an embedding aid, not a production transport.
package debug

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-operator-go/log"
	"trpc.group/trpc-go/trpc-operator-go/operator"
)

// Server exposes the coordinator's execute and resolve surfaces over
// HTTP with JSON envelopes.
type Server struct {
	coordinator *operator.Coordinator
	registry    operator.Registry
	router      *mux.Router
}

// New creates a debug server over the given coordinator and registry.
func New(coordinator *operator.Coordinator, registry operator.Registry) *Server {
	s := &Server{
		coordinator: coordinator,
		registry:    registry,
		router:      mux.NewRouter(),
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/list-operators", s.handleListOperators).Methods(http.MethodGet)
	s.router.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)
	s.router.HandleFunc("/resolve-type", s.handleResolveType).Methods(http.MethodPost)
	s.router.HandleFunc("/resolve-placement", s.handleResolvePlacement).Methods(http.MethodPost)
}

// invokeRequest is the body shared by the POST endpoints.
type invokeRequest struct {
	OperatorURI   string                  `json:"operator_uri"`
	RequestParams *operator.RequestParams `json:"request_params"`
}

func (s *Server) handleListOperators(w http.ResponseWriter, r *http.Request) {
	uris := []string{}
	for _, op := range s.registry.List() {
		uris = append(uris, op.URI())
	}
	s.writeJSON(w, uris)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	log.Infof("debug execute: operator=%s", req.OperatorURI)
	res := s.coordinator.ExecuteOrDelegate(r.Context(), req.OperatorURI, req.RequestParams)
	s.writeJSON(w, res)
}

func (s *Server) handleResolveType(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	prop, err := s.coordinator.ResolveType(r.Context(), req.OperatorURI, req.RequestParams)
	if err != nil {
		s.writeJSON(w, operator.NewErrorResult(err))
		return
	}
	s.writeJSON(w, map[string]any{"type": prop})
}

func (s *Server) handleResolvePlacement(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	op, err := s.registry.Get(req.OperatorURI)
	if err != nil {
		s.writeJSON(w, operator.NewErrorResult(err))
		return
	}
	placement, err := s.coordinator.ResolvePlacement(r.Context(), op, req.RequestParams)
	if err != nil {
		s.writeJSON(w, operator.NewErrorResult(err))
		return
	}
	s.writeJSON(w, map[string]any{"placement": placement})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*invokeRequest, bool) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if req.OperatorURI == "" {
		http.Error(w, "operator_uri is required", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}
