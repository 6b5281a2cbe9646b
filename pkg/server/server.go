// Copyright 2025 The kubegate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the gateway over HTTP: instruction discovery,
// execution, health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/kubegate/kubegate/pkg/api"
	"github.com/kubegate/kubegate/pkg/gateway"
)

type Server struct {
	gateway *gateway.Gateway
	metrics *metrics

	httpServer         *http.Server
	httpServerListener net.Listener
}

// New builds the server and binds its listener so callers learn about a
// busy port immediately.
func New(gw *gateway.Gateway, listenAddress string) (*Server, error) {
	mux := http.NewServeMux()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		gateway: gw,
		metrics: newMetrics(registry),
	}

	mux.HandleFunc("GET /api/instructions", s.handleListInstructions)
	mux.HandleFunc("POST /api/execute", s.handlePOSTExecute)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:    listenAddress,
		Handler: mux,
	}

	listener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return nil, fmt.Errorf("starting http server network listener: %w", err)
	}
	s.httpServerListener = listener

	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.httpServerListener.Addr()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log := klog.FromContext(ctx)
	log.Info("listening", "address", s.Addr().String())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.httpServer.Serve(s.httpServerListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error running http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "http server shutdown")
		}
		return nil
	})

	return g.Wait()
}

// instructionInfo is the discovery document for one catalog entry.
type instructionInfo struct {
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Mutating       bool        `json:"mutating"`
	SupportsDryRun bool        `json:"supports_dry_run"`
	Params         []paramInfo `json:"params"`
}

type paramInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

func (s *Server) handleListInstructions(w http.ResponseWriter, req *http.Request) {
	var out []instructionInfo
	for _, spec := range s.gateway.Registry.All() {
		info := instructionInfo{
			Name:           spec.Name,
			Description:    spec.Description,
			Mutating:       spec.Mutating,
			SupportsDryRun: spec.SupportsDryRun,
			Params:         []paramInfo{},
		}
		for _, p := range spec.Params {
			typ := p.Type
			if typ == "" {
				typ = "string"
			}
			info.Params = append(info.Params, paramInfo{
				Name:        p.Name,
				Description: p.Description,
				Type:        typ,
				Required:    p.Required,
				Default:     p.Default,
			})
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"instructions": out})
}

func (s *Server) handlePOSTExecute(w http.ResponseWriter, req *http.Request) {
	var execReq api.ExecutionRequest
	if err := json.NewDecoder(req.Body).Decode(&execReq); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}
	if execReq.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	result, err := s.gateway.Execute(req.Context(), &execReq)
	if err != nil {
		s.metrics.observeRejected(execReq.Instruction)

		var unknown *api.UnknownInstructionError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		var invalid *api.ValidationError
		var build *api.BuildError
		if errors.As(err, &invalid) || errors.As(err, &build) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.observe(execReq.Instruction, result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthz(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		klog.Background().Error(err, "encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
