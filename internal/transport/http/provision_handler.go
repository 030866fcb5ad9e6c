// Copyright 2026 The Busgate Authors
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

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/busgate/busgate/internal/bus"
	"github.com/busgate/busgate/internal/provision"
)

// provisionRequest is the shared body shape of all provisioning
// endpoints; each operation reads the field it needs.
type provisionRequest struct {
	Admin       string                `json:"admin"`
	Secret      string                `json:"secret"`
	UserConfigs []provision.UserEntry `json:"configs,omitempty"`
	Entities    []string              `json:"entities,omitempty"`
	Grants      map[string]string     `json:"grants,omitempty"`
}

// clientProvisionRequest carries client configs; the configs field shape
// differs per resource, so each handler decodes its own.
type clientProvisionRequest struct {
	Admin   string                  `json:"admin"`
	Secret  string                  `json:"secret"`
	Configs []provision.ClientEntry `json:"configs"`
}

// busProvisionRequest carries bus configs.
type busProvisionRequest struct {
	Admin   string        `json:"admin"`
	Secret  string        `json:"secret"`
	Configs []*bus.Config `json:"configs"`
}

func decodeProvision(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) respondProvision(w http.ResponseWriter, r *http.Request, results any, err error) {
	if err != nil {
		if errors.Is(err, provision.ErrAuthenticationFailed) {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.credMetrics != nil {
		h.credMetrics.ProvisionItems.Add(r.Context(), int64(provisionCount(results)))
	}
	respondJSON(w, http.StatusOK, results)
}

func provisionCount(results any) int {
	switch v := results.(type) {
	case map[string]string:
		return len(v)
	case map[string]any:
		return len(v)
	case map[string]map[string]string:
		return len(v)
	}
	return 0
}

// ProvisionUserUpdate handles POST /provision/user/update
func (h *Handler) ProvisionUserUpdate(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.UpdateUsers(r.Context(), req.Admin, req.Secret, req.UserConfigs)
	h.respondProvision(w, r, results, err)
}

// ProvisionUserList handles POST /provision/user/list
func (h *Handler) ProvisionUserList(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.ListUsers(r.Context(), req.Admin, req.Secret, req.Entities)
	h.respondProvision(w, r, results, err)
}

// ProvisionUserDelete handles POST /provision/user/delete
func (h *Handler) ProvisionUserDelete(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.DeleteUsers(r.Context(), req.Admin, req.Secret, req.Entities)
	h.respondProvision(w, r, results, err)
}

// ProvisionClientUpdate handles POST /provision/client/update
func (h *Handler) ProvisionClientUpdate(w http.ResponseWriter, r *http.Request) {
	var req clientProvisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.UpdateClients(r.Context(), req.Admin, req.Secret, req.Configs)
	h.respondProvision(w, r, results, err)
}

// ProvisionClientList handles POST /provision/client/list
func (h *Handler) ProvisionClientList(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.ListClients(r.Context(), req.Admin, req.Secret, req.Entities)
	h.respondProvision(w, r, results, err)
}

// ProvisionClientDelete handles POST /provision/client/delete
func (h *Handler) ProvisionClientDelete(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.DeleteClients(r.Context(), req.Admin, req.Secret, req.Entities)
	h.respondProvision(w, r, results, err)
}

// ProvisionBusUpdate handles POST /provision/bus/update
func (h *Handler) ProvisionBusUpdate(w http.ResponseWriter, r *http.Request) {
	var req busProvisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.UpdateBuses(r.Context(), req.Admin, req.Secret, req.Configs)
	h.respondProvision(w, r, results, err)
}

// ProvisionBusList handles POST /provision/bus/list
func (h *Handler) ProvisionBusList(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.ListBuses(r.Context(), req.Admin, req.Secret, req.Entities)
	h.respondProvision(w, r, results, err)
}

// ProvisionBusDelete handles POST /provision/bus/delete
func (h *Handler) ProvisionBusDelete(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.DeleteBuses(r.Context(), req.Admin, req.Secret, req.Entities)
	h.respondProvision(w, r, results, err)
}

// ProvisionGrantAdd handles POST /provision/grant/add
func (h *Handler) ProvisionGrantAdd(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.AddGrants(r.Context(), req.Admin, req.Secret, req.Grants)
	if err == nil && h.credMetrics != nil {
		h.credMetrics.GrantsUpdated.Add(r.Context(), int64(len(req.Grants)))
	}
	h.respondProvision(w, r, results, err)
}

// ProvisionGrantRevoke handles POST /provision/grant/revoke
func (h *Handler) ProvisionGrantRevoke(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.RevokeGrants(r.Context(), req.Admin, req.Secret, req.Grants)
	if err == nil && h.credMetrics != nil {
		h.credMetrics.GrantsUpdated.Add(r.Context(), int64(len(req.Grants)))
	}
	h.respondProvision(w, r, results, err)
}

// ProvisionGrantList handles POST /provision/grant/list
func (h *Handler) ProvisionGrantList(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if !decodeProvision(w, r, &req) {
		return
	}
	results, err := h.provisionService.ListGrants(r.Context(), req.Admin, req.Secret, req.Entities)
	h.respondProvision(w, r, results, err)
}
