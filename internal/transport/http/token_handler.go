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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/busgate/busgate/internal/issue"
	"github.com/busgate/busgate/internal/observability/logger"
)

// Token handles POST /token for both grant types. Token responses must
// never be cached (RFC 6749 Section 5.1).
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := r.ParseForm(); err != nil {
		respondTokenError(w, issue.NewError(issue.ErrInvalidRequest, "malformed request body"))
		return
	}

	req := &issue.TokenRequest{
		GrantType:      r.PostForm.Get("grant_type"),
		ClientID:       r.PostForm.Get("client_id"),
		ClientSecret:   r.PostForm.Get("client_secret"),
		SecretProvided: r.PostForm.Has("client_secret"),
		Code:           r.PostForm.Get("code"),
		RedirectURI:    r.PostForm.Get("redirect_uri"),
		Scope:          r.PostForm.Get("scope"),
	}

	resp, err := h.issueService.Token(r.Context(), req)
	if h.credMetrics != nil {
		h.credMetrics.RecordIssue(r.Context(), req.GrantType,
			float64(time.Since(start).Milliseconds()), err)
	}
	if err != nil {
		var issueErr *issue.Error
		if !errors.As(err, &issueErr) {
			issueErr = issue.NewError(issue.ErrServerError, "internal error")
		}
		slog.InfoContext(r.Context(), "token_request_rejected",
			logger.ClientID(req.ClientID),
			logger.GrantType(req.GrantType),
			logger.ErrorType(issueErr.Code),
		)
		respondTokenError(w, issueErr)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	respondJSON(w, http.StatusOK, resp)
}

func respondTokenError(w http.ResponseWriter, err *issue.Error) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	status := http.StatusBadRequest
	switch err.Code {
	case issue.ErrInvalidClient:
		status = http.StatusUnauthorized
		// RFC 6749 Section 5.2 requires a challenge alongside 401.
		w.Header().Set("WWW-Authenticate", `Basic realm="busgate"`)
	case issue.ErrServerError:
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, err)
}
