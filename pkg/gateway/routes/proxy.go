package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/carescope-ai/platform/pkg/common/config"
	"github.com/carescope-ai/platform/pkg/common/logger"
)

// upstream is the shared forwarding core embedded by the proxy route
// handlers. Responses are streamed back verbatim so downstream services
// own their own status codes and payload shapes.
type upstream struct {
	Client  *http.Client
	Cfg     *config.Config
	Name    string
	BaseURL string
}

func (u *upstream) forwardWithQuery(w http.ResponseWriter, r *http.Request, method, target string) {
	if len(r.URL.RawQuery) > 0 {
		target = fmt.Sprintf("%s?%s", target, r.URL.RawQuery)
	}
	u.forward(w, r, method, target, nil, false)
}

func (u *upstream) forwardWithBody(w http.ResponseWriter, r *http.Request, method, target string) {
	var body io.Reader
	if r.Body != nil {
		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, r.Body); err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		body = bytes.NewReader(buf.Bytes())
		r.Body = io.NopCloser(buf)
	}
	u.forward(w, r, method, target, body, true)
}

func (u *upstream) forward(w http.ResponseWriter, r *http.Request, method, target string, body io.Reader, propagateBody bool) {
	ctx, cancel := context.WithTimeout(r.Context(), u.Cfg.GatewayRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		http.Error(w, "failed to build upstream request", http.StatusInternalServerError)
		return
	}

	copyHeaders(r, req, propagateBody)

	corrID := ensureCorrelationID(req)

	resp, err := u.Client.Do(req)
	if err != nil {
		logger.Log.WithError(err).WithField("upstream", u.Name).Error("proxy request failed")
		http.Error(w, fmt.Sprintf("%s unavailable", u.Name), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		for _, value := range v {
			w.Header().Add(k, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Log.WithError(err).WithField("upstream", u.Name).Error("failed to copy upstream response")
	}

	logger.Log.WithFields(map[string]interface{}{
		"upstream":   u.Name,
		"url":        target,
		"status":     resp.StatusCode,
		"request_id": corrID,
	}).Info("Forwarded upstream request")
}

func copyHeaders(src *http.Request, dst *http.Request, hasBody bool) {
	dst.Header = make(http.Header)
	for k, v := range src.Header {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		dst.Header[k] = append([]string(nil), v...)
	}
	if hasBody {
		if ctype := src.Header.Get("Content-Type"); ctype != "" {
			dst.Header.Set("Content-Type", ctype)
		} else {
			dst.Header.Set("Content-Type", "application/json")
		}
	}
}

func ensureCorrelationID(req *http.Request) string {
	corrID := req.Header.Get("X-Request-ID")
	if corrID == "" {
		corrID = uuid.New().String()
		req.Header.Set("X-Request-ID", corrID)
	}
	return corrID
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
