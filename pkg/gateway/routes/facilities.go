package routes

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carescope-ai/platform/pkg/common/config"
)

// FacilityProxy fronts the ingestion service's facility registry API.
type FacilityProxy struct {
	upstream
}

func NewFacilityProxy(client *http.Client, cfg *config.Config) *FacilityProxy {
	return &FacilityProxy{upstream{
		Client:  client,
		Cfg:     cfg,
		Name:    "ingestion service",
		BaseURL: cfg.IngestionBaseURL,
	}}
}

// RegisterFacilityRoutes mounts the registry proxy. Read routes stay
// open to any caller the router admits; mutating routes additionally
// pass through the given guards.
func RegisterFacilityRoutes(router *mux.Router, proxy *FacilityProxy, guards ...mux.MiddlewareFunc) {
	if proxy == nil || proxy.Client == nil || proxy.Cfg == nil {
		panic("facility proxy requires client and config")
	}

	router.HandleFunc("/facilities", proxy.handleList).Methods(http.MethodGet)
	router.HandleFunc("/facilities/{id}", proxy.handleGet).Methods(http.MethodGet)

	writes := router.NewRoute().Subrouter()
	for _, guard := range guards {
		writes.Use(guard)
	}
	writes.HandleFunc("/facilities", proxy.handleIngest).Methods(http.MethodPost)
	writes.HandleFunc("/facilities/batch", proxy.handleBatch).Methods(http.MethodPost)
	writes.HandleFunc("/facilities/{id}/verify", proxy.handleVerify).Methods(http.MethodPost)
}

func (p *FacilityProxy) handleIngest(w http.ResponseWriter, r *http.Request) {
	p.forwardWithBody(w, r, http.MethodPost, fmt.Sprintf("%s/api/v1/facilities", p.BaseURL))
}

func (p *FacilityProxy) handleBatch(w http.ResponseWriter, r *http.Request) {
	p.forwardWithBody(w, r, http.MethodPost, fmt.Sprintf("%s/api/v1/facilities/batch", p.BaseURL))
}

func (p *FacilityProxy) handleList(w http.ResponseWriter, r *http.Request) {
	p.forwardWithQuery(w, r, http.MethodGet, fmt.Sprintf("%s/api/v1/facilities", p.BaseURL))
}

func (p *FacilityProxy) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p.forwardWithQuery(w, r, http.MethodGet, fmt.Sprintf("%s/api/v1/facilities/%s", p.BaseURL, id))
}

func (p *FacilityProxy) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p.forwardWithBody(w, r, http.MethodPost, fmt.Sprintf("%s/api/v1/facilities/%s/verify", p.BaseURL, id))
}
