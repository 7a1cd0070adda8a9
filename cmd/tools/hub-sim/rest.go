package main

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/veksa/envirosim/internal/logging"
)

type restAPI struct {
	store     *hubStore
	publisher *hubPlugin
	thingKey  string
	hubURL    string
}

func (a *restAPI) handleRoutes(router *mux.Router) {
	logging.Info("hub-sim: handle route /register POST")
	logging.Info("hub-sim: handle route /devices/{device_id}/twin/{key} GET")
	logging.Info("hub-sim: handle route /devices/{device_id}/twin/{key}/request PUT")

	router.HandleFunc("/register", a.register).Methods(http.MethodPost)
	router.HandleFunc("/devices/{device_id}/twin/{key}", a.getTwin).Methods(http.MethodGet)
	router.HandleFunc("/devices/{device_id}/twin/{key}/request", a.putRequest).Methods(http.MethodPut)
}

func (a *restAPI) register(w http.ResponseWriter, r *http.Request) {
	thing := r.Header.Get("Envirosim-Thing-Id")
	if r.Header.Get("Envirosim-Thing-Key") != a.thingKey || thing == "" {
		logging.Warn("registration rejected", "thing", thing)
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
		return
	}

	deviceID, token := a.store.registerThing(thing)
	logging.Info("thing registered", "thing", thing, "deviceID", deviceID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "assigned",
		"deviceId": deviceID,
		"hub":      a.hubURL,
		"token":    token,
	})
}

func (a *restAPI) getTwin(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	deviceID, err := uuid.Parse(params["device_id"])
	if err != nil {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}
	doc, ok := a.store.twin(deviceID.String(), params["key"])
	if !ok {
		http.Error(w, "no such twin", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// putRequest stores a desired-state document and pushes it to the device.
func (a *restAPI) putRequest(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	deviceID, err := uuid.Parse(params["device_id"])
	if err != nil {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}
	if !a.store.knownDevice(deviceID.String()) {
		http.Error(w, "no such device", http.StatusNotFound)
		return
	}
	key := params["key"]
	body, _ := io.ReadAll(r.Body)
	if !json.Valid(body) {
		http.Error(w, "invalid json data", http.StatusBadRequest)
		return
	}

	a.store.setRequest(deviceID.String(), key, body)
	a.publisher.publishQ1("envirosim/"+deviceID.String()+"/twin/requests/"+key, body)
	logging.Info("desired state pushed", "deviceID", deviceID, "key", key)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.MarshalIndent(v, "", " ")
	w.Write(data)
}
