package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"time"
)

type positionResponse struct {
	Position int    `json:"position"`
	Value    *int64 `json:"value"` // null - пустая позиция
	Source   string `json:"source"`
}

type writeRequest struct {
	Value int64 `json:"value"`
}

// NewRouter регистрирует маршруты чтения/записи позиций и метрик
func NewRouter(svc *Service, metrics *Metrics) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/positions/{position:[0-9]+}", func(w http.ResponseWriter, req *http.Request) {
		position, ok := positionVar(w, req)
		if !ok {
			return
		}
		// Чтение идёт тем же путём, что и у задач: кеш, затем хранилище
		o := svc.Read(position)
		resp := positionResponse{Position: position, Source: o.Source.label()}
		if o.Value.Valid {
			v := o.Value.Value
			resp.Value = &v
		}
		writeJSON(w, http.StatusOK, resp)
	}).Methods("GET")

	r.HandleFunc("/positions/{position:[0-9]+}", func(w http.ResponseWriter, req *http.Request) {
		position, ok := positionVar(w, req)
		if !ok {
			return
		}
		var body writeRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		task := "http:" + req.URL.Path
		applyWrites(w, req, svc, task, []Write{{Position: position, Value: body.Value}})
	}).Methods("PUT")

	// Задача записи целиком, в том же формате, что и сообщения Kafka
	r.HandleFunc("/writes", func(w http.ResponseWriter, req *http.Request) {
		var t WriteTaskMessage
		if err := json.NewDecoder(req.Body).Decode(&t); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if t.Task == "" {
			t.Task = "http:/writes"
		}
		applyWrites(w, req, svc, t.Task, t.Writes)
	}).Methods("POST")

	r.HandleFunc("/store", func(w http.ResponseWriter, req *http.Request) {
		snapshot := svc.Snapshot()
		values := make([]*int64, len(snapshot))
		for i, it := range snapshot {
			if it.Valid {
				v := it.Value
				values[i] = &v
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"extent": len(snapshot), "values": values})
	}).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")

	return r
}

func positionVar(w http.ResponseWriter, req *http.Request) (int, bool) {
	position, err := strconv.Atoi(mux.Vars(req)["position"])
	if err != nil {
		http.Error(w, "invalid position", http.StatusBadRequest)
		return 0, false
	}
	return position, true
}

func applyWrites(w http.ResponseWriter, req *http.Request, svc *Service, task string, writes []Write) {
	if err := svc.ApplyWrites(req.Context(), task, writes); err != nil {
		if errors.Is(err, ErrTaskResolution) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("task", task).Msg("write failed")
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": len(writes)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// настраивает сервер и запускает его в горутине
func StartHTTPServer(cfg *Config, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	return srv
}
