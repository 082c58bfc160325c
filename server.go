package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
)

const (
	defaultTrainSteps = 10
	maxTrainSteps     = 1000
)

// Server owns HTTP handlers and the active training run.
//
// The trainer serializes its own steps; mu only guards which trainer is
// active.
type Server struct {
	mu       sync.RWMutex
	trainer  *Trainer
	runID    string
	defaults Config
	logger   *log.Logger
}

// NewServer creates a server with no active run. defaults is the config
// /api/init starts from; fields a request omits keep these values.
func NewServer(logger *log.Logger, defaults Config) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{logger: logger, defaults: defaults}
}

// RegisterRoutes attaches all endpoints to the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/init", s.handleInit)
	mux.HandleFunc("POST /api/train", s.handleTrain)
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("GET /api/params", s.handleParams)
}

// snapshot reads the current run with a shared lock.
func (s *Server) snapshot() (*Trainer, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trainer, s.runID
}

// setTrainer swaps the active run with an exclusive lock.
func (s *Server) setTrainer(t *Trainer) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainer = t
	s.runID = id
	return id
}

// writeJSON is a helper to consistently send JSON responses.
// The payload is encoded before the status goes out, so values JSON cannot
// carry (NaN, Inf) turn into a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// decodeOptionalJSON decodes JSON when body is present.
// Empty bodies are treated as "use defaults" rather than errors.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == io.EOF {
		return nil
	}
	return err
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	// Decode on top of the defaults so a partial config only overrides
	// the fields it names.
	cfg := s.defaults
	cfg.Layers = slices.Clone(s.defaults.Layers)
	req := InitRequest{Config: &cfg}
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Config == nil {
		cfg = s.defaults
	}
	data := DefaultDataset()
	if req.Dataset != nil {
		data = *req.Dataset
	}

	trainer, err := NewTrainer(cfg, data)
	if err != nil {
		s.logger.Printf("init rejected: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := s.setTrainer(trainer)
	s.logger.Printf("run %s initialized with %d parameters", id, trainer.NumParams())

	writeJSON(w, http.StatusOK, InitResponse{
		Status: "initialized",
		RunID:  id,
		Params: trainer.NumParams(),
	})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	trainer, id := s.snapshot()
	if trainer == nil {
		http.Error(w, "Model not initialized", http.StatusBadRequest)
		return
	}

	req := TrainRequest{}
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	steps := req.Steps
	if steps <= 0 {
		steps = defaultTrainSteps
	}
	steps = min(steps, maxTrainSteps)

	var report StepReport
	for i := 0; i < steps; i++ {
		report = trainer.Step()
		if report.Diverged() {
			s.logger.Printf("run %s diverged at iteration %d", id, report.Iteration)
			http.Error(w, ErrDiverged.Error(), http.StatusUnprocessableEntity)
			return
		}
	}
	writeJSON(w, http.StatusOK, TrainResponse{RunID: id, StepReport: report})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	trainer, _ := s.snapshot()
	if trainer == nil {
		http.Error(w, "Model not initialized", http.StatusBadRequest)
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	outputs, err := trainer.Predict(req.Inputs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, PredictResponse{Outputs: outputs})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	trainer, id := s.snapshot()
	if trainer == nil {
		http.Error(w, "Model not initialized", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, ParamsResponse{
		RunID:  id,
		Steps:  trainer.Steps(),
		Params: trainer.Params(),
	})
}
