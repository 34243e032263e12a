package restapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/fnproject/rust-images/internal/buildrun"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type buildHandler struct {
	logger  zerolog.Logger
	builder Builder
	runRepo buildrun.Repository

	tagStorage      ToolchainStorage
	verifyToolchain bool

	// One pipeline run at a time: builds share the daemon's image store
	// and the steps of a run must not interleave with another run's.
	mu sync.Mutex
}

func newBuildHandler(logger zerolog.Logger, builder Builder, runRepo buildrun.Repository, storage ToolchainStorage, verify bool) *buildHandler {
	return &buildHandler{
		logger:          logger,
		builder:         builder,
		runRepo:         runRepo,
		tagStorage:      storage,
		verifyToolchain: verify,
	}
}

func (h *buildHandler) handle(r chi.Router) {
	r.Post("/builds", h.startBuild)
	r.Get("/builds/{id}", h.getBuild)
}

type StartBuildInput struct {
	Version string `json:"version"`
}

type StartBuildOutput struct {
	BuildRunID  string   `json:"build_run_id"`
	ImageTags   []string `json:"image_tags"`
	TimeElapsed string   `json:"time_elapsed"`
}

func (h *buildHandler) startBuild(w http.ResponseWriter, r *http.Request) {
	var req StartBuildInput
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Version == "" {
		writeError(w, "missed version", http.StatusBadRequest)
		return
	}

	if h.verifyToolchain && !h.tagStorage.Exists(req.Version) {
		writeError(w, "unknown toolchain version", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	run := buildrun.New(req.Version)

	result, buildErr := h.builder.Run(r.Context(), req.Version)
	if buildErr != nil {
		run.Finish(nil, buildErr)
	} else {
		run.Finish(result.ImageTags, nil)
	}

	err = h.runRepo.Create(run)
	if err != nil {
		h.logger.Error().Err(err).Interface("model", run).Msg("a build run cannot be saved")
	}

	if buildErr != nil {
		h.logger.Error().Err(buildErr).Str("version", req.Version).Msg("build failed")
		writeError(w, "build failed", http.StatusInternalServerError)

		return
	}

	h.logger.Info().Str("id", run.ID).Dur("elapsed", run.Elapsed).Msg("saved a new build run")

	writeResult(w, StartBuildOutput{
		BuildRunID:  run.ID,
		ImageTags:   run.ImageTags,
		TimeElapsed: run.Elapsed.Round(time.Millisecond).String(),
	})
}

type GetBuildOutput struct {
	BuildRunID string   `json:"build_run_id"`
	Version    string   `json:"version"`
	Status     string   `json:"status"`
	Error      string   `json:"error,omitempty"`
	ImageTags  []string `json:"image_tags,omitempty"`
	StartedAt  string   `json:"started_at"`
}

func (h *buildHandler) getBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, "missed id", http.StatusBadRequest)
		return
	}

	run, err := h.runRepo.Get(id)
	if errors.Is(err, buildrun.ErrNotFound) {
		writeError(w, "build run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("failed to find a build run")
		writeError(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeResult(w, GetBuildOutput{
		BuildRunID: run.ID,
		Version:    run.Version,
		Status:     string(run.Status),
		Error:      run.Error,
		ImageTags:  run.ImageTags,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
	})
}
