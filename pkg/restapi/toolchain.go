package restapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type toolchainHandler struct {
	tagStorage ToolchainStorage
}

func newToolchainHandler(storage ToolchainStorage) *toolchainHandler {
	return &toolchainHandler{
		tagStorage: storage,
	}
}

func (h *toolchainHandler) handle(r chi.Router) {
	r.Get("/toolchain/tags", h.getTags)
}

type ToolchainTag struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Digest     string `json:"digest"`
	PushedAt   string `json:"pushed_at"`
}

func (h *toolchainHandler) getTags(w http.ResponseWriter, r *http.Request) {
	images := h.tagStorage.GetAll()

	tags := make([]ToolchainTag, 0, len(images))
	for _, img := range images {
		tags = append(tags, ToolchainTag{
			Repository: img.Repository,
			Tag:        img.Tag,
			Digest:     img.Digest,
			PushedAt:   img.PushedAt.Format(time.RFC3339),
		})
	}

	writeResult(w, tags)
}
