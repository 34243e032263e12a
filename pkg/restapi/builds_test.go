package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fnproject/rust-images/internal/buildrun"
	"github.com/fnproject/rust-images/internal/imagebuild"
	"github.com/fnproject/rust-images/internal/toolchain"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type builderMock struct {
	versions []string
	err      error
}

func (b *builderMock) Run(_ context.Context, version string) (*imagebuild.Result, error) {
	b.versions = append(b.versions, version)
	if b.err != nil {
		return nil, b.err
	}

	return &imagebuild.Result{
		Version: version,
		ImageTags: []string{
			imagebuild.BuildImageName("fnproject", version),
			imagebuild.RuntimeImageName("fnproject", version),
			imagebuild.InitImageName("fnproject"),
		},
		Elapsed: 3 * time.Second,
	}, nil
}

type tagStorageMock struct {
	known map[string]bool
}

func (s *tagStorageMock) GetAll() []toolchain.Image {
	var images []toolchain.Image
	for tag := range s.known {
		images = append(images, toolchain.Image{Repository: "library/rust", Tag: tag})
	}

	return images
}

func (s *tagStorageMock) Exists(version string) bool {
	return s.known[version]
}

type runRepoMock struct {
	runs map[string]*buildrun.Run
}

func (r *runRepoMock) Create(run *buildrun.Run) error {
	r.runs[run.ID] = run

	return nil
}

func (r *runRepoMock) Get(id string) (*buildrun.Run, error) {
	run, exists := r.runs[id]
	if !exists {
		return nil, buildrun.ErrNotFound
	}

	return run, nil
}

func newTestRouter(builder Builder, repo buildrun.Repository, verify bool) http.Handler {
	return NewRouter(RouterOpts{
		Logger:          zlog.Logger,
		Builder:         builder,
		TagStorage:      &tagStorageMock{known: map[string]bool{"1.45.0": true}},
		RunRepo:         repo,
		VerifyToolchain: verify,
		Timeout:         time.Minute,
	})
}

func postBuild(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/builds", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestStartBuild(t *testing.T) {
	builder := &builderMock{}
	repo := &runRepoMock{runs: make(map[string]*buildrun.Run)}
	router := newTestRouter(builder, repo, false)

	rec := postBuild(t, router, `{"version": "1.45.0"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result StartBuildOutput `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, []string{"1.45.0"}, builder.versions)
	assert.Equal(t, []string{
		"fnproject/rust:1.45.0-build",
		"fnproject/rust:1.45.0-rt",
		"fnproject/rust:init",
	}, resp.Result.ImageTags)
	assert.NotEmpty(t, resp.Result.BuildRunID)

	saved, err := repo.Get(resp.Result.BuildRunID)
	require.NoError(t, err)
	assert.Equal(t, buildrun.StatusSucceeded, saved.Status)
}

func TestStartBuildRequiresVersion(t *testing.T) {
	builder := &builderMock{}
	repo := &runRepoMock{runs: make(map[string]*buildrun.Run)}
	router := newTestRouter(builder, repo, false)

	rec := postBuild(t, router, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, builder.versions)
}

func TestStartBuildVerifiesToolchainVersion(t *testing.T) {
	builder := &builderMock{}
	repo := &runRepoMock{runs: make(map[string]*buildrun.Run)}
	router := newTestRouter(builder, repo, true)

	rec := postBuild(t, router, `{"version": "1.9999.0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, builder.versions)

	rec = postBuild(t, router, `{"version": "1.45.0"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"1.45.0"}, builder.versions)
}

func TestStartBuildRecordsFailure(t *testing.T) {
	builder := &builderMock{err: errors.New("step build_image failed")}
	repo := &runRepoMock{runs: make(map[string]*buildrun.Run)}
	router := newTestRouter(builder, repo, false)

	rec := postBuild(t, router, `{"version": "1.45.0"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Len(t, repo.runs, 1)
	for _, run := range repo.runs {
		assert.Equal(t, buildrun.StatusFailed, run.Status)
		assert.Contains(t, run.Error, "build_image")
	}
}

func TestGetBuildNotFound(t *testing.T) {
	builder := &builderMock{}
	repo := &runRepoMock{runs: make(map[string]*buildrun.Run)}
	router := newTestRouter(builder, repo, false)

	req := httptest.NewRequest(http.MethodGet, "/api/builds/unknown-id", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
