package toolchain

import (
	"context"
	"testing"
	"time"

	"github.com/fnproject/rust-images/pkg/dockerhub"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hubClientMock struct {
	tags map[string][]dockerhub.ImageTag
}

func (c *hubClientMock) GetTags(repository string) ([]dockerhub.ImageTag, error) {
	tags, exists := c.tags[repository]
	if !exists {
		return nil, errors.New("not found")
	}

	return tags, nil
}

func TestCacheRefresh(t *testing.T) {
	config := Config{
		Repositories: []string{
			"library/rust",
			"fnproject/rust-toolchain",
		},
		OS:             "linux",
		Architecture:   "amd64",
		ExpirationTime: DefaultExpirationTime,
	}
	hub := &hubClientMock{
		tags: map[string][]dockerhub.ImageTag{
			"library/rust": {
				{
					Name: "1.45.0",
					Images: []dockerhub.Image{
						{
							OS:           "windows",
							Architecture: "amd64",
							LastPushed:   time.Now(),
						},
						{
							OS:           config.OS,
							Architecture: config.Architecture,
							LastPushed:   time.Now().Add(-time.Hour),
						},
					},
				},
				{
					Name: "1.52.1",
					Images: []dockerhub.Image{
						{
							OS:           config.OS,
							Architecture: config.Architecture,
							LastPushed:   time.Now().Add(time.Hour),
						},
					},
				},
			},
			"fnproject/rust-toolchain": {
				{
					// Duplicates an upstream tag; the first repository wins.
					Name: "1.45.0",
					Images: []dockerhub.Image{
						{
							OS:           config.OS,
							Architecture: config.Architecture,
							LastPushed:   time.Now(),
						},
					},
				},
				{
					Name: "nightly",
					Images: []dockerhub.Image{
						{
							OS:           config.OS,
							Architecture: config.Architecture,
							LastPushed:   time.Now().Add(2 * time.Hour),
						},
					},
				},
			},
		},
	}

	cache := NewCache(context.Background(), config, zlog.Logger, hub)

	err := cache.Refresh()
	require.NoError(t, err)

	images := cache.GetAll()
	require.Len(t, images, 3)

	// Sorted by push time, most recent first.
	assert.Equal(t, "nightly", images[0].Tag)
	assert.Equal(t, "1.52.1", images[1].Tag)
	assert.Equal(t, "1.45.0", images[2].Tag)

	assert.Equal(t, "library/rust", images[2].Repository)

	assert.True(t, cache.Exists("1.45.0"))
	assert.True(t, cache.Exists("NIGHTLY"))
	assert.False(t, cache.Exists("1.9999.0"))
}

func TestCacheRefreshFailsWhenARepositoryIsUnknown(t *testing.T) {
	config := Config{
		Repositories:   []string{"library/rust", "no/such-repo"},
		OS:             "linux",
		Architecture:   "amd64",
		ExpirationTime: DefaultExpirationTime,
	}
	hub := &hubClientMock{
		tags: map[string][]dockerhub.ImageTag{
			"library/rust": {},
		},
	}

	cache := NewCache(context.Background(), config, zlog.Logger, hub)

	err := cache.Refresh()
	assert.Error(t, err)
	assert.Empty(t, cache.GetAll())
}
