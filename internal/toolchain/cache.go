package toolchain

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fnproject/rust-images/pkg/dockerhub"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type HubClient interface {
	GetTags(repository string) ([]dockerhub.ImageTag, error)
}

// Cache keeps a list of the upstream toolchain tags so a requested Rust
// version can be verified before any image is built.
//
// Lookups never block on the Hub: an expired cache is refreshed in the
// background while the stale data keeps serving. Use Refresh for one-shot
// consumers that need an up-to-date view immediately.
type Cache struct {
	ctx    context.Context
	config Config
	logger zerolog.Logger
	hub    HubClient

	refreshing atomic.Bool

	mu        sync.RWMutex
	updatedAt time.Time
	tagIndex  map[string]Image
	images    []Image
}

func NewCache(ctx context.Context, config Config, logger zerolog.Logger, hub HubClient) *Cache {
	return &Cache{
		ctx:      ctx,
		config:   config,
		logger:   logger,
		hub:      hub,
		tagIndex: make(map[string]Image),
	}
}

// RunBackgroundUpdate runs a background task that keeps the cache actual.
func (c *Cache) RunBackgroundUpdate() {
	go func() {
		c.logger.Info().Msg("toolchain tag cache update background task has been started")

		_ = c.Refresh()

		t := time.NewTicker(c.config.ExpirationTime)
		defer t.Stop()

		for {
			select {
			case <-c.ctx.Done():
				c.logger.Info().Msg("toolchain tag cache update background task has been finished")
				return

			case <-t.C:
			}

			_ = c.Refresh()
		}
	}()
}

// GetAll returns all known upstream toolchain images.
func (c *Cache) GetAll() []Image {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.refreshIfExpired()

	return c.images
}

// Exists checks whether the given version is a known upstream toolchain tag.
func (c *Cache) Exists(version string) bool {
	_, found := c.Find(version)

	return found
}

// Find searches an upstream image by its tag.
func (c *Cache) Find(version string) (img Image, found bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defer c.refreshIfExpired()

	img, found = c.tagIndex[c.normalizeTag(version)]

	return img, found
}

// Refresh synchronously fetches the tag lists and replaces the cache content.
func (c *Cache) Refresh() error {
	if !c.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer c.refreshing.Store(false)

	startedAt := time.Now()

	images, index, err := c.fetchAll(c.config.Repositories)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.updatedAt = time.Now()
	c.images = images
	c.tagIndex = index
	c.mu.Unlock()

	c.logger.Debug().
		Dur("elapsed", time.Since(startedAt)).
		Int("tag_count", len(index)).
		Msg("toolchain tag cache has been updated")

	return nil
}

func (c *Cache) normalizeTag(tag string) string {
	return strings.ToLower(tag)
}

// refreshIfExpired starts an asynchronous refresh if the cache has expired.
// The function should be called under the acquired mu lock.
func (c *Cache) refreshIfExpired() {
	if time.Since(c.updatedAt) < c.config.ExpirationTime {
		return
	}

	go func() {
		_ = c.Refresh()
	}()
}

// fetchAll collects images from all configured repositories concurrently
// and merges them. When a tag occurs in several repositories, the data
// is taken from the repository listed first.
func (c *Cache) fetchAll(repositories []string) ([]Image, map[string]Image, error) {
	g, _ := errgroup.WithContext(c.ctx)
	perRepo := make([][]Image, len(repositories))
	for i := range repositories {
		g.Go(func() error {
			images, err := c.fetchRepository(repositories[i])
			if err != nil {
				return err
			}

			perRepo[i] = images

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		c.logger.Err(err).Msg("failed to update toolchain tag cache")
		return nil, nil, err
	}

	var merged []Image
	index := make(map[string]Image)
	for _, images := range perRepo {
		for _, img := range images {
			tag := c.normalizeTag(img.Tag)
			if _, exists := index[tag]; exists {
				continue
			}

			index[tag] = img
			merged = append(merged, img)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].PushedAt.After(merged[j].PushedAt)
	})

	return merged, index, nil
}

// fetchRepository lists all tags of the given repository and keeps those
// matching the configured OS and architecture.
func (c *Cache) fetchRepository(repository string) ([]Image, error) {
	tags, err := c.hub.GetTags(repository)
	if err != nil {
		c.logger.Error().Err(err).Str("repository", repository).Msg("failed to get dockerhub tags")
		return nil, errors.Wrap(err, "failed to get tags from dockerhub")
	}

	var images []Image
	for _, t := range tags {
		for _, i := range t.Images {
			if !strings.EqualFold(i.OS, c.config.OS) || !strings.EqualFold(i.Architecture, c.config.Architecture) {
				continue
			}

			images = append(images, Image{
				Repository:   repository,
				Tag:          t.Name,
				OS:           i.OS,
				Architecture: i.Architecture,
				Digest:       i.Digest,
				PushedAt:     i.LastPushed,
			})
		}
	}

	c.logger.Debug().Str("repository", repository).Int("count", len(images)).Msg("toolchain tags have been fetched")

	return images, nil
}
