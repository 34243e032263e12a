package dockerhub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"
)

const DockerHubURL = "https://hub.docker.com/v2"
const DefaultMaxRPS = 5

type Option func(c *Client)

// Auth makes the client send the given JWT with every request.
// Anonymous requests are rate limited much more aggressively by the Hub.
func Auth(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(cli *http.Client) Option {
	return func(c *Client) {
		c.cli = cli
	}
}

type Client struct {
	apiURL string
	token  string
	rl     ratelimit.Limiter

	cli *http.Client
}

func NewClient(apiURL string, maxRPS int, opts ...Option) *Client {
	c := &Client{
		apiURL: apiURL,
		rl:     ratelimit.New(maxRPS),
		cli:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetTags fetches all tags of the given repository, following pagination.
func (c *Client) GetTags(repository string) ([]ImageTag, error) {
	nextURL := fmt.Sprintf("%s/repositories/%s/tags/?page_size=100", c.apiURL, repository)

	var tags []ImageTag
	for {
		resp, err := c.getTags(nextURL)
		if err != nil {
			return nil, err
		}

		tags = append(tags, resp.Results...)
		if resp.Next == nil {
			break
		}

		nextURL = *resp.Next
	}

	return tags, nil
}

func (c *Client) getTags(url string) (*GetImageTagsResponse, error) {
	c.rl.Take()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "body read failed")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s", resp.Status)
	}

	response := new(GetImageTagsResponse)
	err = json.Unmarshal(body, response)
	if err != nil {
		zlog.Error().Err(err).Str("url", url).Str("body", string(body)).Msg("failed to fetch image tags")

		return nil, errors.Wrap(err, "unmarshal failed")
	}

	return response, nil
}
