package dockerhub

import "time"

type GetImageTagsResponse struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []ImageTag `json:"results"`
}

type ImageTag struct {
	Name          string     `json:"name"`
	Images        []Image    `json:"images"`
	TagStatus     string     `json:"tag_status"`
	TagLastPulled *time.Time `json:"tag_last_pulled"`
	TagLastPushed time.Time  `json:"tag_last_pushed"`
}

type Image struct {
	Architecture string    `json:"architecture"`
	Variant      *string   `json:"variant"`
	Digest       string    `json:"digest"`
	OS           string    `json:"os"`
	Size         int       `json:"size"`
	Status       string    `json:"status"`
	LastPushed   time.Time `json:"last_pushed"`
}
