// Package buildinfo carries the running version and compares it with the latest release.
package buildinfo

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/nulzo/prism-relay/internal/httpclient"
)

// Version is set at build time with -ldflags "-X github.com/nulzo/prism-relay/internal/buildinfo.Version=v1.2.3".
var Version = "v0.0.0"

type release struct {
	TagName string `json:"tag_name"`
}

// UpdateStatus compares the running build with the latest published release.
type UpdateStatus struct {
	Current  string
	Latest   string
	Outdated bool
}

// CheckForUpdates fetches a GitHub style "latest release" document from releaseURL.
func CheckForUpdates(ctx context.Context, client httpclient.HTTPClient, releaseURL string) (*UpdateStatus, error) {
	return compare(ctx, client, releaseURL, Version)
}

func compare(ctx context.Context, client httpclient.HTTPClient, releaseURL, running string) (*UpdateStatus, error) {
	current, err := version.NewVersion(running)
	if err != nil {
		return nil, fmt.Errorf("running version %q: %w", running, err)
	}

	var latestRelease release
	if err := httpclient.SendRequest(ctx, client, http.MethodGet, releaseURL, nil, nil, &latestRelease); err != nil {
		return nil, err
	}

	tag := strings.TrimSpace(latestRelease.TagName)
	latest, err := version.NewVersion(tag)
	if err != nil {
		return nil, fmt.Errorf("release tag %q: %w", tag, err)
	}

	return &UpdateStatus{
		Current:  running,
		Latest:   tag,
		Outdated: current.LessThan(latest),
	}, nil
}
