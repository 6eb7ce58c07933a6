package github

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/wshanks/release/internal/config"
)

// Publisher publishes a release for a tag, creating it when absent, and
// uploads the configured assets. Asset paths are resolved against root.
type Publisher struct {
	client *Client
	root   string
}

// NewPublisher wraps a client for use by the release sequencer.
func NewPublisher(client *Client, root string) *Publisher {
	return &Publisher{client: client, root: root}
}

// Publish looks up the release for tag, creates one if none exists, then
// uploads every asset under it.
func (p *Publisher) Publish(ctx context.Context, tag string, assets []config.Asset) error {
	release, err := p.client.GetReleaseByTag(ctx, tag)
	if err != nil {
		return err
	}
	if release == nil {
		release, err = p.client.CreateRelease(ctx, tag)
		if err != nil {
			return err
		}
	}
	log.Info().Str("tag", tag).Int("assets", len(assets)).Msg("Publishing GitHub release")

	for _, asset := range assets {
		path := filepath.Join(p.root, asset.Path)
		if err := p.client.UploadAsset(ctx, release, path, asset.Type); err != nil {
			return fmt.Errorf("failed to upload %s: %w", asset.Path, err)
		}
	}
	return nil
}
