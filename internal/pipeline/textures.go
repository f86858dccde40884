package pipeline

import (
	"context"
	"fmt"

	"github.com/tomoru1741/Bloxd-Tools/internal/extractor"
	"github.com/tomoru1741/Bloxd-Tools/internal/fetcher"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
	"go.uber.org/zap"
)

// MineTextures fetches the planned chunks and collects the block texture
// assignments defined in them. Earlier chunks win on name clashes.
func (p *Pipeline) MineTextures(ctx context.Context) (map[string]extractor.BlockTexture, error) {
	refs, err := p.resolver.ResolveChunkURLs(ctx, p.config.ManifestURL, p.config.ChunkIDs())
	if err != nil {
		return nil, &plugin.StageError{Stage: plugin.StageManifest, Err: err}
	}
	if len(refs) == 0 {
		return nil, unresolvedPlan(len(p.config.Chunks))
	}

	out := make(map[string]extractor.BlockTexture)
	scanned := make(map[string]bool)
	fetchedAny := false
	for _, ref := range refs {
		if scanned[ref.URL] {
			continue
		}
		scanned[ref.URL] = true

		resp, err := p.fetch.Fetch(ctx, ref.URL, fetcher.ExpectText)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.logger.Warn("Chunk fetch failed", zap.String("chunk", ref.ChunkID), zap.Error(err))
			continue
		}
		fetchedAny = true
		for name, bt := range extractor.ExtractBlockTextures(resp.Text()) {
			if _, dup := out[name]; !dup {
				out[name] = bt
			}
		}
	}

	if len(out) == 0 {
		stage := plugin.StageParse
		if !fetchedAny {
			stage = plugin.StageChunkFetch
		}
		return nil, &plugin.StageError{
			Stage: stage,
			Err:   fmt.Errorf("%w: no block textures in %d chunk(s)", plugin.ErrNotFound, len(refs)),
		}
	}
	p.logger.Info("Block textures mined", zap.Int("blocks", len(out)))
	return out, nil
}
