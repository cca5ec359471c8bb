// Package content loads authored scene packs for the engine.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"github.com/emberline/saga/internal/engine/domain"
	"github.com/emberline/saga/internal/engine/route"
	"github.com/emberline/saga/internal/errors"
)

// Provider resolves content packs by id. Implementations must return stable
// results for a given (contentID, version) pair.
type Provider interface {
	GetManifest(ctx context.Context, contentID string) (domain.Manifest, error)
	GetScene(ctx context.Context, contentID, sceneID string) (domain.Scene, error)
}

// FSProvider serves content packs from a filesystem tree laid out as
// <contentID>/manifest.json and <contentID>/scenes/<sceneID>.json. Legacy
// scene codes are normalized at load time so the hot path only ever sees
// canonical ids.
type FSProvider struct {
	fsys fs.FS
}

// NewFSProvider wraps a filesystem root holding content packs.
func NewFSProvider(fsys fs.FS) *FSProvider {
	return &FSProvider{fsys: fsys}
}

func (p *FSProvider) GetManifest(_ context.Context, contentID string) (domain.Manifest, error) {
	raw, err := fs.ReadFile(p.fsys, path.Join(contentID, "manifest.json"))
	if err != nil {
		return domain.Manifest{}, errors.Wrap(errors.CodeContentNotFound,
			fmt.Sprintf("manifest for content %q", contentID), err)
	}
	var manifest domain.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return domain.Manifest{}, errors.Wrap(errors.CodeContentInvalid,
			fmt.Sprintf("manifest for content %q", contentID), err)
	}
	if manifest.ContentID == "" {
		manifest.ContentID = contentID
	}
	manifest.EntryScene = route.NormalizeSceneCode(manifest.EntryScene)
	return manifest, nil
}

func (p *FSProvider) GetScene(_ context.Context, contentID, sceneID string) (domain.Scene, error) {
	sceneID = route.NormalizeSceneCode(sceneID)
	raw, err := fs.ReadFile(p.fsys, path.Join(contentID, "scenes", sceneID+".json"))
	if err != nil {
		return domain.Scene{}, errors.Wrap(errors.CodeSceneNotFound,
			fmt.Sprintf("scene %q in content %q", sceneID, contentID), err)
	}
	var scene domain.Scene
	if err := json.Unmarshal(raw, &scene); err != nil {
		return domain.Scene{}, errors.Wrap(errors.CodeContentInvalid,
			fmt.Sprintf("scene %q in content %q", sceneID, contentID), err)
	}
	if scene.ID == "" {
		scene.ID = sceneID
	}
	for i, arrival := range scene.Arrivals {
		scene.Arrivals[i].Target = route.NormalizeSceneCode(arrival.Target)
	}
	return scene, nil
}

var _ Provider = (*FSProvider)(nil)
