package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/stencil/internal/ctxlog"
)

// ListPacks describes every pack the repo can load, sorted by name. A pack
// whose manifest cannot be read is reported with an empty version so one
// broken pack does not hide the rest.
func (e *Engine) ListPacks(ctx context.Context) ([]PackInfo, error) {
	names, err := e.packRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}

	infos := make([]PackInfo, 0, len(names))
	for _, name := range names {
		p, err := e.packRepo.Load(name)
		if err != nil {
			ctxlog.FromContext(ctx).Warn("failed to load pack", "pack", name, "error", err)
			infos = append(infos, PackInfo{Name: name})
			continue
		}
		info := PackInfo{
			Name:        name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			DependsOn:   p.Manifest.DependsOn,
			Templates:   len(p.Manifest.Templates),
		}
		for _, v := range p.Manifest.Variables {
			info.Variables = append(info.Variables, v.Name)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
