package cube

import (
	"context"

	"github.com/google/uuid"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
)

// FacetSource adapts the Cube Facet Service's own asset-derived facet
// assembly (assembleFacetData) to the Integrity Orchestrator's
// FetchScoped contract, so a process_allowed anchor publishes the same
// facet content a direct get_cube call would have shown at owner scope.
type FacetSource struct {
	assets repositories.AssetRepository
}

func NewFacetSource(assets repositories.AssetRepository) *FacetSource {
	return &FacetSource{assets: assets}
}

// FetchScoped returns every facet's document, each stamped with the
// resolved visibility the orchestrator was handed; no facet is filtered
// out by that scope.
func (f *FacetSource) FetchScoped(ctx context.Context, assetID uuid.UUID, scope entities.Visibility) (map[entities.FacetName]*entities.FaceDocument, error) {
	asset, err := f.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	faces := make(map[entities.FacetName]*entities.FaceDocument, len(entities.AllFacets))
	now := asset.UpdatedAt
	for _, facet := range entities.AllFacets {
		faces[facet] = &entities.FaceDocument{
			Visibility:   scope,
			Data:         assembleFacetData(asset, facet),
			AgenticState: entities.AgenticIdle,
			UpdatedAt:    now,
		}
	}
	return faces, nil
}
