// Package provenance implements the Provenance Ledger (§4.5): the
// append-only, gap-free ownership chain per asset.
package provenance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/domain/repositories"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

// Service is the Provenance Ledger.
type Service struct {
	assets      repositories.AssetRepository
	owns        repositories.OwnsRepository
	provenance  repositories.ProvenanceRepository
}

func NewService(assets repositories.AssetRepository, owns repositories.OwnsRepository, provenance repositories.ProvenanceRepository) *Service {
	return &Service{assets: assets, owns: owns, provenance: provenance}
}

// MintAsset creates Asset + Created edge + Owns(mint,is_current=true) +
// ProvenanceChain[seq=1,from=null,type=mint].
//
// The four writes run in sequence and are not wrapped in a single
// database transaction: each repository method opens its own RWTx
// against the storage adapter. A failure part-way leaves the earlier rows
// written, and no check for existing rows is made before writing.
func (s *Service) MintAsset(ctx context.Context, asset *entities.Asset) error {
	asset.LifecycleState = entities.LifecyclePRODUCED
	asset.CurrentOwnerID = asset.CreatorUserID
	if err := s.assets.Create(ctx, asset); err != nil {
		return err
	}
	if err := s.assets.CreateCreatedEdge(ctx, &entities.Created{CreatorID: asset.CreatorUserID, AssetID: asset.ID}); err != nil {
		return err
	}
	if err := s.owns.Create(ctx, &entities.Owns{
		OwnerID:        asset.CreatorUserID,
		AssetID:        asset.ID,
		TransferMethod: entities.TransferMethodMint,
		IsCurrent:      true,
	}); err != nil {
		return err
	}
	return s.provenance.Append(ctx, &entities.ProvenanceEntry{
		AssetID:      asset.ID,
		SequenceNum:  1,
		FromUserID:   nil,
		ToUserID:     asset.CreatorUserID,
		TransferType: entities.TransferTypeMint,
	})
}

// RecordTransfer implements record_transfer(asset_id, from?, to, type,
// price?, currency, tx_hashes) per §4.5: assigns the next sequence number,
// closes the prior Owns row, opens the new one, and repoints
// current_owner_id.
func (s *Service) RecordTransfer(ctx context.Context, assetID uuid.UUID, from, to uuid.UUID, transferType entities.TransferType, price *decimal.Decimal, currency string, blockchainTxHash, midnightProofHash *string, method entities.TransferMethod) (*entities.ProvenanceEntry, error) {
	maxSeq, err := s.provenance.MaxSequenceNum(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if maxSeq == 0 {
		return nil, spineerrors.NewConflict("asset has no mint entry")
	}

	current, err := s.owns.GetCurrent(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != from {
		return nil, spineerrors.NewPermissionDenied("transfer attempted from a non-owner")
	}

	entry := &entities.ProvenanceEntry{
		AssetID:           assetID,
		SequenceNum:       maxSeq + 1,
		FromUserID:        &from,
		ToUserID:          to,
		TransferType:      transferType,
		Currency:          currency,
		BlockchainTxHash:  blockchainTxHash,
		MidnightProofHash: midnightProofHash,
	}
	if price != nil {
		entry.Price = decimal.NewNullDecimal(*price)
	}
	if err := s.provenance.Append(ctx, entry); err != nil {
		return nil, err
	}

	now := entry.TransferAt
	if err := s.owns.CloseCurrent(ctx, assetID, now); err != nil {
		return nil, err
	}
	if err := s.owns.Create(ctx, &entities.Owns{OwnerID: to, AssetID: assetID, TransferMethod: method, IsCurrent: true}); err != nil {
		return nil, err
	}
	if err := s.assets.SetCurrentOwner(ctx, assetID, to); err != nil {
		return nil, err
	}

	return entry, nil
}

// VerifyChain implements verify_chain(asset_id): sequence contiguity,
// from/to linkage, and consistency with Asset.current_owner_id.
func (s *Service) VerifyChain(ctx context.Context, assetID uuid.UUID) (*entities.ChainVerification, error) {
	entries, err := s.provenance.ListByAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	var issues []string
	if len(entries) == 0 {
		return &entities.ChainVerification{Valid: false, Issues: []string{"no provenance entries"}}, nil
	}
	if entries[0].SequenceNum != 1 || entries[0].TransferType != entities.TransferTypeMint || entries[0].FromUserID != nil {
		issues = append(issues, "entry[1] is not a well-formed mint")
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.SequenceNum != prev.SequenceNum+1 {
			issues = append(issues, fmt.Sprintf("sequence gap at %d", cur.SequenceNum))
		}
		if cur.FromUserID == nil || *cur.FromUserID != prev.ToUserID {
			issues = append(issues, fmt.Sprintf("linkage break at sequence %d", cur.SequenceNum))
		}
	}
	last := entries[len(entries)-1]
	if asset.CurrentOwnerID != last.ToUserID {
		issues = append(issues, "current_owner_id inconsistent with chain head")
	}

	return &entities.ChainVerification{Valid: len(issues) == 0, Issues: issues}, nil
}
