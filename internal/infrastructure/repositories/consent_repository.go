package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/integrity-spine/spine/internal/domain/entities"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
)

// PostgresConsentRepository implements repositories.ConsentRepository.
// Resolve applies the most-specific-first precedence from §4.4 as four
// sequential lookups within one read snapshot, stopping at the first
// live match.
type PostgresConsentRepository struct {
	adapter *storage.Adapter
}

func NewPostgresConsentRepository(adapter *storage.Adapter) *PostgresConsentRepository {
	return &PostgresConsentRepository{adapter: adapter}
}

const liveClause = `is_revoked = false AND (expires_at IS NULL OR expires_at > now())`

func (r *PostgresConsentRepository) Resolve(ctx context.Context, viewer, owner uuid.UUID, assetID *uuid.UUID, facet *string) (*entities.ConsentPolicy, error) {
	var result *entities.ConsentPolicy

	err := r.adapter.ReadSnapshot(ctx, func(db *sqlx.DB) error {
		// 1. grantee_specific
		var p entities.ConsentPolicy
		err := db.GetContext(ctx, &p, `SELECT id, user_id, scope, visibility, asset_id, facet_type,
			grantee_user_id, policy_version, is_revoked, revoked_at, revoke_reason, expires_at, created_at
			FROM consent_policies WHERE user_id=$1 AND scope='grantee_specific' AND grantee_user_id=$2
			AND `+liveClause+` ORDER BY created_at DESC LIMIT 1`, owner, viewer)
		if err == nil {
			result = &p
			return nil
		}
		if !isNotFound(err) {
			return err
		}

		// 2. facet_specific
		if assetID != nil && facet != nil {
			var fp entities.ConsentPolicy
			err := db.GetContext(ctx, &fp, `SELECT id, user_id, scope, visibility, asset_id, facet_type,
				grantee_user_id, policy_version, is_revoked, revoked_at, revoke_reason, expires_at, created_at
				FROM consent_policies WHERE user_id=$1 AND scope='facet_specific' AND asset_id=$2 AND facet_type=$3
				AND `+liveClause+` ORDER BY created_at DESC LIMIT 1`, owner, *assetID, *facet)
			if err == nil {
				result = &fp
				return nil
			}
			if !isNotFound(err) {
				return err
			}
		}

		// 3. asset_specific
		if assetID != nil {
			var ap entities.ConsentPolicy
			err := db.GetContext(ctx, &ap, `SELECT id, user_id, scope, visibility, asset_id, facet_type,
				grantee_user_id, policy_version, is_revoked, revoked_at, revoke_reason, expires_at, created_at
				FROM consent_policies WHERE user_id=$1 AND scope='asset_specific' AND asset_id=$2
				AND `+liveClause+` ORDER BY created_at DESC LIMIT 1`, owner, *assetID)
			if err == nil {
				result = &ap
				return nil
			}
			if !isNotFound(err) {
				return err
			}
		}

		// 4. global
		var gp entities.ConsentPolicy
		err = db.GetContext(ctx, &gp, `SELECT id, user_id, scope, visibility, asset_id, facet_type,
			grantee_user_id, policy_version, is_revoked, revoked_at, revoke_reason, expires_at, created_at
			FROM consent_policies WHERE user_id=$1 AND scope='global'
			AND `+liveClause+` ORDER BY created_at DESC LIMIT 1`, owner)
		if err == nil {
			result = &gp
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		return nil
	})

	return result, err
}

func (r *PostgresConsentRepository) Create(ctx context.Context, p *entities.ConsentPolicy) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO consent_policies
			(id, user_id, scope, visibility, asset_id, facet_type, grantee_user_id, policy_version,
			 is_revoked, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9,now())`,
			p.ID, p.UserID, p.Scope, p.Visibility, p.AssetID, p.FacetType, p.GranteeUserID,
			p.PolicyVersion, p.ExpiresAt)
		return err
	})
}

// RevokeAllForUser is the O(1)-round-trip global revocation: a single
// transactional UPDATE against every non-revoked row for the user.
func (r *PostgresConsentRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string, at time.Time) error {
	return r.adapter.RWTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE consent_policies SET is_revoked=true, revoked_at=$2, revoke_reason=$3
			WHERE user_id=$1 AND is_revoked=false`, userID, at, reason)
		return err
	})
}

func isNotFound(err error) bool {
	return err == sql.ErrNoRows
}
