package profilestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/directoryhub/onboarding-api/internal/adapters/postgres"
	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/clock"
	"github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

// Options configures the Postgres profile store.
type Options struct {
	// PrimaryRole is assumed with SET LOCAL ROLE for unprivileged writes so row-level security applies.
	// Empty keeps the connecting role.
	PrimaryRole string
}

// Store is a Postgres implementation of profilestore.Store and profilestore.PrivilegedCommitter.
//
// Reads use the pool's connecting role. Writes run in one transaction each, with
// app.identity_id set to the owning identity.
type Store struct {
	pool        *pgxpool.Pool
	clock       clock.Clock
	primaryRole string
}

func NewStore(pool *pgxpool.Pool, clk clock.Clock, opts Options) *Store {
	return &Store{pool: pool, clock: clk, primaryRole: opts.PrimaryRole}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const baseColumns = `role, display_name, full_name, phone, country, city, bio,
	website_url, linkedin_url, twitter_url, avatar_url,
	completed, completed_at, created_at, updated_at`

func (s *Store) ReadBase(ctx context.Context, id domain.IdentityID) (domain.BaseProfile, error) {
	if s.pool == nil {
		return domain.BaseProfile{}, errors.New("nil postgres pool")
	}
	b, err := readBase(ctx, s.pool, id)
	return b, classify(err)
}

func (s *Store) ReadExtension(ctx context.Context, id domain.IdentityID, role domain.Role) (domain.RoleExtension, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	claimed, ok, err := claimedRole(ctx, s.pool, id, false)
	if err != nil {
		return nil, classify(err)
	}
	if !ok || claimed != role {
		return nil, profilestore.ErrNotFound
	}
	ext, err := readExtension(ctx, s.pool, id, role)
	return ext, classify(err)
}

func (s *Store) ReadActiveExtension(ctx context.Context, id domain.IdentityID) (domain.RoleExtension, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	claimed, ok, err := claimedRole(ctx, s.pool, id, false)
	if err != nil {
		return nil, classify(err)
	}
	if !ok {
		return nil, profilestore.ErrNotFound
	}
	ext, err := readExtension(ctx, s.pool, id, claimed)
	return ext, classify(err)
}

func (s *Store) WriteBaseDraft(ctx context.Context, base domain.BaseProfile) error {
	return s.withTx(ctx, base.IdentityID, false, func(tx pgx.Tx) error {
		claimed, ok, err := claimedRole(ctx, tx, base.IdentityID, true)
		if err != nil {
			return err
		}
		if ok && claimed != base.Role {
			return fmt.Errorf("%w: active extension is %s", profilestore.ErrRoleConflict, claimed)
		}
		return upsertBase(ctx, tx, base, s.now(), false)
	})
}

func (s *Store) WriteExtensionDraft(ctx context.Context, ext domain.RoleExtension, opts profilestore.WriteOptions) error {
	if ext == nil || !ext.Role().Valid() {
		return domain.ErrUnknownRole
	}
	id := ext.Owner()
	return s.withTx(ctx, id, false, func(tx pgx.Tx) error {
		var baseRole string
		if err := tx.QueryRow(ctx, `SELECT role FROM base_profiles WHERE identity_id = $1 FOR UPDATE`, string(id)).Scan(&baseRole); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return profilestore.ErrNotFound
			}
			return err
		}
		now := s.now()

		claimed, ok, err := claimedRole(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if ok && claimed != ext.Role() {
			if !opts.ReplaceExisting {
				return fmt.Errorf("%w: active extension is %s", profilestore.ErrRoleConflict, claimed)
			}
			if err := retire(ctx, tx, id, claimed, now); err != nil {
				return err
			}
		}

		if domain.Role(baseRole) != ext.Role() {
			_, err = tx.Exec(ctx, `
				UPDATE base_profiles
				SET role = $2, completed = false, completed_at = NULL, updated_at = $3
				WHERE identity_id = $1
			`, string(id), string(ext.Role()), now)
		} else {
			_, err = tx.Exec(ctx, `UPDATE base_profiles SET updated_at = $2 WHERE identity_id = $1`, string(id), now)
		}
		if err != nil {
			return err
		}
		return upsertExtension(ctx, tx, ext, now)
	})
}

func (s *Store) RetireExtension(ctx context.Context, id domain.IdentityID, role domain.Role) error {
	return s.withTx(ctx, id, false, func(tx pgx.Tx) error {
		claimed, ok, err := claimedRole(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !ok || claimed != role {
			return profilestore.ErrNotFound
		}
		now := s.now()
		if err := retire(ctx, tx, id, role, now); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE base_profiles
			SET completed = false, completed_at = NULL, updated_at = $2
			WHERE identity_id = $1
		`, string(id), now)
		return err
	})
}

func (s *Store) ListRetired(ctx context.Context, id domain.IdentityID) ([]profilestore.RetiredExtension, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT role, payload, retired_at
		FROM retired_role_extensions
		WHERE identity_id = $1
		ORDER BY retired_at ASC, id ASC
	`, string(id))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]profilestore.RetiredExtension, 0)
	for rows.Next() {
		var (
			role      string
			payload   []byte
			retiredAt time.Time
		)
		if err := rows.Scan(&role, &payload, &retiredAt); err != nil {
			return nil, err
		}
		var values domain.Values
		if err := json.Unmarshal(payload, &values); err != nil {
			return nil, fmt.Errorf("decode retired extension: %w", err)
		}
		ext, err := domain.NewRoleExtension(domain.Role(role), id, values)
		if err != nil {
			return nil, err
		}
		out = append(out, profilestore.RetiredExtension{Extension: ext, RetiredAt: retiredAt.UTC()})
	}
	return out, classify(rows.Err())
}

func (s *Store) CommitCompletion(ctx context.Context, base domain.BaseProfile, ext domain.RoleExtension) error {
	if err := checkCommit(base, ext); err != nil {
		return err
	}
	return s.withTx(ctx, base.IdentityID, false, func(tx pgx.Tx) error {
		return commit(ctx, tx, base, ext, s.now())
	})
}

// CommitCompletionPrivileged commits as the connecting role, which owns the tables and is not
// subject to row-level security.
func (s *Store) CommitCompletionPrivileged(ctx context.Context, owner domain.Identity, base domain.BaseProfile, ext domain.RoleExtension) error {
	if owner.ID == "" || owner.ID != base.IdentityID {
		return fmt.Errorf("%w: identity does not own profile", profilestore.ErrAuthorization)
	}
	if err := checkCommit(base, ext); err != nil {
		return err
	}
	return s.withTx(ctx, base.IdentityID, true, func(tx pgx.Tx) error {
		return commit(ctx, tx, base, ext, s.now())
	})
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Store) withTx(ctx context.Context, id domain.IdentityID, privileged bool, fn func(tx pgx.Tx) error) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if !privileged && s.primaryRole != "" {
			if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+pgx.Identifier{s.primaryRole}.Sanitize()); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `SELECT set_config('app.identity_id', $1, true)`, string(id)); err != nil {
			return err
		}
		return fn(tx)
	})
	return classify(err)
}

func checkCommit(base domain.BaseProfile, ext domain.RoleExtension) error {
	if ext == nil || base.Role != ext.Role() {
		return profilestore.ErrRoleMismatch
	}
	if ext.Owner() != base.IdentityID {
		return fmt.Errorf("%w: extension owner differs from base", profilestore.ErrRoleMismatch)
	}
	return nil
}

func commit(ctx context.Context, tx pgx.Tx, base domain.BaseProfile, ext domain.RoleExtension, now time.Time) error {
	id := base.IdentityID
	if _, err := tx.Exec(ctx, `SELECT 1 FROM base_profiles WHERE identity_id = $1 FOR UPDATE`, string(id)); err != nil {
		return err
	}
	claimed, ok, err := claimedRole(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if ok && claimed != ext.Role() {
		return fmt.Errorf("%w: active extension is %s", profilestore.ErrRoleConflict, claimed)
	}
	if err := upsertBase(ctx, tx, base, now, true); err != nil {
		return err
	}
	return upsertExtension(ctx, tx, ext, now)
}

func upsertBase(ctx context.Context, tx pgx.Tx, b domain.BaseProfile, now time.Time, completing bool) error {
	var completedAt *time.Time
	onConflictCompletion := ""
	if completing {
		completedAt = &now
		onConflictCompletion = `,
			completed = true,
			completed_at = CASE WHEN base_profiles.completed THEN COALESCE(base_profiles.completed_at, EXCLUDED.completed_at)
			                    ELSE EXCLUDED.completed_at END`
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO base_profiles (
			identity_id, role, display_name, full_name, phone, country, city, bio,
			website_url, linkedin_url, twitter_url, avatar_url,
			completed, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (identity_id) DO UPDATE SET
			role = EXCLUDED.role,
			display_name = EXCLUDED.display_name,
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			bio = EXCLUDED.bio,
			website_url = EXCLUDED.website_url,
			linkedin_url = EXCLUDED.linkedin_url,
			twitter_url = EXCLUDED.twitter_url,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at`+onConflictCompletion,
		string(b.IdentityID),
		string(b.Role),
		b.DisplayName,
		b.FullName,
		b.Phone,
		b.Country,
		b.City,
		b.Bio,
		b.WebsiteURL,
		b.LinkedInURL,
		b.TwitterURL,
		b.AvatarURL,
		completing,
		completedAt,
		now,
	)
	return err
}

func upsertExtension(ctx context.Context, tx pgx.Tx, ext domain.RoleExtension, now time.Time) error {
	rt, err := tableFor(ext.Role())
	if err != nil {
		return err
	}
	id := string(ext.Owner())
	if _, err := tx.Exec(ctx, `
		INSERT INTO role_claims (identity_id, role, claimed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity_id) DO NOTHING
	`, id, string(ext.Role()), now); err != nil {
		return err
	}
	args := append([]any{id, now}, rt.args(ext.Values())...)
	if _, err := tx.Exec(ctx, rt.upsertSQL(), args...); err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.ForeignKeyViolationCode {
			// A concurrent writer claimed a different role first.
			return fmt.Errorf("%w: %s", profilestore.ErrRoleConflict, pe.ConstraintName)
		}
		return err
	}
	return nil
}

// retire archives the active extension and releases the role claim; the extension row goes with it.
func retire(ctx context.Context, tx pgx.Tx, id domain.IdentityID, role domain.Role, now time.Time) error {
	ext, err := readExtension(ctx, tx, id, role)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ext.Values())
	if err != nil {
		return fmt.Errorf("encode retired extension: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO retired_role_extensions (id, identity_id, role, payload, retired_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), string(id), string(role), payload, now); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM role_claims WHERE identity_id = $1`, string(id))
	return err
}

func readBase(ctx context.Context, q querier, id domain.IdentityID) (domain.BaseProfile, error) {
	b := domain.BaseProfile{IdentityID: id}
	var role string
	err := q.QueryRow(ctx, `SELECT `+baseColumns+` FROM base_profiles WHERE identity_id = $1`, string(id)).Scan(
		&role,
		&b.DisplayName,
		&b.FullName,
		&b.Phone,
		&b.Country,
		&b.City,
		&b.Bio,
		&b.WebsiteURL,
		&b.LinkedInURL,
		&b.TwitterURL,
		&b.AvatarURL,
		&b.Completed,
		&b.CompletedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BaseProfile{}, profilestore.ErrNotFound
		}
		return domain.BaseProfile{}, err
	}
	b.Role = domain.Role(role)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	if b.CompletedAt != nil {
		at := b.CompletedAt.UTC()
		b.CompletedAt = &at
	}
	return b, nil
}

func claimedRole(ctx context.Context, q querier, id domain.IdentityID, forUpdate bool) (domain.Role, bool, error) {
	sql := `SELECT role FROM role_claims WHERE identity_id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var role string
	if err := q.QueryRow(ctx, sql, string(id)).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return domain.Role(role), true, nil
}

func readExtension(ctx context.Context, q querier, id domain.IdentityID, role domain.Role) (domain.RoleExtension, error) {
	rt, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	dest, collect := rt.scanTargets()
	if err := q.QueryRow(ctx, rt.selectSQL(), string(id)).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profilestore.ErrNotFound
		}
		return nil, err
	}
	return domain.NewRoleExtension(role, id, collect())
}

// classify maps driver errors onto the port's error set. Port errors pass through.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, profilestore.ErrNotFound),
		errors.Is(err, profilestore.ErrRoleConflict),
		errors.Is(err, profilestore.ErrRoleMismatch),
		errors.Is(err, profilestore.ErrAuthorization),
		errors.Is(err, profilestore.ErrUnavailable),
		errors.Is(err, domain.ErrUnknownRole):
		return err
	case postgres.IsInsufficientPrivilege(err):
		return fmt.Errorf("%w: %v", profilestore.ErrAuthorization, err)
	case postgres.IsUnavailable(err):
		return fmt.Errorf("%w: %v", profilestore.ErrUnavailable, err)
	default:
		return err
	}
}
