package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
)

const (
	choiceSelected  = "selected"
	choiceSuggested = "suggested"
)

// PartnershipRepo persists the partnership aggregate.  Every write is a
// compare-and-set on (status, version) so that concurrent decisions cannot
// overwrite each other.
type PartnershipRepo struct {
	db *sql.DB
}

// NewPartnershipRepo constructs a PartnershipRepo given a DB handle.
func NewPartnershipRepo(db *sql.DB) *PartnershipRepo { return &PartnershipRepo{db: db} }

// Create inserts a new partnership at version 1.
func (r *PartnershipRepo) Create(ctx context.Context, p model.Partnership) (model.Partnership, error) {
	p.Version = 1
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO partnerships (id, event_id, company_id, created_by, status, version,
				suggestion_sent_at, suggestion_approved_at, suggestion_declined_at,
				validated_at, declined_at, agreement_signed_at, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			p.ID, p.EventID, p.CompanyID, p.CreatedBy, string(p.Status), p.Version,
			nullMillis(p.Process.SuggestionSentAt), nullMillis(p.Process.SuggestionApprovedAt),
			nullMillis(p.Process.SuggestionDeclinedAt), nullMillis(p.Process.ValidatedAt),
			nullMillis(p.Process.DeclinedAt), nullMillis(p.Process.AgreementSignedAt),
			toMillis(p.CreatedAt), toMillis(p.UpdatedAt)); err != nil {
			return err
		}
		return r.writeChildrenTx(ctx, tx, p)
	})
	if err != nil {
		return model.Partnership{}, err
	}
	return p, nil
}

// Update stores p if the row still has expectStatus and expectVersion.
// The returned partnership carries the bumped version.  When the row moved
// on in the meantime ErrConflict is returned and nothing is written.
func (r *PartnershipRepo) Update(ctx context.Context, p model.Partnership, expectStatus model.PartnershipStatus, expectVersion int64) (model.Partnership, error) {
	p.Version = expectVersion + 1
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE partnerships SET status=?, version=?,
				suggestion_sent_at=?, suggestion_approved_at=?, suggestion_declined_at=?,
				validated_at=?, declined_at=?, agreement_signed_at=?, updated_at=?
			WHERE id=? AND status=? AND version=?`,
			string(p.Status), p.Version,
			nullMillis(p.Process.SuggestionSentAt), nullMillis(p.Process.SuggestionApprovedAt),
			nullMillis(p.Process.SuggestionDeclinedAt), nullMillis(p.Process.ValidatedAt),
			nullMillis(p.Process.DeclinedAt), nullMillis(p.Process.AgreementSignedAt),
			toMillis(p.UpdatedAt),
			p.ID, string(expectStatus), expectVersion)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM partnerships WHERE id=?`, p.ID).Scan(&exists)
			if err != nil {
				return err
			}
			if exists == 0 {
				return ErrPartnershipNotFound
			}
			return ErrConflict
		}
		for _, table := range []string{"partnership_choices", "partnership_selections", "partnership_option_overrides", "partnership_snapshots"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE partnership_id=?", p.ID); err != nil {
				return err
			}
		}
		return r.writeChildrenTx(ctx, tx, p)
	})
	if err != nil {
		return model.Partnership{}, err
	}
	return p, nil
}

// Get loads the full aggregate.  A missing row yields ErrPartnershipNotFound.
func (r *PartnershipRepo) Get(ctx context.Context, id string) (model.Partnership, error) {
	var (
		p                    model.Partnership
		status               string
		sent, approved       sql.NullInt64
		sugDeclined          sql.NullInt64
		validated, declined  sql.NullInt64
		signed               sql.NullInt64
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, company_id, created_by, status, version,
			suggestion_sent_at, suggestion_approved_at, suggestion_declined_at,
			validated_at, declined_at, agreement_signed_at, created_at, updated_at
		FROM partnerships WHERE id=? LIMIT 1`, id).Scan(
		&p.ID, &p.EventID, &p.CompanyID, &p.CreatedBy, &status, &p.Version,
		&sent, &approved, &sugDeclined, &validated, &declined, &signed, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Partnership{}, ErrPartnershipNotFound
	}
	if err != nil {
		return model.Partnership{}, err
	}
	p.Status = model.PartnershipStatus(status)
	p.Process = model.ProcessStatus{
		SuggestionSentAt:     timePtr(sent),
		SuggestionApprovedAt: timePtr(approved),
		SuggestionDeclinedAt: timePtr(sugDeclined),
		ValidatedAt:          timePtr(validated),
		DeclinedAt:           timePtr(declined),
		AgreementSignedAt:    timePtr(signed),
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	if err := r.loadChoices(ctx, &p); err != nil {
		return model.Partnership{}, err
	}
	if err := r.loadSnapshot(ctx, &p); err != nil {
		return model.Partnership{}, err
	}
	return p, nil
}

// ListIDsByEvent returns the ids of an event's partnerships, oldest first.
func (r *PartnershipRepo) ListIDsByEvent(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM partnerships WHERE event_id=? ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PartnershipRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *PartnershipRepo) writeChildrenTx(ctx context.Context, tx *sql.Tx, p model.Partnership) error {
	if err := writeChoiceTx(ctx, tx, p.ID, choiceSelected, p.Selected); err != nil {
		return err
	}
	if err := writeChoiceTx(ctx, tx, p.ID, choiceSuggested, p.Suggested); err != nil {
		return err
	}
	if p.Validated == nil {
		return nil
	}
	payload, err := json.Marshal(newSnapshotRecord(*p.Validated))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO partnership_snapshots (partnership_id, payload, updated_at) VALUES (?,?,?)`,
		p.ID, string(payload), toMillis(p.UpdatedAt))
	return err
}

func writeChoiceTx(ctx context.Context, tx *sql.Tx, partnershipID, kind string, c *model.PackChoice) error {
	if c == nil {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO partnership_choices (partnership_id, kind, pack_id, pack_price_override) VALUES (?,?,?,?)`,
		partnershipID, kind, c.PackID, nullInt64(c.PackPriceOverride)); err != nil {
		return err
	}
	for i, sel := range c.Selections {
		var (
			qty     sql.NullInt64
			valueID sql.NullString
		)
		switch s := sel.(type) {
		case model.QuantitativeSelection:
			qty = sql.NullInt64{Int64: int64(s.SelectedQuantity), Valid: true}
		case model.SelectableSelection:
			valueID = sql.NullString{String: s.SelectedValueID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO partnership_selections (partnership_id, kind, option_id, selection_type, selected_quantity, selected_value_id, sort_order)
			VALUES (?,?,?,?,?,?,?)`,
			partnershipID, kind, sel.TargetOptionID(), string(sel.SelectionType()), qty, valueID, i); err != nil {
			return err
		}
	}
	for optionID, v := range c.OptionOverrides {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO partnership_option_overrides (partnership_id, kind, option_id, price_override) VALUES (?,?,?,?)`,
			partnershipID, kind, optionID, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *PartnershipRepo) loadChoices(ctx context.Context, p *model.Partnership) error {
	choices := map[string]*model.PackChoice{}

	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, pack_id, pack_price_override FROM partnership_choices WHERE partnership_id=?`, p.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			kind, packID string
			override     sql.NullInt64
		)
		if err := rows.Scan(&kind, &packID, &override); err != nil {
			rows.Close()
			return err
		}
		choices[kind] = &model.PackChoice{PackID: packID, PackPriceOverride: int64Ptr(override)}
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT kind, option_id, selection_type, selected_quantity, selected_value_id
		FROM partnership_selections WHERE partnership_id=? ORDER BY kind, sort_order`, p.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			kind, optionID, typ string
			qty                 sql.NullInt64
			valueID             sql.NullString
		)
		if err := rows.Scan(&kind, &optionID, &typ, &qty, &valueID); err != nil {
			rows.Close()
			return err
		}
		c, ok := choices[kind]
		if !ok {
			continue
		}
		sel, err := selectionFromRow(optionID, model.SelectionType(typ), qty, valueID)
		if err != nil {
			rows.Close()
			return err
		}
		c.Selections = append(c.Selections, sel)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT kind, option_id, price_override FROM partnership_option_overrides WHERE partnership_id=?`, p.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			kind, optionID string
			v              int64
		)
		if err := rows.Scan(&kind, &optionID, &v); err != nil {
			rows.Close()
			return err
		}
		c, ok := choices[kind]
		if !ok {
			continue
		}
		if c.OptionOverrides == nil {
			c.OptionOverrides = map[string]int64{}
		}
		c.OptionOverrides[optionID] = v
	}
	if err := rows.Close(); err != nil {
		return err
	}

	p.Selected = choices[choiceSelected]
	p.Suggested = choices[choiceSuggested]
	return nil
}

func selectionFromRow(optionID string, typ model.SelectionType, qty sql.NullInt64, valueID sql.NullString) (model.OptionSelection, error) {
	switch typ {
	case model.SelectionTypeText:
		return model.TextSelection{OptionID: optionID}, nil
	case model.SelectionTypeQuantitative:
		return model.QuantitativeSelection{OptionID: optionID, SelectedQuantity: int(qty.Int64)}, nil
	case model.SelectionTypeNumber:
		return model.NumberSelection{OptionID: optionID}, nil
	case model.SelectionTypeSelectable:
		return model.SelectableSelection{OptionID: optionID, SelectedValueID: valueID.String}, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownSelectionType, typ)
}

func (r *PartnershipRepo) loadSnapshot(ctx context.Context, p *model.Partnership) error {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM partnership_snapshots WHERE partnership_id=?`, p.ID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	var rec snapshotRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return fmt.Errorf("decode snapshot of %s: %w", p.ID, err)
	}
	pack := rec.pricedPack()
	p.Validated = &pack
	return nil
}

// snapshotRecord is the stored form of a frozen priced pack.  Positions
// are kept alongside the options because they are not part of the option
// wire shape.
type snapshotRecord struct {
	Pack              model.PackSummary         `json:"pack"`
	PackPriceOverride *int64                    `json:"pack_price_override"`
	Options           []model.PartnershipOption `json:"options"`
	Positions         []int                     `json:"positions"`
}

func newSnapshotRecord(p model.PricedPack) snapshotRecord {
	rec := snapshotRecord{Pack: p.Pack, PackPriceOverride: p.PackPriceOverride, Options: p.Options}
	rec.Positions = make([]int, len(p.Options))
	for i, o := range p.Options {
		rec.Positions[i] = o.Position
	}
	return rec
}

func (rec snapshotRecord) pricedPack() model.PricedPack {
	out := model.PricedPack{Pack: rec.Pack, PackPriceOverride: rec.PackPriceOverride, Options: rec.Options}
	if out.Options == nil {
		out.Options = []model.PartnershipOption{}
	}
	for i := range out.Options {
		if i < len(rec.Positions) {
			out.Options[i].Position = rec.Positions[i]
		}
	}
	return out
}
