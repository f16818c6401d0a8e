package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
)

// OptionTranslation is the pre-translated name and description of an
// option in one language.
type OptionTranslation struct {
	Language    string `json:"language" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// CatalogRepo stores sponsoring packs and their options.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo given a DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// CreatePack inserts pack, its options and their translations in one
// transaction.  translations is keyed by option id; every option must have
// at least one entry.  A pack or option id that is already taken yields
// ErrDuplicateID.
func (r *CatalogRepo) CreatePack(ctx context.Context, pack model.SponsoringPack, createdBy string, translations map[string][]OptionTranslation) error {
	err := r.createPack(ctx, pack, createdBy, translations)
	if isUniqueViolation(err) {
		return ErrDuplicateID
	}
	return err
}

func (r *CatalogRepo) createPack(ctx context.Context, pack model.SponsoringPack, createdBy string, translations map[string][]OptionTranslation) error {
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

	createdAt := toMillis(pack.CreatedAt)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sponsoring_packs (id, event_id, name, base_price, currency, created_by, created_at) VALUES (?,?,?,?,?,?,?)`,
		pack.ID, pack.EventID, pack.Name, pack.BasePrice, pack.Currency, createdBy, createdAt); err != nil {
		return err
	}

	for _, po := range pack.Options {
		spec := po.Option.Spec()
		var tag sql.NullString
		if spec.TypeDescriptor != "" {
			tag = sql.NullString{String: spec.TypeDescriptor, Valid: true}
		}
		var fixed sql.NullInt64
		if spec.FixedQuantity != nil {
			fixed = sql.NullInt64{Int64: int64(*spec.FixedQuantity), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sponsoring_options (id, event_id, option_type, price, type_descriptor, fixed_quantity, created_at) VALUES (?,?,?,?,?,?,?)`,
			spec.ID, pack.EventID, string(spec.Type), spec.Price, tag, fixed, createdAt); err != nil {
			return err
		}
		trs := translations[spec.ID]
		if len(trs) == 0 {
			return fmt.Errorf("option %s has no translation", spec.ID)
		}
		for _, tr := range trs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO option_translations (option_id, language, name, description) VALUES (?,?,?,?)`,
				spec.ID, normalizeLanguage(tr.Language), tr.Name, tr.Description); err != nil {
				return err
			}
		}
		for i, v := range spec.SelectableValues {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO selectable_values (option_id, id, value_label, price, sort_order) VALUES (?,?,?,?,?)`,
				spec.ID, v.ID, v.Value, v.Price, i); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pack_options (pack_id, option_id, is_required, sort_order) VALUES (?,?,?,?)`,
			pack.ID, spec.ID, po.Required, po.Position); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetPack loads one pack with option strings in lang, falling back to
// defaultLang.  A missing pack yields ErrPackNotFound.
func (r *CatalogRepo) GetPack(ctx context.Context, packID, lang, defaultLang string) (model.SponsoringPack, error) {
	var (
		p         model.SponsoringPack
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, name, base_price, currency, created_at FROM sponsoring_packs WHERE id=? LIMIT 1`,
		packID).Scan(&p.ID, &p.EventID, &p.Name, &p.BasePrice, &p.Currency, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SponsoringPack{}, ErrPackNotFound
	}
	if err != nil {
		return model.SponsoringPack{}, err
	}
	p.CreatedAt = fromMillis(createdAt)
	if p.Options, err = r.loadOptions(ctx, p.ID, lang, defaultLang); err != nil {
		return model.SponsoringPack{}, err
	}
	return p, nil
}

// ListPacks returns every pack of an event in creation order.
func (r *CatalogRepo) ListPacks(ctx context.Context, eventID, lang, defaultLang string) ([]model.SponsoringPack, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, name, base_price, currency, created_at FROM sponsoring_packs WHERE event_id=? ORDER BY created_at, id`,
		eventID)
	if err != nil {
		return nil, err
	}
	var packs []model.SponsoringPack
	for rows.Next() {
		var (
			p         model.SponsoringPack
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.BasePrice, &p.Currency, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		p.CreatedAt = fromMillis(createdAt)
		packs = append(packs, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range packs {
		if packs[i].Options, err = r.loadOptions(ctx, packs[i].ID, lang, defaultLang); err != nil {
			return nil, err
		}
	}
	return packs, nil
}

type optionRow struct {
	spec     model.OptionSpec
	required bool
	position int
}

func (r *CatalogRepo) loadOptions(ctx context.Context, packID, lang, defaultLang string) ([]model.PackOption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.option_type, o.price, o.type_descriptor, o.fixed_quantity, po.is_required, po.sort_order
		FROM pack_options po
		JOIN sponsoring_options o ON o.id = po.option_id
		WHERE po.pack_id = ?
		ORDER BY po.sort_order, o.id`, packID)
	if err != nil {
		return nil, err
	}
	var (
		list  []*optionRow
		index = map[string]*optionRow{}
	)
	for rows.Next() {
		var (
			row   optionRow
			typ   string
			tag   sql.NullString
			fixed sql.NullInt64
		)
		if err := rows.Scan(&row.spec.ID, &typ, &row.spec.Price, &tag, &fixed, &row.required, &row.position); err != nil {
			rows.Close()
			return nil, err
		}
		row.spec.Type = model.OptionType(typ)
		row.spec.TypeDescriptor = tag.String
		if fixed.Valid {
			q := int(fixed.Int64)
			row.spec.FixedQuantity = &q
		}
		list = append(list, &row)
		index[row.spec.ID] = &row
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return []model.PackOption{}, nil
	}

	if err := r.loadValues(ctx, packID, index); err != nil {
		return nil, err
	}
	if err := r.loadTranslations(ctx, packID, lang, defaultLang, index); err != nil {
		return nil, err
	}

	out := make([]model.PackOption, 0, len(list))
	for _, row := range list {
		opt, err := model.NewSponsoringOption(row.spec)
		if err != nil {
			return nil, fmt.Errorf("load pack %s: %w", packID, err)
		}
		out = append(out, model.PackOption{Option: opt, Required: row.required, Position: row.position})
	}
	return out, nil
}

func (r *CatalogRepo) loadValues(ctx context.Context, packID string, index map[string]*optionRow) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT v.option_id, v.id, v.value_label, v.price
		FROM selectable_values v
		JOIN pack_options po ON po.option_id = v.option_id
		WHERE po.pack_id = ?
		ORDER BY v.option_id, v.sort_order`, packID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			optionID string
			v        model.SelectableValue
		)
		if err := rows.Scan(&optionID, &v.ID, &v.Value, &v.Price); err != nil {
			return err
		}
		if row, ok := index[optionID]; ok {
			row.spec.SelectableValues = append(row.spec.SelectableValues, v)
		}
	}
	return rows.Err()
}

func (r *CatalogRepo) loadTranslations(ctx context.Context, packID, lang, defaultLang string, index map[string]*optionRow) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.option_id, t.language, t.name, t.description
		FROM option_translations t
		JOIN pack_options po ON po.option_id = t.option_id
		WHERE po.pack_id = ?`, packID)
	if err != nil {
		return err
	}
	byOption := map[string][]OptionTranslation{}
	for rows.Next() {
		var (
			optionID string
			tr       OptionTranslation
		)
		if err := rows.Scan(&optionID, &tr.Language, &tr.Name, &tr.Description); err != nil {
			rows.Close()
			return err
		}
		byOption[optionID] = append(byOption[optionID], tr)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for id, trs := range byOption {
		row, ok := index[id]
		if !ok {
			continue
		}
		tr := pickTranslation(trs, lang, defaultLang)
		row.spec.Name = tr.Name
		row.spec.Description = tr.Description
	}
	return nil
}

// pickTranslation prefers an exact language match, then the primary subtag
// ("fr" for "fr-CA"), then defaultLang, then the alphabetically first row.
func pickTranslation(trs []OptionTranslation, lang, defaultLang string) OptionTranslation {
	lang = normalizeLanguage(lang)
	defaultLang = normalizeLanguage(defaultLang)
	primary, _, _ := strings.Cut(lang, "-")
	candidates := []string{lang, primary, defaultLang}
	for _, want := range candidates {
		if want == "" {
			continue
		}
		for _, tr := range trs {
			if normalizeLanguage(tr.Language) == want {
				return tr
			}
		}
	}
	sorted := append([]OptionTranslation(nil), trs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Language < sorted[j].Language })
	return sorted[0]
}

func normalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
