// Package sqlxrepos implements the reporting queries with hand-written SQL.
package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/paiement"
)

type paiementReports struct {
	db *sqlx.DB
}

var _ paiement.ReportRepository = (*paiementReports)(nil) // interface compliance check

func NewPaiementReports(db *sqlx.DB) *paiementReports {
	return &paiementReports{db: db}
}

// scoped appends the merkez condition when merkezID is set.
func scoped(query string, args []interface{}, column string, merkezID int) (string, []interface{}) {
	if merkezID > 0 {
		query += " AND " + column + " = ?"
		args = append(args, merkezID)
	}
	return query, args
}

func (repo paiementReports) RefreshOverdue(ctx context.Context, merkezID int, today core.Date) (int, error) {
	query, args := scoped(`
		UPDATE paiements SET statut = ?, updated_at = ?
		WHERE statut = ? AND archived = 0 AND date_echeance < ?`,
		[]interface{}{paiement.StatutEnRetard, time.Now().UTC(), paiement.StatutImpaye, today},
		"merkez_id", merkezID,
	)
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "refreshing overdue paiements")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "refreshing overdue paiements")
}

// amountRow is scanned instead of summing in SQL: SQLite would add the TEXT amounts as REAL.
type amountRow struct {
	Mois        int             `db:"mois"`
	Annee       int             `db:"annee"`
	Statut      string          `db:"statut"`
	MontantDu   decimal.Decimal `db:"montant_du"`
	MontantPaye decimal.Decimal `db:"montant_paye"`
}

func (repo paiementReports) Stats(ctx context.Context, merkezID int) (paiement.Stats, error) {
	query, args := scoped(`
		SELECT mois, annee, statut, montant_du, montant_paye
		FROM paiements
		WHERE archived = 0`,
		nil, "merkez_id", merkezID,
	)
	var rows []amountRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return paiement.Stats{}, errors.Wrap(err, "computing paiement stats")
	}

	stats := paiement.Stats{TotalDu: decimal.Zero, TotalPaye: decimal.Zero}
	for _, r := range rows {
		stats.TotalDu = stats.TotalDu.Add(r.MontantDu)
		stats.TotalPaye = stats.TotalPaye.Add(r.MontantPaye)
		switch r.Statut {
		case paiement.StatutEnRetard:
			stats.EnRetardCount++
			stats.ImpayeCount++
		case paiement.StatutImpaye:
			stats.ImpayeCount++
		}
	}
	return stats, nil
}

func (repo paiementReports) ArchivedMonths(ctx context.Context, merkezID int) ([]paiement.ArchivedMonth, error) {
	query, args := scoped(`
		SELECT mois, annee, statut, montant_du, montant_paye
		FROM paiements
		WHERE archived = 1`,
		nil, "merkez_id", merkezID,
	)
	query += " ORDER BY annee DESC, mois DESC"

	var rows []amountRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying archived months")
	}

	months := make([]paiement.ArchivedMonth, 0)
	for _, r := range rows {
		last := len(months) - 1
		if last < 0 || months[last].Mois != r.Mois || months[last].Annee != r.Annee {
			months = append(months, paiement.ArchivedMonth{Mois: r.Mois, Annee: r.Annee, TotalDu: decimal.Zero, TotalPaye: decimal.Zero})
			last++
		}
		months[last].Count++
		months[last].TotalDu = months[last].TotalDu.Add(r.MontantDu)
		months[last].TotalPaye = months[last].TotalPaye.Add(r.MontantPaye)
	}
	return months, nil
}

func (repo paiementReports) ReminderCandidates(ctx context.Context, merkezID int, today core.Date, remindedBefore time.Time) ([]paiement.Detail, error) {
	query, args := scoped(`
		SELECT p.*, e.nom AS eleve_nom, e.prenom AS eleve_prenom,
			COALESCE(e.email, '') AS eleve_email, COALESCE(e.email_parent, '') AS eleve_email_parent,
			m.nom AS merkez_nom, m.email AS merkez_email
		FROM paiements p
		JOIN eleves e ON e.id = p.eleve_id
		JOIN merkez m ON m.id = p.merkez_id
		WHERE p.statut != ? AND p.archived = 0 AND p.date_echeance < ?
			AND (p.date_rappel IS NULL OR p.date_rappel < ?)`,
		[]interface{}{paiement.StatutPaye, today, remindedBefore},
		"p.merkez_id", merkezID,
	)
	query += " ORDER BY p.merkez_id, p.date_echeance, p.id"

	details := make([]paiement.Detail, 0)
	if err := repo.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying reminder candidates")
	}
	for i := range details {
		details[i].Fill()
	}
	return details, nil
}
