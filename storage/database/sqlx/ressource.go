package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core/ressource"
)

type ressourceReports struct {
	db *sqlx.DB
}

var _ ressource.ReportRepository = (*ressourceReports)(nil) // interface compliance check

func NewRessourceReports(db *sqlx.DB) *ressourceReports {
	return &ressourceReports{db: db}
}

func (repo ressourceReports) QueryFolders(ctx context.Context, merkezID int) ([]ressource.Folder, error) {
	folders := make([]ressource.Folder, 0)
	err := repo.db.SelectContext(ctx, &folders, `
		SELECT DISTINCT dossier AS nom
		FROM ressources_bibliotheque
		WHERE merkez_id = ? AND dossier IS NOT NULL AND dossier != ''
		ORDER BY dossier`,
		merkezID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying folders")
	}
	return folders, nil
}
