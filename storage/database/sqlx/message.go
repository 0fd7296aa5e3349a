package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core/message"
)

// the last message of every conversation of the user, with the other party and the unread count
const conversationsQuery = `
	SELECT
		x.conversation_id,
		CASE WHEN x.expediteur_id = ? THEN x.destinataire_id ELSE x.expediteur_id END AS autre_user_id,
		u.nom AS autre_user_nom,
		u.user_type AS autre_user_type,
		COALESCE(x.contenu, x.fichier_nom, '') AS dernier_message,
		x.created_at AS date_dernier_message,
		(
			SELECT COUNT(*) FROM messages n
			WHERE n.conversation_id = x.conversation_id AND n.destinataire_id = ? AND n.lu = 0 AND n.archived = 0
		) AS non_lus
	FROM messages x
	JOIN users u ON u.id = CASE WHEN x.expediteur_id = ? THEN x.destinataire_id ELSE x.expediteur_id END
	WHERE x.id IN (
		SELECT MAX(id) FROM messages
		WHERE (expediteur_id = ? OR destinataire_id = ?) AND archived = 0
		GROUP BY conversation_id
	)
	ORDER BY x.created_at DESC, x.id DESC`

type messageReports struct {
	db *sqlx.DB
}

var _ message.ReportRepository = (*messageReports)(nil) // interface compliance check

func NewMessageReports(db *sqlx.DB) *messageReports {
	return &messageReports{db: db}
}

func (repo messageReports) QueryConversations(ctx context.Context, userID int) ([]message.Conversation, error) {
	convs := make([]message.Conversation, 0)
	err := repo.db.SelectContext(ctx, &convs, conversationsQuery, userID, userID, userID, userID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	return convs, nil
}
