package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/message"
	"github.com/maraakiz/maraakiz/core/paiement"
	"github.com/maraakiz/maraakiz/core/ressource"
	"github.com/maraakiz/maraakiz/core/user"
	gormrepos "github.com/maraakiz/maraakiz/storage/database/gorm"
	sqlxrepos "github.com/maraakiz/maraakiz/storage/database/sqlx"
	testutil "github.com/maraakiz/maraakiz/tests"
)

func TestPaiementReports(t *testing.T) {
	db := testutil.OpenDB(t)
	reports := sqlxrepos.NewPaiementReports(db.Sqlx)
	ctx := context.Background()
	_, mk := testutil.CreateProf(t, db.Gorm, "Ustadh Karim", "karim@maraakiz.test")
	e := testutil.CreateEleve(t, db.Gorm, mk.ID, "Amina", "Benali", 0)

	jan := testutil.CreatePaiement(t, db.Gorm, e, 1, 2024, "100", "40", core.NewDate(2024, 1, 10))
	testutil.CreatePaiement(t, db.Gorm, e, 2, 2024, "50", "50", core.NewDate(2024, 2, 10))
	testutil.CreatePaiement(t, db.Gorm, e, 3, 2099, "80", "0", core.NewDate(2099, 3, 10))

	t.Run("stats", func(t *testing.T) {
		stats, err := reports.Stats(ctx, mk.ID)
		require.NoError(t, err)
		assert.True(t, stats.TotalDu.Equal(decimal.NewFromInt(230)), stats.TotalDu.String())
		assert.True(t, stats.TotalPaye.Equal(decimal.NewFromInt(90)), stats.TotalPaye.String())
		assert.Equal(t, 1, stats.ImpayeCount)
		assert.Equal(t, 0, stats.EnRetardCount)

		other, err := reports.Stats(ctx, mk.ID+100)
		require.NoError(t, err)
		assert.True(t, other.TotalDu.IsZero())
	})

	t.Run("refresh overdue leaves partial payments alone", func(t *testing.T) {
		n, err := reports.RefreshOverdue(ctx, mk.ID, core.NewDate(2099, 4, 1))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		stats, err := reports.Stats(ctx, mk.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.ImpayeCount, "overdue paiements are still unpaid")
		assert.Equal(t, 1, stats.EnRetardCount)

		got, err := gormrepos.NewPaiementRepository(db.Gorm).GetPaiement(ctx, jan.ID)
		require.NoError(t, err)
		assert.Equal(t, paiement.StatutPartiel, got.Statut)
	})

	t.Run("reminder candidates", func(t *testing.T) {
		now := time.Now().UTC()
		details, err := reports.ReminderCandidates(ctx, mk.ID, core.NewDate(2024, 6, 1), now)
		require.NoError(t, err)
		require.Len(t, details, 1)
		assert.Equal(t, jan.ID, details[0].ID)
		assert.Equal(t, "Amina", details[0].ElevePrenom)
		assert.Equal(t, "Ustadh Karim", details[0].MerkezNom)
		assert.Equal(t, "60", details[0].MontantRestant.String())

		require.NoError(t, db.Gorm.Model(&paiement.Paiement{}).Where("id = ?", jan.ID).
			Updates(map[string]interface{}{"rappel_envoye": true, "date_rappel": now}).Error)
		details, err = reports.ReminderCandidates(ctx, 0, core.NewDate(2024, 6, 1), now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, details)
	})

	t.Run("archived months", func(t *testing.T) {
		months, err := reports.ArchivedMonths(ctx, mk.ID)
		require.NoError(t, err)
		assert.Empty(t, months)

		_, err = gormrepos.NewPaiementRepository(db.Gorm).SetArchived(ctx, mk.ID, 1, 2024, true, time.Now().UTC())
		require.NoError(t, err)

		months, err = reports.ArchivedMonths(ctx, mk.ID)
		require.NoError(t, err)
		require.Len(t, months, 1)
		assert.Equal(t, 1, months[0].Mois)
		assert.Equal(t, 2024, months[0].Annee)
		assert.Equal(t, 1, months[0].Count)
		assert.True(t, months[0].TotalDu.Equal(decimal.NewFromInt(100)))

		stats, err := reports.Stats(ctx, mk.ID)
		require.NoError(t, err)
		assert.True(t, stats.TotalDu.Equal(decimal.NewFromInt(130)), stats.TotalDu.String())
	})
}

func TestPaiementReports_exactTotals(t *testing.T) {
	db := testutil.OpenDB(t)
	reports := sqlxrepos.NewPaiementReports(db.Sqlx)
	ctx := context.Background()
	_, mk := testutil.CreateProf(t, db.Gorm, "Ustadh Karim", "karim@maraakiz.test")
	amina := testutil.CreateEleve(t, db.Gorm, mk.ID, "Amina", "Benali", 0)
	yusuf := testutil.CreateEleve(t, db.Gorm, mk.ID, "Yusuf", "Ali", 0)

	testutil.CreatePaiement(t, db.Gorm, amina, 1, 2024, "0.1", "0.1", core.NewDate(2024, 1, 10))
	testutil.CreatePaiement(t, db.Gorm, yusuf, 1, 2024, "0.2", "0", core.NewDate(2024, 1, 10))
	testutil.CreatePaiement(t, db.Gorm, yusuf, 2, 2099, "19.99", "0", core.NewDate(2099, 2, 10))

	stats, err := reports.Stats(ctx, mk.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.29", stats.TotalDu.String())
	assert.Equal(t, "0.1", stats.TotalPaye.String())
	assert.Equal(t, 2, stats.ImpayeCount, "impaye and en_retard")
	assert.Equal(t, 1, stats.EnRetardCount)

	_, err = gormrepos.NewPaiementRepository(db.Gorm).SetArchived(ctx, mk.ID, 1, 2024, true, time.Now().UTC())
	require.NoError(t, err)
	months, err := reports.ArchivedMonths(ctx, mk.ID)
	require.NoError(t, err)
	require.Len(t, months, 1)
	assert.Equal(t, 2, months[0].Count)
	assert.Equal(t, "0.3", months[0].TotalDu.String())
	assert.Equal(t, "0.1", months[0].TotalPaye.String())
}

func TestMessageReports_QueryConversations(t *testing.T) {
	db := testutil.OpenDB(t)
	reports := sqlxrepos.NewMessageReports(db.Sqlx)
	repo := gormrepos.NewMessageRepository(db.Gorm)
	ctx := context.Background()
	prof, _ := testutil.CreateProf(t, db.Gorm, "Ustadh Karim", "karim@maraakiz.test")
	amina := testutil.CreateUser(t, db.Gorm, "Amina Benali", "amina@maraakiz.test", user.TypeEleve, 0)
	yusuf := testutil.CreateUser(t, db.Gorm, "Yusuf Ali", "yusuf@maraakiz.test", user.TypeEleve, 0)

	now := time.Now().UTC()
	send := func(from, to user.User, content string, at time.Time) {
		_, err := repo.CreateMessage(ctx, message.Message{
			ExpediteurID: from.ID, DestinataireID: to.ID,
			ExpediteurType: from.UserType, DestinataireType: to.UserType,
			Contenu: null.StringFrom(content), ConversationID: message.ConversationID(from.ID, to.ID),
			CreatedAt: at, UpdatedAt: at,
		})
		require.NoError(t, err)
	}
	send(prof, amina, "salam", now.Add(-3*time.Minute))
	send(amina, prof, "wa alaykum salam", now.Add(-2*time.Minute))
	send(prof, yusuf, "cours demain", now.Add(-time.Minute))
	send(prof, yusuf, "a 10h", now)

	convs, err := reports.QueryConversations(ctx, prof.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, yusuf.ID, convs[0].AutreUserID)
	assert.Equal(t, "Yusuf Ali", convs[0].AutreUserNom)
	assert.Equal(t, "a 10h", convs[0].DernierMessage)
	assert.Equal(t, 0, convs[0].NonLus)
	assert.Equal(t, amina.ID, convs[1].AutreUserID)
	assert.Equal(t, 1, convs[1].NonLus)

	convs, err = reports.QueryConversations(ctx, yusuf.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, prof.ID, convs[0].AutreUserID)
	assert.Equal(t, user.TypeProf, convs[0].AutreUserType)
	assert.Equal(t, 2, convs[0].NonLus)
}

func TestRessourceReports_QueryFolders(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := gormrepos.NewRessourceRepository(db.Gorm)
	ctx := context.Background()
	_, mk := testutil.CreateProf(t, db.Gorm, "Ustadh Karim", "karim@maraakiz.test")

	now := time.Now().UTC()
	for i, dossier := range []string{"Tajwid", "Fiqh", "Tajwid", ""} {
		_, err := repo.CreateRessource(ctx, ressource.Ressource{
			MerkezID: mk.ID, Titre: "doc", FichierNom: "doc.pdf", FichierURL: "/uploads/bibliotheque/doc.pdf",
			FichierType: "application/pdf", Categorie: ressource.CategorieDocument, AccesType: ressource.AccesPrive,
			ElevesAutorises: core.IntList{}, Tags: core.StringList{}, Dossier: null.NewString(dossier, i != 3),
			CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	}

	folders, err := sqlxrepos.NewRessourceReports(db.Sqlx).QueryFolders(ctx, mk.ID)
	require.NoError(t, err)
	assert.Equal(t, []ressource.Folder{{Nom: "Fiqh"}, {Nom: "Tajwid"}}, folders)
}
