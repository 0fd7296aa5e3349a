package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/cours"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/paiement"
	"github.com/maraakiz/maraakiz/core/user"
	"github.com/maraakiz/maraakiz/storage/database"
)

// Password is the password of every user created by the fixtures.
const Password = "Passw0rd!x"

// OpenDB opens a migrated in-memory database private to the test.
func OpenDB(t *testing.T) *database.DB {
	t.Helper()
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, t.Name())

	db, err := database.OpenDSN(fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name), false)
	require.NoError(t, err)
	// one connection keeps the memory database alive and avoids shared-cache locks
	db.SQL().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.SQL()))
	return db
}

func create(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	require.NoError(t, db.Create(value).Error)
}

// CreateMerkez inserts a merkez of type typ (professeur by default).
func CreateMerkez(t *testing.T, db *gorm.DB, nom string, typ ...string) merkez.Merkez {
	mk := merkez.Merkez{
		Type:  merkez.TypeProfesseur,
		Nom:   nom,
		Email: strings.ToLower(strings.ReplaceAll(nom, " ", ".")) + "@maraakiz.test",
		Actif: true,
	}
	if len(typ) > 0 {
		mk.Type = typ[0]
	}
	mk.PrepareNew(time.Now().UTC())
	create(t, db, &mk)
	return mk
}

// CreateUser inserts an active user with the Password fixture, linked to merkezID when > 0.
func CreateUser(t *testing.T, db *gorm.DB, nom, email, userType string, merkezID int) user.User {
	now := time.Now().UTC()
	usr := user.User{
		Email:      email,
		Nom:        nom,
		UserType:   userType,
		MerkezID:   null.NewInt(merkezID, merkezID > 0),
		AvatarType: "default",
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, usr.SetPassword(Password))
	create(t, db, &usr)
	return usr
}

// CreateProf inserts a merkez and the prof account owning it.
func CreateProf(t *testing.T, db *gorm.DB, nom, email string) (user.User, merkez.Merkez) {
	mk := CreateMerkez(t, db, nom)
	return CreateUser(t, db, nom, email, user.TypeProf, mk.ID), mk
}

// CreateEleve inserts a student of merkezID, linked to the userID account when > 0.
func CreateEleve(t *testing.T, db *gorm.DB, merkezID int, prenom, nom string, userID int) eleve.Eleve {
	now := time.Now().UTC()
	e := eleve.Eleve{
		MerkezID:        merkezID,
		UserID:          null.NewInt(userID, userID > 0),
		Nom:             nom,
		Prenom:          prenom,
		Matieres:        core.StringList{},
		TarifHeure:      decimal.NewFromInt(20),
		Statut:          eleve.StatutActif,
		DateInscription: core.DateOf(now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	create(t, db, &e)
	require.NoError(t, db.Model(&merkez.Merkez{}).Where("id = ?", merkezID).
		Update("nombre_eleves", gorm.Expr("nombre_eleves + 1")).Error)
	return e
}

// CreateCours inserts a planned one-hour cours starting at debut, with eleveIDs enrolled.
func CreateCours(t *testing.T, db *gorm.DB, merkezID int, titre string, debut time.Time, eleveIDs ...int) cours.Cours {
	now := time.Now().UTC()
	c := cours.Cours{
		MerkezID:  merkezID,
		Titre:     titre,
		DateDebut: debut.UTC(),
		DateFin:   debut.Add(time.Hour).UTC(),
		Duree:     60,
		TypeCours: cours.TypeEnLigne,
		Statut:    cours.StatutPlanifie,
		CreatedAt: now,
		UpdatedAt: now,
	}
	create(t, db, &c)
	for _, id := range eleveIDs {
		require.NoError(t, db.Exec("INSERT INTO cours_eleves (cours_id, eleve_id, presente) VALUES (?, ?, ?)", c.ID, id, false).Error)
		c.Eleves = append(c.Eleves, cours.CoursEleve{ID: id})
	}
	return c
}

// CreatePaiement inserts the paiement of a month, due on echeance, with its status computed for today.
func CreatePaiement(t *testing.T, db *gorm.DB, e eleve.Eleve, mois, annee int, du, paye string, echeance core.Date) paiement.Paiement {
	now := time.Now().UTC()
	p := paiement.Paiement{
		EleveID:      e.ID,
		MerkezID:     e.MerkezID,
		Mois:         mois,
		Annee:        annee,
		MontantDu:    decimal.RequireFromString(du),
		MontantPaye:  decimal.RequireFromString(paye),
		DateEcheance: echeance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.Statut = paiement.CalculateStatut(p.MontantDu, p.MontantPaye, p.DateEcheance, core.DateOf(now))
	if p.Statut == paiement.StatutPaye {
		p.DatePaiement = core.DateOf(now)
	}
	create(t, db, &p)
	return p
}
