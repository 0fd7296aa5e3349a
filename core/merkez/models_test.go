package merkez

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maraakiz/maraakiz/core"
)

func TestPublicFilter_Match(t *testing.T) {
	prof := Merkez{
		ID: 1, Type: TypeProfesseur, Actif: true,
		Matieres: core.StringList{"Coran", "Tajwid"},
		Formats:  core.StringList{"en_ligne"},
		Niveaux:  core.StringList{"debutant"},
	}
	institut := Merkez{ID: 2, Type: TypeInstitut, Actif: true, Matieres: core.StringList{"Arabe"}}
	inactive := Merkez{ID: 3, Type: TypeProfesseur, Matieres: core.StringList{"Coran"}}

	tests := []struct {
		name   string
		filter PublicFilter
		mk     Merkez
		want   bool
	}{
		{name: "no filter", mk: prof, want: true},
		{name: "inactive", mk: inactive, want: false},
		{name: "type", filter: PublicFilter{Types: []string{TypeInstitut}}, mk: prof, want: false},
		{name: "matiere OR", filter: PublicFilter{Matieres: []string{"Arabe", "Tajwid"}}, mk: prof, want: true},
		{name: "filters AND", filter: PublicFilter{Matieres: []string{"Coran"}, Formats: []string{"presentiel"}}, mk: prof, want: false},
		{name: "empty list fails filter", filter: PublicFilter{Formats: []string{"en_ligne"}}, mk: institut, want: false},
		{name: "all match", filter: PublicFilter{
			Types: []string{TypeProfesseur}, Matieres: []string{"Coran"}, Formats: []string{"en_ligne"}, Niveaux: []string{"debutant"},
		}, mk: prof, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.mk))
		})
	}
}

func TestPublicFilter_Clean(t *testing.T) {
	f := PublicFilter{Matieres: []string{"Coran, Arabe", " ", "Tajwid"}}
	f.Clean()
	assert.Equal(t, []string{"Coran", "Arabe", "Tajwid"}, f.Matieres)
	assert.Empty(t, f.Types)
}

func TestSortByNote(t *testing.T) {
	mks := []Merkez{{ID: 3, NoteMoyenne: 4}, {ID: 1, NoteMoyenne: 4.5}, {ID: 2, NoteMoyenne: 4}}
	SortByNote(mks)
	assert.Equal(t, []int{1, 2, 3}, []int{mks[0].ID, mks[1].ID, mks[2].ID})
}

func TestUpdate_Apply(t *testing.T) {
	mk := Merkez{Nom: "Old", Pays: "France", Matieres: core.StringList{"Coran"}}
	nom, ville, pays := "Nouveau nom", "Lyon", ""
	matieres := []string{"Arabe", " ", "<b>Tajwid</b>"}
	gratuit := true

	upd := Update{Nom: &nom, Ville: &ville, Pays: &pays, Matieres: &matieres, PremierCoursGratuit: &gratuit}
	upd.Apply(&mk)

	assert.Equal(t, "Nouveau nom", mk.Nom)
	assert.Equal(t, "Lyon", mk.Ville.String)
	assert.True(t, mk.Ville.Valid)
	assert.Equal(t, "France", mk.Pays, "empty pays is ignored")
	assert.Equal(t, core.StringList{"Arabe", "Tajwid"}, mk.Matieres)
	assert.True(t, mk.PremierCoursGratuit)
	assert.False(t, mk.Telephone.Valid)
}
