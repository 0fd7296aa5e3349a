package note

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFichiers_Scan(t *testing.T) {
	var f Fichiers
	require.NoError(t, f.Scan(`[{"nom":"tajwid.pdf","url":"/uploads/notes/a.pdf","type":"application/pdf"}]`))
	require.Len(t, f, 1)
	assert.Equal(t, "tajwid.pdf", f[0].Nom)

	require.NoError(t, f.Scan(nil))
	assert.Empty(t, f)
	assert.Error(t, f.Scan(42))

	v, err := Fichiers(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestContents_Apply(t *testing.T) {
	resume := "Révision de la sourate"
	empty := ""
	pct := 40
	n := Note{}
	n.Devoirs.SetValid("lire p.12")

	Contents{Resume: &resume, Devoirs: &empty, ProgressionPourcentage: &pct}.Apply(&n)

	assert.Equal(t, resume, n.Resume.String)
	assert.False(t, n.Devoirs.Valid)
	assert.Equal(t, 40, n.ProgressionPourcentage.Int)
	assert.False(t, n.CommentaireProf.Valid)
}

func TestNewNote_Validate(t *testing.T) {
	validate := validator.New()

	pct := 120
	nn := NewNote{CoursID: 1, Contents: Contents{ProgressionPourcentage: &pct}}
	assert.Error(t, nn.Validate(validate))

	pct = 100
	resume := "<i>bien</i>"
	nn = NewNote{CoursID: 1, Contents: Contents{ProgressionPourcentage: &pct, Resume: &resume}}
	require.NoError(t, nn.Validate(validate))
	assert.Equal(t, "bien", *nn.Resume)

	assert.Error(t, (&NewNote{}).Validate(validate))
}
