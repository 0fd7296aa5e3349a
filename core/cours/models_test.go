package cours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/maraakiz/core"
)

func TestExpandSchedule(t *testing.T) {
	// 2024-09-02 is a Monday
	start := core.NewDate(2024, time.September, 2)
	end := core.NewDate(2024, time.September, 15)

	t.Run("two weekdays over two weeks", func(t *testing.T) {
		schedule := map[string]TimeRange{
			"0": {Debut: "10:00", Fin: "11:30"}, // Monday
			"3": {Debut: "18:00", Fin: "19:00"}, // Thursday
		}
		slots, err := ExpandSchedule(schedule, start, end)
		require.NoError(t, err)
		require.Len(t, slots, 4)

		want := []time.Time{
			time.Date(2024, time.September, 2, 10, 0, 0, 0, time.UTC),
			time.Date(2024, time.September, 5, 18, 0, 0, 0, time.UTC),
			time.Date(2024, time.September, 9, 10, 0, 0, 0, time.UTC),
			time.Date(2024, time.September, 12, 18, 0, 0, 0, time.UTC),
		}
		for i, slot := range slots {
			assert.Equal(t, want[i], slot.Debut)
		}
		assert.Equal(t, time.Date(2024, time.September, 2, 11, 30, 0, 0, time.UTC), slots[0].Fin)
	})

	t.Run("end date is inclusive", func(t *testing.T) {
		schedule := map[string]TimeRange{"6": {Debut: "09:00", Fin: "10:00"}} // Sunday
		slots, err := ExpandSchedule(schedule, start, end)
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.Equal(t, 15, slots[1].Debut.Day())
	})

	t.Run("single day range", func(t *testing.T) {
		schedule := map[string]TimeRange{"0": {Debut: "09:00", Fin: "10:00"}}
		slots, err := ExpandSchedule(schedule, start, start)
		require.NoError(t, err)
		assert.Len(t, slots, 1)
	})

	t.Run("no matching weekday", func(t *testing.T) {
		schedule := map[string]TimeRange{"2": {Debut: "09:00", Fin: "10:00"}} // Wednesday
		slots, err := ExpandSchedule(schedule, start, start.AddDays(1))
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("fin before debut", func(t *testing.T) {
		schedule := map[string]TimeRange{"0": {Debut: "10:00", Fin: "09:00"}}
		_, err := ExpandSchedule(schedule, start, end)
		assert.IsType(t, &core.ValidationError{}, err)
	})

	t.Run("fin equals debut", func(t *testing.T) {
		schedule := map[string]TimeRange{"0": {Debut: "10:00", Fin: "10:00"}}
		_, err := ExpandSchedule(schedule, start, end)
		assert.Error(t, err)
	})

	t.Run("invalid weekday", func(t *testing.T) {
		schedule := map[string]TimeRange{"7": {Debut: "10:00", Fin: "11:00"}}
		_, err := ExpandSchedule(schedule, start, end)
		assert.Error(t, err)
	})
}

func TestMondayIndex(t *testing.T) {
	assert.Equal(t, 0, mondayIndex(time.Monday))
	assert.Equal(t, 5, mondayIndex(time.Saturday))
	assert.Equal(t, 6, mondayIndex(time.Sunday))
}

func TestEvent_FullDescription(t *testing.T) {
	ev := Event{
		Description: "Sourate Al-Mulk",
		EleveNoms:   []string{"Yusuf Benali", "Maryam Haddad"},
		LienVisio:   "https://meet.example.com/abc",
	}
	assert.Equal(t,
		"Sourate Al-Mulk\n\nÉlèves: Yusuf Benali, Maryam Haddad\n\nLien visio: https://meet.example.com/abc",
		ev.FullDescription(),
	)
	assert.Equal(t, "Élèves: Yusuf Benali", Event{EleveNoms: []string{"Yusuf Benali"}}.FullDescription())
	assert.Equal(t, "", Event{}.FullDescription())
}

func TestUpdate_Apply(t *testing.T) {
	debut := time.Date(2024, time.September, 2, 10, 0, 0, 0, time.UTC)
	c := Cours{DateDebut: debut, DateFin: debut.Add(time.Hour), Duree: 60, Statut: StatutPlanifie}

	fin := core.DateTime{Time: debut.Add(90 * time.Minute)}
	statut := StatutTermine
	require.NoError(t, Update{DateFin: &fin, Statut: &statut}.Apply(&c))
	assert.Equal(t, 90, c.Duree)
	assert.Equal(t, StatutTermine, c.Statut)

	early := core.DateTime{Time: debut.Add(-time.Hour)}
	assert.Error(t, Update{DateFin: &early}.Apply(&c))
}

func TestCours_IsSeriesParent(t *testing.T) {
	parent := Cours{ID: 3, IsRecurrent: true}
	parent.RecurrenceParentID.SetValid(3)
	child := Cours{ID: 4, IsRecurrent: true}
	child.RecurrenceParentID.SetValid(3)

	assert.True(t, parent.IsSeriesParent())
	assert.False(t, child.IsSeriesParent())
	assert.False(t, Cours{ID: 5}.IsSeriesParent())
}
