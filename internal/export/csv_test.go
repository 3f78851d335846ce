package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tggeco/challenge-api/internal/types"
)

func TestWrite(t *testing.T) {
	var b strings.Builder
	n, err := Write(&b, []string{"A", "B"}, [][]string{
		{`say "hi"`, "plain"},
		{"", "comma, inside"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, "\"A\",\"B\"\n\"say \"\"hi\"\"\",\"plain\"\n\"\",\"comma, inside\"", b.String())
}

func TestWriteHeaderOnly(t *testing.T) {
	var b strings.Builder
	n, err := Write(&b, []string{"Only"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, n)
	assert.Equal(t, `"Only"`, b.String())
}

func TestRender(t *testing.T) {
	ust := types.UniversityUST
	team := types.ParticipationTypeTeam
	registered := time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC)
	submitted := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Participants", func(t *testing.T) {
		var b strings.Builder
		n, err := Render(context.Background(), &b, types.ExportKindParticipants, []Participant{{
			RegisteredAt:      registered,
			University:        &ust,
			ParticipationType: &team,
			FirstName:         "Ada",
			LastName:          "Obi",
			Department:        "Civil",
			YearOfStudy:       "3",
			Phone:             "+234",
			Gender:            "female",
		}}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		lines := strings.Split(b.String(), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t,
			`"First Name","Last Name","University","Department","Year","Type","Phone","Gender","Registered At"`,
			lines[0],
		)
		assert.Equal(t, `"Ada","Obi","UST","Civil","3","team","+234","female","2026-03-04"`, lines[1])
	})

	t.Run("Submissions", func(t *testing.T) {
		var b strings.Builder
		n, err := Render(context.Background(), &b, types.ExportKindSubmissions, nil, []Submission{
			{
				SubmittedAt:   &submitted,
				UpdatedAt:     submitted,
				University:    &ust,
				ReferenceCode: "TGG-2026-ABC234",
				Title:         `The "Green" Roof`,
				Category:      "Energy",
				Status:        types.SubmissionStatusSubmitted,
				Submitter:     "Ada Obi",
			},
			{
				UpdatedAt:     registered,
				ReferenceCode: "TGG-2026-XYZ789",
				Status:        types.SubmissionStatusDraft,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		lines := strings.Split(b.String(), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t,
			`"Reference","Title","Category","Status","Submitter","University","Submitted","Last Updated"`,
			lines[0],
		)
		assert.Equal(t,
			`"TGG-2026-ABC234","The ""Green"" Roof","Energy","submitted","Ada Obi","UST","2026-05-01","2026-05-01"`,
			lines[1],
		)
		assert.Equal(t, `"TGG-2026-XYZ789","","","draft","","","","2026-03-04"`, lines[2])
	})

	t.Run("UnknownKind", func(t *testing.T) {
		var b strings.Builder
		_, err := Render(context.Background(), &b, "teams", nil, nil)
		assert.Error(t, err)
		assert.Empty(t, b.String())
	})
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "participants_2026-10-16.csv", Filename(types.ExportKindParticipants, now))
}
