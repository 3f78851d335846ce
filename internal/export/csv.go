// Package export renders participant and submission listings as CSV. Every
// value is quoted, embedded quotes are doubled and rows are separated by a bare newline.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tggeco/challenge-api/internal/types"
)

var tracer = otel.Tracer("github.com/tggeco/challenge-api/internal/export")

const dateLayout = time.DateOnly

var (
	ParticipantHeaders = []string{
		"First Name", "Last Name", "University", "Department", "Year",
		"Type", "Phone", "Gender", "Registered At",
	}
	SubmissionHeaders = []string{
		"Reference", "Title", "Category", "Status", "Submitter",
		"University", "Submitted", "Last Updated",
	}
)

type Participant struct {
	RegisteredAt      time.Time
	University        *types.University
	ParticipationType *types.ParticipationType
	FirstName         string
	LastName          string
	Department        string
	YearOfStudy       string
	Phone             string
	Gender            string
}

type Submission struct {
	SubmittedAt   *time.Time
	UpdatedAt     time.Time
	University    *types.University
	ReferenceCode string
	Title         string
	Category      string
	Status        types.SubmissionStatus
	Submitter     string
}

func quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

func deref[T ~string](v *T) string {
	if v == nil {
		return ""
	}
	return string(*v)
}

func date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// Writes header and rows. Returns the number of data rows written.
func Write(w io.Writer, header []string, rows [][]string) (int, error) {
	lines := make([]string, 0, len(rows)+1)
	for _, row := range append([][]string{header}, rows...) {
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = quote(v)
		}
		lines = append(lines, strings.Join(fields, ","))
	}

	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return 0, fmt.Errorf("failed to write csv: %w", err)
	}
	return len(rows), nil
}

func ParticipantRows(participants []Participant) [][]string {
	rows := make([][]string, len(participants))
	for i, p := range participants {
		rows[i] = []string{
			p.FirstName,
			p.LastName,
			deref(p.University),
			p.Department,
			p.YearOfStudy,
			deref(p.ParticipationType),
			p.Phone,
			p.Gender,
			date(&p.RegisteredAt),
		}
	}
	return rows
}

func SubmissionRows(submissions []Submission) [][]string {
	rows := make([][]string, len(submissions))
	for i, s := range submissions {
		rows[i] = []string{
			s.ReferenceCode,
			s.Title,
			s.Category,
			string(s.Status),
			s.Submitter,
			deref(s.University),
			date(s.SubmittedAt),
			date(&s.UpdatedAt),
		}
	}
	return rows
}

// Renders the export for kind. Returns the row count for auditing.
func Render(ctx context.Context, w io.Writer, kind types.ExportKind, participants []Participant, submissions []Submission) (int, error) {
	_, span := tracer.Start(ctx, "Render", trace.WithAttributes(
		attribute.String("kind", string(kind)),
	))
	defer span.End()

	var n int
	var err error
	switch kind {
	case types.ExportKindParticipants:
		n, err = Write(w, ParticipantHeaders, ParticipantRows(participants))
	case types.ExportKindSubmissions:
		n, err = Write(w, SubmissionHeaders, SubmissionRows(submissions))
	default:
		err = fmt.Errorf("unknown export kind %q", kind)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to render export")
		return 0, err
	}

	span.SetAttributes(attribute.Int("rows", n))
	span.SetStatus(codes.Ok, "rendered export")
	return n, nil
}

// <kind>_<date>.csv
func Filename(kind types.ExportKind, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", kind, now.UTC().Format(dateLayout))
}
