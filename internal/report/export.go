package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/zulandar/punchlist/internal/apperr"
)

// Writer serializes rows into one export format.
type Writer interface {
	Write(w io.Writer, rows []Row) error
	ContentType() string
	Extension() string
}

// Artifact is a rendered export.
type Artifact struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Header lists export columns in row order.
var Header = []string{"Project", "Defect", "Task", "Status", "Assignee", "Due date", "History entries", "Last update"}

// CSVWriter renders rows as RFC 4180 CSV.
type CSVWriter struct{}

func (CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }
func (CSVWriter) Extension() string   { return "csv" }

func (CSVWriter) Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		due := ""
		if r.DueDate != nil {
			due = r.DueDate.Format("2006-01-02")
		}
		rec := []string{
			r.ProjectName,
			r.DefectName,
			r.TaskName,
			r.Status,
			r.AssigneeName,
			due,
			strconv.Itoa(r.HistoryCount),
			r.LastUpdate.Format("2006-01-02 15:04"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName returns report_<YYYYMMDD_HHMM>.<ext> for now.
func FileName(now time.Time, ext string) string {
	return "report_" + now.Format("20060102_1504") + "." + ext
}

// Export renders rows with w. A nil writer means CSV.
func Export(rows []Row, w Writer, now time.Time) (*Artifact, error) {
	if w == nil {
		w = CSVWriter{}
	}
	var buf bytes.Buffer
	if err := w.Write(&buf, rows); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "report: render export")
	}
	return &Artifact{
		FileName:    FileName(now, w.Extension()),
		ContentType: w.ContentType(),
		Content:     buf.Bytes(),
	}, nil
}
