package tickets

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{"ID", "Reference", "Title", "Status", "Priority", "Project", "Created By", "Assignee", "Created At", "Updated At"}

// WriteCSV serialises tickets as CSV with a header row.
func WriteCSV(w io.Writer, items []Ticket) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range items {
		if err := writer.Write([]string{
			strconv.FormatInt(t.ID, 10),
			t.Reference.String(),
			t.Title,
			string(t.Status),
			string(t.Priority),
			formatOptional(t.ProjectID),
			strconv.FormatInt(t.CreatedBy, 10),
			formatOptional(t.AssigneeID),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatOptional(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
