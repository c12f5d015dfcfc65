package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDrift(w io.Writer, format string, drift []models.RosterDrift) error {
	if format == "json" {
		if drift == nil {
			drift = []models.RosterDrift{}
		}
		return writeJSON(w, drift)
	}
	if len(drift) == 0 {
		_, err := fmt.Fprintln(w, "all rosters match student classes")
		return err
	}
	for _, d := range drift {
		if _, err := fmt.Fprintf(w, "%s (%s)\n  missing: %s\n  extra:   %s\n",
			d.ClassName, d.ClassID, listOrDash(d.Missing), listOrDash(d.Extra)); err != nil {
			return err
		}
	}
	return nil
}

func listOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
