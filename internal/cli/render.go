package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"doclookup/internal/lookup"
	"doclookup/internal/odata"

	"go.uber.org/zap"
)

func writeResponse(w io.Writer, asJSON bool, resp response) error {
	if asJSON {
		return json.NewEncoder(w).Encode(resp)
	}
	return writeHumanResponse(w, resp)
}

func writeHumanResponse(w io.Writer, resp response) error {
	for _, n := range resp.Notices {
		fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Message)
	}

	switch resp.view {
	case viewHelp:
		fmt.Fprintln(w, resp.Message)
	case viewDocument:
		writeDocument(w, resp)
	case viewSuggestions:
		if len(resp.Suggestions) == 0 {
			fmt.Fprintln(w, "- (no suggestions)")
			return nil
		}
		for _, s := range resp.Suggestions {
			fmt.Fprintf(w, "- %s\n", s.Key)
		}
	case viewPicker:
		fmt.Fprintf(w, "%d of %d %ss\n", len(resp.Rows), resp.Loaded, resp.def.Label)
		writeTable(w, resp.def.FilterFields, resp.Rows, true)
	case viewHistory:
		if len(resp.History) == 0 {
			fmt.Fprintln(w, "- (no lookups yet)")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for i, e := range resp.History {
			status := "found"
			if !e.Found {
				status = "failed"
			}
			fmt.Fprintf(tw, "%d)\t%s\t%s\t%s\t%s\n", i+1, e.At.Format("15:04:05"), e.Type, e.Key, status)
		}
		return tw.Flush()
	}
	return nil
}

func writeDocument(w io.Writer, resp response) {
	if len(resp.Record) == 0 {
		fmt.Fprintf(w, "%s lookup (%s page)\n", resp.def.Label, resp.Page)
		if resp.Key != "" {
			fmt.Fprintf(w, "Key: %s\n", resp.Key)
		}
		return
	}

	fmt.Fprintf(w, "%s %s\n", resp.def.Label, resp.Record.String(resp.def.KeyField))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range resp.def.DisplayFields {
		value := resp.Record.String(f.Name)
		if value == "" {
			continue
		}
		fmt.Fprintf(tw, "  %s:\t%s\n", f.Label, value)
	}
	_ = tw.Flush()

	if !resp.def.HasItems() {
		return
	}
	fmt.Fprintf(w, "\nItems (%d):\n", len(resp.Items))
	if len(resp.Items) > 0 {
		writeTable(w, resp.def.ItemFields, resp.Items, false)
	}
}

func writeTable(w io.Writer, fields []lookup.Field, rows []odata.Record, numbered bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(fields)+1)
	if numbered {
		header = append(header, "#")
	}
	for _, f := range fields {
		header = append(header, f.Label)
	}
	fmt.Fprintln(tw, "  "+strings.Join(header, "\t"))

	for i, row := range rows {
		cells := make([]string, 0, len(fields)+1)
		if numbered {
			cells = append(cells, fmt.Sprint(i+1))
		}
		for _, f := range fields {
			cells = append(cells, row.String(f.Name))
		}
		fmt.Fprintln(tw, "  "+strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func logResponse(logger *zap.Logger, resp response) {
	if logger == nil {
		return
	}
	logger.Debug("response",
		zap.String("command", resp.Command),
		zap.String("doc_type", resp.Type),
		zap.String("page", resp.Page),
		zap.String("key", resp.Key),
		zap.Int("rows", len(resp.Rows)),
		zap.Int("items", len(resp.Items)),
		zap.Int("suggestions", len(resp.Suggestions)),
		zap.Int("notices", len(resp.Notices)),
	)
}
