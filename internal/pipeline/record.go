package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cardcrop/internal/barcode"
	"gopkg.in/yaml.v3"
)

// Record is the serialized outcome for one crop or one failed image.
type Record struct {
	SourcePath string           `json:"source_path" yaml:"source_path"`
	Card       int              `json:"card,omitempty" yaml:"card,omitempty"`
	Success    bool             `json:"success" yaml:"success"`
	OutputPath *string          `json:"output_path" yaml:"output_path"`
	Corners    *[4][2]float64   `json:"corners" yaml:"corners"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Error      *string          `json:"error" yaml:"error"`
	Stage      *string          `json:"stage" yaml:"stage"`
	Kind       string           `json:"kind,omitempty" yaml:"kind,omitempty"`
	Method     string           `json:"method,omitempty" yaml:"method,omitempty"`
	Width      int              `json:"width,omitempty" yaml:"width,omitempty"`
	Height     int              `json:"height,omitempty" yaml:"height,omitempty"`
	DurationMs int64            `json:"duration_ms" yaml:"duration_ms"`
	Text       string           `json:"text,omitempty" yaml:"text,omitempty"`
	Rotation   int              `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Barcodes   []barcode.Result `json:"barcodes,omitempty" yaml:"barcodes,omitempty"`
}

// Records converts a run into output records. outputs holds the written
// path of each crop, in order; missing or empty entries become null.
func Records(res *Result, outputs []string, err error) []Record {
	ms := res.Duration.Milliseconds()
	if len(res.Crops) == 0 {
		if err == nil {
			err = NewError(ErrNoQuadrilateral, StageFallback, nil)
		}
		msg := err.Error()
		rec := Record{SourcePath: res.ID, Error: &msg, Kind: KindName(err), DurationMs: ms}
		if st, ok := StageOf(err); ok {
			name := st.String()
			rec.Stage = &name
		}
		return []Record{rec}
	}

	recs := make([]Record, 0, len(res.Crops))
	for i, c := range res.Crops {
		corners := [4][2]float64{}
		for j, p := range c.Corners {
			corners[j] = [2]float64{p.X, p.Y}
		}
		rec := Record{
			SourcePath: res.ID,
			Success:    true,
			Corners:    &corners,
			Confidence: 1.0,
			Method:     c.Method,
			Width:      c.Width,
			Height:     c.Height,
			DurationMs: ms,
		}
		if len(res.Crops) > 1 {
			rec.Card = c.Index
		}
		if i < len(outputs) && outputs[i] != "" {
			out := outputs[i]
			rec.OutputPath = &out
		}
		if c.Text != nil {
			rec.Text = c.Text.Content
		}
		rec.Rotation = c.Rotation
		rec.Barcodes = c.Barcodes
		recs = append(recs, rec)
	}
	return recs
}

// Format selects the record serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat accepts json, csv, yaml/yml and text/txt.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// WriteRecords serializes recs to w.
func WriteRecords(w io.Writer, recs []Record, f Format) error {
	if recs == nil {
		recs = []Record{}
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, recs)
	case FormatText:
		for _, r := range recs {
			if _, err := fmt.Fprintln(w, r.String()); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.New("unknown format " + string(f))
}

var csvHeader = []string{
	"source_path", "card", "success", "output_path",
	"tl_x", "tl_y", "tr_x", "tr_y", "br_x", "br_y", "bl_x", "bl_y",
	"confidence", "method", "width", "height", "duration_ms", "stage", "error", "text",
	"rotation", "barcodes",
}

func writeCSV(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
	for _, r := range recs {
		row := make([]string, 0, len(csvHeader))
		row = append(row, r.SourcePath, strconv.Itoa(r.Card), strconv.FormatBool(r.Success), deref(r.OutputPath))
		if r.Corners != nil {
			for _, c := range r.Corners {
				row = append(row, f(c[0]), f(c[1]))
			}
		} else {
			row = append(row, make([]string, 8)...)
		}
		row = append(row,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			r.Method,
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
			strconv.FormatInt(r.DurationMs, 10),
			deref(r.Stage),
			deref(r.Error),
			r.Text,
			strconv.Itoa(r.Rotation),
			joinBarcodes(r.Barcodes),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// joinBarcodes renders codes as "format:text" pairs separated by ";".
func joinBarcodes(codes []barcode.Result) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c.Format.String() + ":" + c.Text
	}
	return strings.Join(parts, ";")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// String renders a one-line human readable summary.
func (r Record) String() string {
	name := r.SourcePath
	if r.Card > 0 {
		name += fmt.Sprintf(" [card %d]", r.Card)
	}
	if !r.Success {
		return fmt.Sprintf("%s: FAILED at %s: %s", name, deref(r.Stage), deref(r.Error))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: OK %dx%d via %s", name, r.Width, r.Height, r.Method)
	if r.OutputPath != nil {
		fmt.Fprintf(&b, " -> %s", *r.OutputPath)
	}
	if r.Rotation != 0 {
		fmt.Fprintf(&b, " rotated %d", r.Rotation)
	}
	if len(r.Barcodes) > 0 {
		fmt.Fprintf(&b, " [%s]", joinBarcodes(r.Barcodes))
	}
	if r.Text != "" {
		fmt.Fprintf(&b, " %q", r.Text)
	}
	return b.String()
}
