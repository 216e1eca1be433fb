package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/pipeline"
	"github.com/stco/stationrecon/internal/support/logger"
)

// joinedHeader is the column contract of the serialized joined dataset.
// Standard quoting applies: fields containing the delimiter or quotes are
// quoted, embedded quotes doubled.
var joinedHeader = []string{
	"grid_key", "station", "date", "cutoff_local", "cutoff_utc",
	"availability", "forecast", "adjusted", "soft_cap", "hard_cap",
	"utilization", "confidence", "severity", "flags", "tab_group", "author",
	"match_date",
}

// WriteJoinedCells serializes cells as delimited text with a header row.
func WriteJoinedCells(w io.Writer, cells []model.JoinedCell) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(joinedHeader); err != nil {
		return err
	}
	for i := range cells {
		if err := cw.Write(joinedRow(&cells[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func joinedRow(c *model.JoinedCell) []string {
	var forecast, softCap, hardCap, utilization string
	if c.Planned != nil {
		forecast = formatFloat(c.Planned.Forecast)
		softCap = formatFloat(c.Planned.SoftCap)
		hardCap = formatFloat(c.Planned.HardCap)
		utilization = formatFloat(c.Planned.Utilization)
	}
	var adjusted, author, matchDate string
	if c.Override != nil {
		adjusted = formatFloat(c.Override.Adjusted)
		author = c.Override.Author
		matchDate = c.Override.MatchDate
	}
	var severity string
	if c.Severity != nil {
		severity = strconv.Itoa(*c.Severity)
	}
	return []string{
		c.Key.String(),
		c.Key.Station,
		c.Key.Date,
		c.Key.CutoffLocal,
		c.Key.CutoffUTC,
		c.Availability,
		forecast,
		adjusted,
		softCap,
		hardCap,
		utilization,
		c.Confidence,
		severity,
		strings.Join(c.Flags, ","),
		c.TabGroup,
		author,
		matchDate,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JoinedCellReader streams a serialized joined dataset back into cells. The
// wire form is sniffed from the first byte: a JSON array of flat objects or
// delimited text with a header row. Malformed rows are counted and dropped.
type JoinedCellReader struct {
	source Source

	rc      io.ReadCloser
	csv     *csv.Reader
	json    *json.Decoder
	cols    map[string]int
	dropped int
}

func NewJoinedCellReader(source Source) *JoinedCellReader {
	return &JoinedCellReader{source: source}
}

func (r *JoinedCellReader) Open(ctx context.Context) error {
	rc, err := r.source.Fetch(ctx)
	if err != nil {
		return err
	}
	r.rc = rc
	br := bufio.NewReader(rc)

	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedRow, r.source.Name(), err)
	}

	if first == '[' {
		dec := json.NewDecoder(br)
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedRow, r.source.Name(), err)
		}
		r.json = dec
		r.cols = make(map[string]int, len(joinedHeader))
		for i, name := range joinedHeader {
			r.cols[name] = i
		}
		return nil
	}

	r.csv = csv.NewReader(br)
	r.csv.FieldsPerRecord = -1

	header, err := r.csv.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: header: %v", ErrMalformedRow, r.source.Name(), err)
	}
	r.cols = make(map[string]int, len(header))
	for i, name := range header {
		r.cols[name] = i
	}
	return nil
}

// peekNonSpace returns the first non-whitespace byte without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b, br.UnreadByte()
		}
	}
}

func (r *JoinedCellReader) Read(ctx context.Context) (model.JoinedCell, error) {
	for {
		if err := ctx.Err(); err != nil {
			return model.JoinedCell{}, err
		}
		if r.cols == nil {
			return model.JoinedCell{}, pipeline.ErrNoMoreItems
		}
		var row []string
		var err error
		if r.json != nil {
			row, err = r.readJSONRow()
		} else {
			row, err = r.csv.Read()
		}
		if err == io.EOF || err == pipeline.ErrNoMoreItems {
			return model.JoinedCell{}, pipeline.ErrNoMoreItems
		}
		if err != nil {
			r.dropped++
			logger.Warnf("%s: dropping unparseable row: %v", r.source.Name(), err)
			continue
		}
		cell, err := r.decode(row)
		if err != nil {
			r.dropped++
			logger.Warnf("%s: dropping undecodable row: %v", r.source.Name(), err)
			continue
		}
		return cell, nil
	}
}

// readJSONRow flattens the next array element into the column layout the
// delimited decoder expects.
func (r *JoinedCellReader) readJSONRow() ([]string, error) {
	if !r.json.More() {
		return nil, pipeline.ErrNoMoreItems
	}
	var obj map[string]interface{}
	if err := r.json.Decode(&obj); err != nil {
		// A decode failure here means broken syntax; the stream cannot
		// advance past it, so the reader terminates.
		r.cols = nil
		return nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	row := make([]string, len(joinedHeader))
	for i, name := range joinedHeader {
		row[i] = stringifyField(obj[name])
	}
	return row, nil
}

func stringifyField(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatFloat(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (r *JoinedCellReader) Close(ctx context.Context) error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	return err
}

// Dropped returns the number of rows skipped as malformed.
func (r *JoinedCellReader) Dropped() int { return r.dropped }

func (r *JoinedCellReader) field(row []string, name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (r *JoinedCellReader) decode(row []string) (model.JoinedCell, error) {
	key := model.GridKey{
		Station:     r.field(row, "station"),
		Date:        r.field(row, "date"),
		CutoffLocal: r.field(row, "cutoff_local"),
		CutoffUTC:   r.field(row, "cutoff_utc"),
	}
	if key.Station == "" || key.Date == "" || key.CutoffLocal == "" {
		parsed, err := model.ParseGridKey(r.field(row, "grid_key"))
		if err != nil {
			return model.JoinedCell{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
		}
		key = parsed
		key.CutoffUTC = r.field(row, "cutoff_utc")
	}

	cell := model.JoinedCell{
		Key:          key,
		Availability: r.field(row, "availability"),
		Confidence:   r.field(row, "confidence"),
		TabGroup:     r.field(row, "tab_group"),
	}

	availability := cell.Availability
	if availability == model.AvailabilityVPOnly || availability == model.AvailabilityBoth {
		p := &model.PlannedRecord{
			Station:     key.Station,
			Date:        key.Date,
			CutoffLocal: key.CutoffLocal,
			CutoffUTC:   key.CutoffUTC,
			Confidence:  cell.Confidence,
			// The raw fields feed re-classification after a load; without
			// them the classifier would erase the derived severity and
			// flags.
			SeverityRaw: r.field(row, "severity"),
			FlagsRaw:    r.field(row, "flags"),
		}
		var err error
		if p.Forecast, err = parseFloat(r.field(row, "forecast")); err != nil {
			return model.JoinedCell{}, fmt.Errorf("%w: forecast: %v", ErrMalformedRow, err)
		}
		if p.SoftCap, err = parseFloat(r.field(row, "soft_cap")); err != nil {
			return model.JoinedCell{}, fmt.Errorf("%w: soft_cap: %v", ErrMalformedRow, err)
		}
		if p.HardCap, err = parseFloat(r.field(row, "hard_cap")); err != nil {
			return model.JoinedCell{}, fmt.Errorf("%w: hard_cap: %v", ErrMalformedRow, err)
		}
		if p.Utilization, err = parseFloat(r.field(row, "utilization")); err != nil {
			return model.JoinedCell{}, fmt.Errorf("%w: utilization: %v", ErrMalformedRow, err)
		}
		cell.Planned = p
	}
	if availability == model.AvailabilityListOnly || availability == model.AvailabilityBoth {
		o := &model.OverrideRecord{
			Station:     key.Station,
			Date:        key.Date,
			CutoffLocal: key.CutoffLocal,
			CutoffUTC:   key.CutoffUTC,
			MatchDate:   r.field(row, "match_date"),
			Author:      r.field(row, "author"),
		}
		var err error
		if o.Adjusted, err = parseFloat(r.field(row, "adjusted")); err != nil {
			return model.JoinedCell{}, fmt.Errorf("%w: adjusted: %v", ErrMalformedRow, err)
		}
		cell.Override = o
	}

	if sev := r.field(row, "severity"); sev != "" {
		n, err := strconv.Atoi(sev)
		if err == nil {
			cell.Severity = &n
		}
	}
	if flags := r.field(row, "flags"); flags != "" {
		for _, tok := range strings.Split(flags, ",") {
			if tok != "" {
				cell.Flags = append(cell.Flags, tok)
			}
		}
	}
	return cell, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
