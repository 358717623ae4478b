// Package loader recovers records from model batch files that may carry a
// corrupted first line, stray quotes, ragged rows or non-UTF-8 bytes.
//
// Every physical line is parsed on its own so that one broken quote cannot
// swallow the rest of the file. Rows with the wrong number of fields are
// dropped; cells that fail numeric coercion become missing and the row is
// kept.
package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"hydrofreq/internal/record"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// maxRowWarnings caps per-line warnings for one file; the remainder is
// summarised once.
const maxRowWarnings = 20

// Options controls how a file is read.
type Options struct {
	Schema Schema

	// SkipFirstLine discards line 1 unread. Raw model files carry a header
	// that is often corrupted, so their columns are taken from Schema.
	SkipFirstLine bool

	// Header treats line 1 as a header that must match Schema by name.
	// Ignored when SkipFirstLine is set.
	Header bool
}

// RawOptions returns the options for raw model batch files.
func RawOptions(schema Schema) Options {
	return Options{Schema: schema, SkipFirstLine: true}
}

// MeanOptions returns the options for batch-mean artifacts.
func MeanOptions() Options {
	return Options{Schema: MeanSchema(), Header: true}
}

// Result is everything recovered from one file.
type Result struct {
	Records   []record.GridRecord
	Rows      int      // non-blank data lines seen
	Dropped   int      // lines discarded as malformed
	Recovered int      // kept rows with at least one coerced-to-missing cell
	Present   []string // optional retained columns with at least one value
}

// Load opens path and reads it with opts.
func Load(path string, opts Options, logger *zap.Logger) (*Result, error) {
	return LoadContext(context.Background(), path, opts, logger)
}

// LoadContext is Load that stops reading once ctx is done.
func LoadContext(ctx context.Context, path string, opts Options, logger *zap.Logger) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Read(ctxReader{ctx: ctx, r: f}, path, opts, logger)
}

// ctxReader fails reads after its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Read recovers records from r. name is used in log fields only.
func Read(r io.Reader, name string, opts Options, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Schema.Columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrSchema)
	}

	// ISO-8859-1 maps every byte to a rune, so decoding cannot fail.
	br := bufio.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))

	res := &Result{}
	present := make(map[int]bool)
	want := len(opts.Schema.Columns)
	lineNo := 0
	warned := 0

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if line == "" && err != nil {
			break
		}
		lineNo++
		line = strings.TrimRight(line, "\r\n")

		if lineNo == 1 && (opts.SkipFirstLine || opts.Header) {
			if !opts.SkipFirstLine && opts.Header {
				if herr := checkHeader(line, opts.Schema); herr != nil {
					return nil, fmt.Errorf("%s: %w", name, herr)
				}
			}
			if err != nil {
				break
			}
			continue
		}

		if strings.TrimSpace(line) != "" {
			res.Rows++
			fields, perr := splitLine(line)
			switch {
			case perr != nil || len(fields) != want:
				res.Dropped++
				if warned < maxRowWarnings {
					logger.Warn("dropping malformed row",
						zap.String("file", name),
						zap.Int("line", lineNo),
						zap.Int("fields", len(fields)),
						zap.Int("expected", want),
						zap.Error(perr))
				}
				warned++
			default:
				rec, coerced := convert(fields, opts.Schema, present)
				if coerced {
					res.Recovered++
				}
				res.Records = append(res.Records, rec)
			}
		}

		if err != nil {
			break
		}
	}

	if warned > maxRowWarnings {
		logger.Warn("further malformed rows suppressed",
			zap.String("file", name),
			zap.Int("suppressed", warned-maxRowWarnings))
	}

	for i, c := range opts.Schema.Columns {
		if !c.Required && c.Retained() && present[i] {
			res.Present = append(res.Present, c.Name)
		}
	}

	logger.Debug("file loaded",
		zap.String("file", name),
		zap.Int("rows", res.Rows),
		zap.Int("records", len(res.Records)),
		zap.Int("dropped", res.Dropped),
		zap.Int("recovered", res.Recovered))
	return res, nil
}

// splitLine parses one physical line as a delimited record.
func splitLine(line string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	fields, err := cr.Read()
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func checkHeader(line string, s Schema) error {
	fields, err := splitLine(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHeaderMismatch, err)
	}
	names := s.Names()
	if len(fields) != len(names) {
		return fmt.Errorf("%w: got %d columns, want %v", ErrHeaderMismatch, len(fields), names)
	}
	for i, f := range fields {
		f = strings.TrimPrefix(strings.TrimSpace(f), "\ufeff")
		if !strings.EqualFold(f, names[i]) {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrHeaderMismatch, i+1, f, names[i])
		}
	}
	return nil
}

// convert maps fields onto a record. coerced reports whether any numeric
// cell held text that did not parse.
func convert(fields []string, s Schema, present map[int]bool) (rec record.GridRecord, coerced bool) {
	for i, c := range s.Columns {
		raw := strings.TrimSpace(fields[i])
		missing := record.IsMissingMarker(raw)

		switch c.Role {
		case RoleGridID:
			rec.GridID = record.ParseInt(raw)
			coerced = coerced || (!missing && !rec.GridID.Valid)
			present[i] = present[i] || rec.GridID.Valid
		case RoleLon:
			rec.Lon = record.ParseFloat(raw)
			coerced = coerced || (!missing && !rec.Lon.Valid)
			present[i] = present[i] || rec.Lon.Valid
		case RoleLat:
			rec.Lat = record.ParseFloat(raw)
			coerced = coerced || (!missing && !rec.Lat.Valid)
			present[i] = present[i] || rec.Lat.Valid
		case RoleDate:
			if !missing {
				rec.Date = raw
				present[i] = true
			}
		case RoleValue:
			rec.SCI = record.ParseFloat(raw)
			coerced = coerced || (!missing && !rec.SCI.Valid)
			present[i] = present[i] || rec.SCI.Valid
		default:
			if c.Numeric && !missing && !record.ParseFloat(raw).Valid {
				coerced = true
			}
		}
	}
	return rec, coerced
}
