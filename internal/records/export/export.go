// Package export serializes records to json, csv, kv and yaml.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"attest/internal/records"
	dErrors "attest/pkg/domain-errors"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatKV   Format = "kv"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name; empty means json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatKV, FormatYAML:
		return f, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unsupported export format: "+s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatKV:
		return "text/plain; charset=utf-8"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// Write encodes recs to w. Cancellation of ctx stops the export between
// records and returns the context error.
func Write(ctx context.Context, w io.Writer, format Format, recs []*records.LogRecord) error {
	switch format {
	case FormatJSON:
		return writeJSON(ctx, w, recs)
	case FormatCSV:
		return writeCSV(ctx, w, recs)
	case FormatKV:
		return writeKV(ctx, w, recs)
	case FormatYAML:
		return writeYAML(ctx, w, recs)
	}
	return dErrors.New(dErrors.CodeValidation, "unsupported export format: "+string(format))
}

func writeJSON(ctx context.Context, w io.Writer, recs []*records.LogRecord) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("["); err != nil {
		return err
	}
	for i, r := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if _, err := bw.WriteString(","); err != nil {
				return err
			}
		}
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", r.ID, err)
		}
		if _, err := bw.Write(b); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("]\n"); err != nil {
		return err
	}
	return bw.Flush()
}

var csvHeader = []string{
	"id", "timestamp", "level", "category", "message", "subject_id",
	"module", "function", "request_id", "organization_id",
	"classification", "retention_days", "regulations", "contains_personal_data",
	"legal_hold", "under_investigation", "anonymized", "metadata",
}

func writeCSV(ctx context.Context, w io.Writer, recs []*records.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := csvRow(r)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r *records.LogRecord) ([]string, error) {
	var c records.Context
	if r.Context != nil {
		c = *r.Context
	}
	var tag records.ComplianceTag
	if r.ComplianceTag != nil {
		tag = *r.ComplianceTag
	}
	meta := ""
	if len(r.Metadata) > 0 {
		b, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata of %s: %w", r.ID, err)
		}
		meta = string(b)
	}
	return []string{
		r.ID, r.Timestamp.UTC().Format(time.RFC3339Nano), string(r.Level), r.Category, r.Message, r.SubjectID,
		c.Module, c.Function, c.RequestID, c.OrganizationID,
		string(tag.Classification), strconv.Itoa(tag.RetentionDays), strings.Join(tag.Regulations, ";"),
		strconv.FormatBool(tag.ContainsPersonalData),
		strconv.FormatBool(r.LegalHold), strconv.FormatBool(r.UnderInvestigation), strconv.FormatBool(r.Anonymized),
		meta,
	}, nil
}

func writeKV(ctx context.Context, w io.Writer, recs []*records.LogRecord) error {
	bw := bufio.NewWriter(w)
	for i, r := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		prefix := "records." + strconv.Itoa(i)
		var werr error
		emit := func(path, value string) {
			if werr != nil {
				return
			}
			_, werr = fmt.Fprintf(bw, "%s.%s=%s\n", prefix, path, kvValue(value))
		}
		flattenRecord(r, emit)
		if werr != nil {
			return werr
		}
	}
	return bw.Flush()
}

func flattenRecord(r *records.LogRecord, emit func(path, value string)) {
	emit("id", r.ID)
	emit("timestamp", r.Timestamp.UTC().Format(time.RFC3339Nano))
	emit("level", string(r.Level))
	emit("category", r.Category)
	emit("message", r.Message)
	if r.SubjectID != "" {
		emit("subject_id", r.SubjectID)
	}
	if c := r.Context; c != nil {
		for _, kv := range [][2]string{
			{"module", c.Module}, {"function", c.Function},
			{"request_id", c.RequestID}, {"organization_id", c.OrganizationID},
		} {
			if kv[1] != "" {
				emit("context."+kv[0], kv[1])
			}
		}
	}
	if t := r.ComplianceTag; t != nil {
		emit("compliance_tag.retention_days", strconv.Itoa(t.RetentionDays))
		emit("compliance_tag.classification", string(t.Classification))
		for i, reg := range t.Regulations {
			emit("compliance_tag.regulations."+strconv.Itoa(i), reg)
		}
		emit("compliance_tag.contains_personal_data", strconv.FormatBool(t.ContainsPersonalData))
	}
	if r.LegalHold {
		emit("legal_hold", "true")
	}
	if r.UnderInvestigation {
		emit("under_investigation", "true")
	}
	if r.Anonymized {
		emit("anonymized", "true")
	}
	r.Metadata.Flatten("metadata", emit)
}

// kvValue quotes values that would break line-oriented parsing.
func kvValue(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\n\r\"=") {
		return strconv.Quote(v)
	}
	return v
}

func writeYAML(ctx context.Context, w io.Writer, recs []*records.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if recs == nil {
		recs = []*records.LogRecord{}
	}
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
