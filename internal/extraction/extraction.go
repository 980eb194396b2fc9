package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateTimeLayout is the format the extractor is asked to emit for start and end.
const DateTimeLayout = "2006-01-02 15:04"

// localLayouts are the zone-less forms accepted for start and end besides RFC 3339.
var localLayouts = []string{
	DateTimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

var (
	ErrEmptyResponse   = errors.New("extractor returned an empty response")
	ErrInvalidDateTime = errors.New("unrecognized datetime")
	ErrMissingDateTime = errors.New("start or end datetime is missing")
)

// Extractor turns the applicant's free text into structured JSON.
// It is called once per application and is not retried.
type Extractor interface {
	Extract(ctx context.Context, systemPrompt, text string) (string, error)
}

type Companion struct {
	MCID   string `json:"mcid"`
	Nation string `json:"nation,omitempty"`
}

type Record struct {
	MCID       string      `json:"mcid"`
	Nation     string      `json:"nation"`
	Purpose    string      `json:"purpose"`
	Start      string      `json:"start_datetime"`
	End        string      `json:"end_datetime"`
	Companions []Companion `json:"companions"`
	Joiners    []string    `json:"joiners"`
}

// Form is what the applicant typed into the modal.
type Form struct {
	MCID       string
	Nation     string
	Period     string
	Companions []string
	Joiners    string
}

// InputText renders the form as the line-oriented text handed to the extractor.
func (f Form) InputText() string {
	lines := []string{
		"MCID: " + f.MCID,
		"国籍: " + f.Nation,
		"目的・期間: " + f.Period,
	}
	if len(f.Companions) > 0 {
		lines = append(lines, "同行者: "+strings.Join(f.Companions, ", "))
	}
	if strings.TrimSpace(f.Joiners) != "" {
		lines = append(lines, "合流者: "+f.Joiners)
	}
	return strings.Join(lines, "\n")
}

// SplitCompanions splits the comma list typed into the companions field. "なし" means none.
func SplitCompanions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "なし" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Service struct {
	extractor Extractor
	now       func() time.Time
}

func NewService(extractor Extractor) *Service {
	return &Service{extractor: extractor, now: time.Now}
}

// Extract returns the parsed record and the raw JSON the extractor produced.
func (s *Service) Extract(ctx context.Context, text string) (Record, string, error) {
	today := s.now().UTC().Format("2006-01-02")
	raw, err := s.extractor.Extract(ctx, Prompt(today), text)
	if err != nil {
		return Record{}, "", err
	}
	rec, err := Parse(raw)
	if err != nil {
		return Record{}, raw, err
	}
	return rec, raw, nil
}

// Parse decodes extractor output, accepting companions given as bare strings or objects
// and joiners given as a list or a single string.
func Parse(raw string) (Record, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Record{}, ErrEmptyResponse
	}
	var wire struct {
		MCID       string            `json:"mcid"`
		Nation     string            `json:"nation"`
		Purpose    string            `json:"purpose"`
		Start      string            `json:"start_datetime"`
		End        string            `json:"end_datetime"`
		Companions []json.RawMessage `json:"companions"`
		Joiners    json.RawMessage   `json:"joiners"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Record{}, fmt.Errorf("failed to decode extractor output: %w", err)
	}
	rec := Record{
		MCID:    strings.TrimSpace(wire.MCID),
		Nation:  strings.TrimSpace(wire.Nation),
		Purpose: strings.TrimSpace(wire.Purpose),
	}
	var err error
	if rec.Start, err = normalizeDateTime(wire.Start); err != nil {
		return Record{}, fmt.Errorf("start_datetime: %w", err)
	}
	if rec.End, err = normalizeDateTime(wire.End); err != nil {
		return Record{}, fmt.Errorf("end_datetime: %w", err)
	}
	for _, c := range wire.Companions {
		companion, err := parseCompanion(c)
		if err != nil {
			return Record{}, err
		}
		if companion.MCID != "" {
			rec.Companions = append(rec.Companions, companion)
		}
	}
	joiners, err := parseJoiners(wire.Joiners)
	if err != nil {
		return Record{}, err
	}
	rec.Joiners = joiners
	return rec, nil
}

func parseCompanion(raw json.RawMessage) (Companion, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return Companion{MCID: strings.TrimSpace(id)}, nil
	}
	var c Companion
	if err := json.Unmarshal(raw, &c); err != nil {
		return Companion{}, fmt.Errorf("failed to decode companion %s: %w", string(raw), err)
	}
	c.MCID = strings.TrimSpace(c.MCID)
	c.Nation = strings.TrimSpace(c.Nation)
	return c, nil
}

func parseJoiners(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, j := range list {
			if j = strings.TrimSpace(j); j != "" {
				out = append(out, j)
			}
		}
		return out, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to decode joiners %s: %w", string(raw), err)
	}
	if single = strings.TrimSpace(single); single == "" {
		return nil, nil
	}
	return []string{single}, nil
}

// Complete reports whether every field required for approval is present.
func (r Record) Complete() bool {
	return r.MCID != "" && r.Nation != "" && r.Purpose != "" && r.Start != "" && r.End != ""
}

// Stay returns end minus start. It fails with ErrMissingDateTime when a bound is
// empty and with ErrInvalidDateTime when a bound is in no accepted form.
func (r Record) Stay(loc *time.Location) (time.Duration, error) {
	if r.Start == "" || r.End == "" {
		return 0, ErrMissingDateTime
	}
	start, err := ParseDateTime(r.Start, loc)
	if err != nil {
		return 0, err
	}
	end, err := ParseDateTime(r.End, loc)
	if err != nil {
		return 0, err
	}
	return end.Sub(start), nil
}

// ParseDateTime reads a start or end value. Zone-less forms are taken in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, value)
}

// normalizeDateTime rewrites zone-less values into DateTimeLayout. Values carrying
// an offset are kept as given.
func normalizeDateTime(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return value, nil
	}
	t, err := ParseDateTime(value, time.UTC)
	if err != nil {
		return "", err
	}
	return t.Format(DateTimeLayout), nil
}

func (r Record) CompanionIDs() []string {
	out := make([]string, 0, len(r.Companions))
	for _, c := range r.Companions {
		out = append(out, c.MCID)
	}
	return out
}

// JSON renders the record indented for the session log.
func (r Record) JSON() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", r)
	}
	return string(b)
}
