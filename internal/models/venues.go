package models

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

var featureBitsPattern = regexp.MustCompile(`^[01]{4}$`)

// Features is the venue feature set, persisted as a 4-char bit string in
// online, multimedia, teaching, computer-enabled order.
type Features struct {
	Online          bool `json:"online"`
	Multimedia      bool `json:"multimedia"`
	Teaching        bool `json:"teaching"`
	ComputerEnabled bool `json:"computer_enabled"`
}

func IsFeatureBits(s string) bool {
	return featureBitsPattern.MatchString(s)
}

func ParseFeatures(s string) (Features, error) {
	if !IsFeatureBits(s) {
		return Features{}, fmt.Errorf("features must match ^[01]{4}$, got %q", s)
	}
	return Features{
		Online:          s[0] == '1',
		Multimedia:      s[1] == '1',
		Teaching:        s[2] == '1',
		ComputerEnabled: s[3] == '1',
	}, nil
}

func (f Features) String() string {
	bits := []bool{f.Online, f.Multimedia, f.Teaching, f.ComputerEnabled}
	var b strings.Builder
	for _, on := range bits {
		if on {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Value writes the bit string.
func (f Features) Value() (driver.Value, error) {
	return f.String(), nil
}

// Scan reads the bit string back.
func (f *Features) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*f = Features{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Features", src)
	}
	parsed, err := ParseFeatures(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// TimeOfDay is seconds since midnight.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// ParseTimeOfDay accepts HH:MM or HH:MM:SS (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int
	s = strings.TrimSpace(s)
	var err error
	switch strings.Count(s, ":") {
	case 1:
		_, err = fmt.Sscanf(s, "%d:%d", &h, &m)
	case 2:
		_, err = fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	default:
		err = fmt.Errorf("unexpected format")
	}
	if err != nil || h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay(h*3600 + m*60 + sec), nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ClockOf returns the wall-clock time of day of t in t's location.
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ScanTime lets pgx decode a Postgres time column.
func (t *TimeOfDay) ScanTime(v pgtype.Time) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into TimeOfDay")
	}
	*t = TimeOfDay(v.Microseconds / 1_000_000)
	return nil
}

// TimeValue lets pgx encode TimeOfDay into a Postgres time column.
func (t TimeOfDay) TimeValue() (pgtype.Time, error) {
	return pgtype.Time{Microseconds: int64(t) * 1_000_000, Valid: true}, nil
}

// Weekday is a day of week that renders as a lowercase day name.
type Weekday time.Weekday

func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return Weekday(d), nil
		}
	}
	return 0, fmt.Errorf("invalid day %q", s)
}

func (d Weekday) String() string {
	return strings.ToLower(time.Weekday(d).String())
}

func (d Weekday) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	parsed, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// VenueAvailability is one weekly open window. ClosesAt before OpensAt wraps past midnight.
type VenueAvailability struct {
	VenueID  uuid.UUID `db:"venue_id" json:"venue_id,omitempty"`
	Day      Weekday   `db:"day" json:"day" validate:"gte=0,lte=6"`
	OpensAt  TimeOfDay `db:"opens_at" json:"opens_at" validate:"gte=0,lt=86400"`
	ClosesAt TimeOfDay `db:"closes_at" json:"closes_at" validate:"gte=0,lt=86400,nefield=OpensAt"`
}

func (a VenueAvailability) Overnight() bool {
	return a.OpensAt > a.ClosesAt
}

type Department struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

type Venue struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name" validate:"required"`
	Code         string    `db:"code" json:"code" validate:"required"`
	Capacity     int       `db:"capacity" json:"capacity" validate:"gte=0"`
	TestCapacity int       `db:"test_capacity" json:"test_capacity" validate:"gte=0"`
	Features     Features  `db:"features" json:"features"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id" validate:"required"`
	Description  string    `db:"description" json:"description,omitempty"`

	Availability []VenueAvailability `json:"availability,omitempty" validate:"dive"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Schedule indexes the venue's windows by weekday.
func (v *Venue) Schedule() WeeklySchedule {
	return NewWeeklySchedule(v.Availability)
}
