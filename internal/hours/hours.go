// Package hours turns rendered timesheet screenshots into weekly hour totals.
//
// Extraction is best effort. An image whose extraction fails, or whose value
// is not a finite non-negative number, still yields a Record carrying the
// fallback hours, so a cycle never aborts because of a bad screenshot.
package hours

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"invoicer/internal/errs"
	"invoicer/internal/logger"
)

// DefaultHours is the weekly total assumed when extraction yields nothing.
const DefaultHours = 40.0

// Source records where the hours of a Record came from.
type Source string

const (
	SourceExtracted Source = "extracted"
	SourceFallback  Source = "fallback"
)

// Extractor reads the total weekly hours from one timesheet image.
type Extractor interface {
	ExtractHours(ctx context.Context, imagePath string) (float64, error)
}

// Image is a rendered timesheet screenshot of one week.
type Image struct {
	WeekRange string // raw week text, e.g. "Apr 11 - 17"
	Path      string
}

// Record is the hours outcome for one week.
type Record struct {
	WeekRange string  `json:"week_range"`
	Hours     float64 `json:"hours"`
	Source    Source  `json:"source"`
	Err       error   `json:"-"`
}

// Fallback reports whether the record carries the default hours.
func (r Record) Fallback() bool {
	return r.Source == SourceFallback
}

// Coordinator runs an Extractor over screenshots one at a time.
type Coordinator struct {
	extractor    Extractor
	defaultHours float64
	limiter      *rate.Limiter // nil means unpaced
	log          zerolog.Logger
}

// NewCoordinator creates a coordinator. A negative or non-finite
// defaultHours is replaced by DefaultHours.
func NewCoordinator(extractor Extractor, defaultHours float64) *Coordinator {
	if !usable(defaultHours) {
		defaultHours = DefaultHours
	}
	return &Coordinator{
		extractor:    extractor,
		defaultHours: defaultHours,
		log:          logger.WithComponent("hours"),
	}
}

// WithRequestsPerMinute paces extractor calls. Hosted vision models often
// allow only a few requests per minute on low tiers. Zero or less disables
// pacing.
func (c *Coordinator) WithRequestsPerMinute(n int) *Coordinator {
	if n <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	return c
}

// DefaultHours returns the hours used for fallback records.
func (c *Coordinator) DefaultHours() float64 {
	return c.defaultHours
}

// ExtractAll extracts hours from each image in order and returns one record
// per image. Failures are logged and replaced by fallback records.
func (c *Coordinator) ExtractAll(ctx context.Context, images []Image) []Record {
	records := make([]Record, 0, len(images))
	for _, img := range images {
		records = append(records, c.extract(ctx, img))
	}
	return records
}

func (c *Coordinator) extract(ctx context.Context, img Image) Record {
	const op = "ExtractHours"

	log := c.log.With().Str("week", img.WeekRange).Str("image", img.Path).Logger()

	value, err := c.call(ctx, img.Path)
	if err == nil && !usable(value) {
		err = fmt.Errorf("unusable value %v", value)
	}
	if err != nil {
		log.Warn().
			Err(err).
			Float64("fallback_hours", c.defaultHours).
			Msg("Hours extraction failed, using fallback")
		return c.fallback(img.WeekRange, errs.Extraction(op, err, img.Path))
	}

	log.Info().Float64("hours", value).Msg("Extracted hours")
	return Record{WeekRange: img.WeekRange, Hours: value, Source: SourceExtracted}
}

func (c *Coordinator) call(ctx context.Context, path string) (float64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}
	return c.extractor.ExtractHours(ctx, path)
}

func (c *Coordinator) fallback(week string, err error) Record {
	return Record{WeekRange: week, Hours: c.defaultHours, Source: SourceFallback, Err: err}
}

// Slots lines records up with weeks, which must already be in chronological
// order. Each week gets the record extracted for it, or a fallback record
// when its screenshot was never rendered or extracted.
func (c *Coordinator) Slots(records []Record, weeks []string) []Record {
	byWeek := make(map[string]Record, len(records))
	for _, r := range records {
		if _, seen := byWeek[r.WeekRange]; !seen {
			byWeek[r.WeekRange] = r
		}
	}

	slots := make([]Record, len(weeks))
	for i, week := range weeks {
		if r, ok := byWeek[week]; ok {
			slots[i] = r
			continue
		}
		slots[i] = c.fallback(week, nil)
	}
	return slots
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
