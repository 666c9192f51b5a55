// Package advisory produces health recommendations for air quality readings.
//
// Recommendations come from a language model when one is configured and fall
// back to fixed guidance per AQI category otherwise. The package never fails
// its callers: every error path degrades to the fallback text.
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/aqtracker/aqtracker/internal/airquality"
	"github.com/aqtracker/aqtracker/internal/aqi"
)

// Sources of a recommendation.
const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

const generatedAtLayout = "January 2, 2006, 3:04 PM"

// Completer generates text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Card is a single actionable recommendation.
type Card struct {
	Title       string
	Description string
	Icon        string
	Severity    string // low, medium or high
}

// Recommendation is the advice generated for one city.
type Recommendation struct {
	City        string
	Country     string
	AQI         int
	Category    string
	Assessment  string
	Cards       []Card
	GeneratedAt string
	Source      string
}

// Config holds configuration for the advisory service.
type Config struct {
	// Completer is optional; without it only fallback text is produced.
	Completer Completer

	Logger zerolog.Logger

	// Clock stamps recommendations (default: real clock).
	Clock clockwork.Clock
}

// Service generates recommendations and advisories.
type Service struct {
	completer Completer
	logger    zerolog.Logger
	clock     clockwork.Clock
}

// NewService creates a new advisory service.
func NewService(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		completer: cfg.Completer,
		logger:    cfg.Logger,
		clock:     clock,
	}
}

// Enabled reports whether a language model is configured.
func (s *Service) Enabled() bool {
	return s.completer != nil
}

// Recommendations returns advice for the given record.
func (s *Service) Recommendations(ctx context.Context, record *airquality.Record) *Recommendation {
	rec := &Recommendation{
		City:        record.City,
		Country:     record.Country,
		AQI:         record.AQI,
		Category:    record.Category(),
		GeneratedAt: s.clock.Now().UTC().Format(generatedAtLayout),
		Source:      SourceFallback,
	}

	if s.completer != nil {
		reply, err := s.completer.Complete(ctx, recommendationPrompt(record), 0.7)
		if err == nil {
			s.applyReply(rec, reply)
			return rec
		}
		s.logger.Warn().Err(err).Str("city", record.City).Msg("recommendation request failed, using fallback")
	}

	rec.Assessment = fallbackAssessment(record.City, record.AQI)
	rec.Cards = fallbackCards(record.AQI)
	return rec
}

// HealthAdvisory returns a short advisory for an AQI value.
func (s *Service) HealthAdvisory(ctx context.Context, aqiValue int) string {
	category := aqi.Category(aqiValue)

	if s.completer != nil {
		prompt := fmt.Sprintf(
			"Generate a brief health advisory (2-3 sentences) for air quality with AQI of %d (%s). "+
				"Include specific recommendations for outdoor activities and sensitive groups.",
			aqiValue, category)
		reply, err := s.completer.Complete(ctx, prompt, 0.5)
		if err == nil {
			return reply
		}
		s.logger.Warn().Err(err).Int("aqi", aqiValue).Msg("advisory request failed, using fallback")
	}

	return fallbackAdvisory(aqiValue)
}

// Analysis returns a short narrative about a city's current air quality.
func (s *Service) Analysis(ctx context.Context, record *airquality.Record) string {
	if s.completer != nil {
		prompt := fmt.Sprintf(
			"Analyze the air quality in %s, %s with current AQI of %d (PM2.5: %.1f µg/m³). "+
				"Provide insights on potential sources of pollution and recommendations for improvement.",
			record.City, record.Country, record.AQI, valueOrZero(record.PM25))
		reply, err := s.completer.Complete(ctx, prompt, 0.7)
		if err == nil {
			return reply
		}
		s.logger.Warn().Err(err).Str("city", record.City).Msg("analysis request failed, using fallback")
	}

	return fmt.Sprintf(
		"Air quality in %s, %s is currently %s with an AQI of %d. "+
			"Monitor local conditions and follow health guidelines for your activity level.",
		record.City, record.Country, record.Category(), record.AQI)
}

type replyCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Severity    string `json:"severity"`
}

type reply struct {
	Assessment      string      `json:"assessment"`
	Recommendations []replyCard `json:"recommendations"`
}

// applyReply fills rec from a model reply. Replies that carry no usable
// JSON keep their text as the assessment with fallback cards.
func (s *Service) applyReply(rec *Recommendation, text string) {
	rec.Source = SourceAI

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var parsed reply
		err := json.Unmarshal([]byte(text[start:end+1]), &parsed)
		if err == nil && len(parsed.Recommendations) > 0 {
			rec.Assessment = parsed.Assessment
			rec.Cards = make([]Card, 0, len(parsed.Recommendations))
			for _, c := range parsed.Recommendations {
				rec.Cards = append(rec.Cards, Card{
					Title:       orDefault(c.Title, "Recommendation"),
					Description: c.Description,
					Icon:        orDefault(c.Icon, "💡"),
					Severity:    orDefault(c.Severity, "medium"),
				})
			}
			return
		}
		if err != nil {
			s.logger.Debug().Err(err).Msg("unparseable recommendation reply")
		}
	}

	rec.Assessment = strings.TrimSpace(text)
	rec.Cards = fallbackCards(rec.AQI)
}

func recommendationPrompt(r *airquality.Record) string {
	return fmt.Sprintf(
		"You are an air quality expert. Based on the following air quality data for %s, %s, "+
			"provide 4 specific recommendations as JSON. "+
			"Current conditions: AQI=%d (%s), PM2.5=%.1f µg/m³, PM10=%.1f µg/m³. "+
			`Return JSON format: {"assessment": "brief overall assessment", `+
			`"recommendations": [{"title": "title", "description": "description", `+
			`"icon": "emoji", "severity": "low/medium/high"}]}`,
		r.City, r.Country, r.AQI, r.Category(), valueOrZero(r.PM25), valueOrZero(r.PM10))
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
