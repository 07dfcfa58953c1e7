package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"astra/internal/astro"
	"astra/internal/storage"
)

// horoscopeDateLayout matches the DD-MM-YYYY wire format used everywhere
// else, but without birth-date bounds: a horoscope date is any calendar day.
const horoscopeDateLayout = "02-01-2006"

type apiError struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func badRequest(c *gin.Context, field, reason string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: apiError{Field: field, Reason: reason}})
}

// parseDateParam reads a required DD-MM-YYYY query parameter and answers the
// request itself when the value is missing or invalid.
func (s *Server) parseDateParam(c *gin.Context, name string) (astro.BirthDate, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		badRequest(c, name, "query parameter is required, format DD-MM-YYYY")
		return astro.BirthDate{}, false
	}
	date, err := s.validator.ParseDate(raw)
	if err != nil {
		badRequest(c, name, err.Error())
		return astro.BirthDate{}, false
	}
	return date, true
}

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
	Uptime string    `json:"uptime"`
}

func (s *Server) handleHealth(c *gin.Context) {
	now := s.now()
	c.JSON(http.StatusOK, healthResponse{
		Status: "ok",
		Time:   now,
		Uptime: now.Sub(s.startedAt).String(),
	})
}

type zodiacResponse struct {
	Date      string        `json:"date"`
	Sign      astro.Sign    `json:"sign"`
	Element   astro.Element `json:"element"`
	DateRange string        `json:"date_range"`
}

func (s *Server) handleZodiac(c *gin.Context) {
	date, ok := s.parseDateParam(c, "date")
	if !ok {
		return
	}
	sign := astro.Classify(date)
	c.JSON(http.StatusOK, zodiacResponse{
		Date:      date.String(),
		Sign:      sign,
		Element:   sign.Element(),
		DateRange: sign.DateRange(),
	})
}

type lifePathResponse struct {
	Date     string `json:"date"`
	LifePath int    `json:"life_path"`
	Master   bool   `json:"master"`
	Trace    []int  `json:"trace,omitempty"`
	Meaning  string `json:"meaning"`
}

func (s *Server) handleLifePath(c *gin.Context) {
	date, ok := s.parseDateParam(c, "date")
	if !ok {
		return
	}
	lp := astro.ComputeLifePath(date)
	c.JSON(http.StatusOK, lifePathResponse{
		Date:     date.String(),
		LifePath: lp.Value,
		Master:   lp.IsMaster(),
		Trace:    lp.Trace,
		Meaning:  astro.LifePathMeaning(lp.Value),
	})
}

type compatibilityResponse struct {
	SignA         astro.Sign     `json:"sign_a"`
	SignB         astro.Sign     `json:"sign_b"`
	LifePathA     int            `json:"life_path_a"`
	LifePathB     int            `json:"life_path_b"`
	ElementScore  int            `json:"element_score"`
	LifePathScore int            `json:"life_path_score"`
	Score         int            `json:"score"`
	Category      astro.Category `json:"category"`
}

func (s *Server) handleCompatibility(c *gin.Context) {
	a, ok := s.parseDateParam(c, "a")
	if !ok {
		return
	}
	b, ok := s.parseDateParam(c, "b")
	if !ok {
		return
	}
	report := astro.Score(a, b)
	c.JSON(http.StatusOK, compatibilityResponse{
		SignA:         report.SignA,
		SignB:         report.SignB,
		LifePathA:     report.LifePathA.Value,
		LifePathB:     report.LifePathB.Value,
		ElementScore:  report.ElementScore,
		LifePathScore: report.LifePathScore,
		Score:         report.Combined,
		Category:      report.Category,
	})
}

type horoscopeResponse struct {
	Sign      astro.Sign    `json:"sign"`
	Element   astro.Element `json:"element"`
	Date      string        `json:"date"`
	Horoscope string        `json:"horoscope"`
}

func (s *Server) handleHoroscope(c *gin.Context) {
	rawSign := strings.TrimSpace(c.Query("sign"))
	if rawSign == "" {
		badRequest(c, "sign", "query parameter is required")
		return
	}
	sign, ok := astro.ParseSign(rawSign)
	if !ok {
		badRequest(c, "sign", "unknown zodiac sign")
		return
	}

	day := s.now()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse(horoscopeDateLayout, raw)
		if err != nil {
			badRequest(c, "date", "format must be DD-MM-YYYY")
			return
		}
		day = parsed
	}

	h := astro.DailyHoroscope(sign, day)
	c.JSON(http.StatusOK, horoscopeResponse{
		Sign:      sign,
		Element:   sign.Element(),
		Date:      day.Format(horoscopeDateLayout),
		Horoscope: h.Text,
	})
}

type factResponse struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

func (s *Server) handleRandomFact(c *gin.Context) {
	if s.facts == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: apiError{Reason: "no facts available"}})
		return
	}
	fact, err := s.facts.RandomFact(c.Request.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: apiError{Reason: "no facts available"}})
			return
		}
		s.logger.Error("Random fact lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: apiError{Reason: "internal error"}})
		return
	}
	c.JSON(http.StatusOK, factResponse{ID: fact.ID, Kind: fact.Kind, Text: fact.Text})
}
