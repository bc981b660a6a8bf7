package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"

	"fakedetect/internal/explain"
	"fakedetect/internal/features"
	fdimage "fakedetect/internal/image"
	"fakedetect/internal/reasons"
)

func (s *Server) handleHealth(c echo.Context) error {
	if s.opts.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := s.opts.HealthCheck(ctx); err != nil {
			s.log.WithError(err).Warn("health check failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExplain(c echo.Context) error {
	var form ExplainForm
	if err := c.Bind(&form); err != nil {
		return err
	}
	if err := s.validator.Struct(form); err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest("missing image file field %q", "file")
	}
	if s.opts.MaxUploadBytes > 0 && fh.Size > s.opts.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image exceeds upload limit")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest("failed to read upload: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return badRequest("failed to read upload: %v", err)
	}

	img, format, err := fdimage.DecodeBytes(data)
	if err != nil {
		if errors.Is(err, fdimage.ErrUnsupportedFormat) {
			return err
		}
		return badRequest("%v", err)
	}

	ctx := c.Request().Context()
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	res, err := s.explainer.Explain(ctx, explain.Request{
		Image:    img,
		Category: form.Category,
		Heatmap:  form.Heatmap,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "explanation timed out")
		}
		return err
	}

	id, _ := c.Get(requestIDKey).(string)
	resp := ExplainResponse{
		RequestID: id,
		Prediction: PredictionResponse{
			Label:      res.Prediction.Label,
			Confidence: res.Prediction.Confidence,
			Uncertain:  res.Uncertain,
		},
		Reasons:      res.Reasons,
		Category:     res.Similarity.Category,
		HeatmapError: res.HeatmapError,
		TimingsMS:    make(map[string]float64, len(res.Timings)),
	}
	for stage, d := range res.Timings {
		resp.TimingsMS[stage] = float64(d.Microseconds()) / 1000
	}
	if res.Heatmap != nil {
		encoded, err := fdimage.EncodeBase64PNG(res.Heatmap)
		if err != nil {
			resp.HeatmapError = err.Error()
		} else {
			resp.HeatmapPNG = encoded
		}
	}
	if form.Detailed {
		resp.Features = res.Features.Map()
		resp.Similarity = res.Similarity.Map()
	}

	s.log.WithContext(c.Request().Context()).Info("image explained",
		"format", format,
		"label", res.Prediction.Label,
		"confidence", res.Prediction.Confidence,
		"category", res.Similarity.Category,
	)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReasons(c echo.Context) error {
	var req ReasonsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	scores, err := parseScores(req.Features)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReasonsResponse{
		Reasons:   s.reasons.Generate(scores, req.Label, req.Confidence),
		Uncertain: reasons.IsUncertain(req.Confidence),
	})
}

func (s *Server) handleCompare(c echo.Context) error {
	var req CompareRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	scores, err := parseScores(req.Features)
	if err != nil {
		return err
	}

	profiles := s.explainer.Profiles()
	_, matched := profiles.Lookup(req.Category)
	report := profiles.Comparator(req.Category).Compare(scores)
	return c.JSON(http.StatusOK, CompareResponse{
		Category:   report.Category,
		Matched:    matched,
		Similarity: report.Map(),
	})
}

func (s *Server) handleProfiles(c echo.Context) error {
	profiles := s.explainer.Profiles()
	return c.JSON(http.StatusOK, ProfilesResponse{
		Categories: profiles.Categories(),
		Default:    profiles.Fallback(),
	})
}

func (s *Server) handleSchema(c echo.Context) error {
	return c.JSON(http.StatusOK, explainSchema())
}

// explainSchema reflects the JSON schema of ExplainResponse.
func explainSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := r.Reflect(&ExplainResponse{})
	schema.Title = "Explanation"
	schema.Description = "Explanation of a Fake/Original verdict for one product image"
	return schema
}

func parseScores(m map[string]float64) (features.Scores, error) {
	scores, err := features.FromMap(m)
	if err != nil {
		return features.Scores{}, badRequest("invalid features: %v", err)
	}
	if err := scores.Validate(); err != nil {
		return features.Scores{}, badRequest("invalid features: %v", err)
	}
	return scores, nil
}
