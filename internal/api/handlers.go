package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkproof/stencil-gateway/internal/admission"
	"github.com/inkproof/stencil-gateway/internal/generation"
	"github.com/inkproof/stencil-gateway/internal/identity"
)

type generateRequest struct {
	ImageBase64 string `json:"imageBase64" binding:"required"`
	Style       string `json:"style"`
	MimeType    string `json:"mimeType"`
	Prompt      string `json:"prompt"`
}

type usage struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

type generateResponse struct {
	ImageBase64 string `json:"imageBase64"`
	Trial       usage  `json:"trial"`
	Hourly      usage  `json:"hourly"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Used  int    `json:"used,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// generate admits the request through the quota pipeline and, only then,
// forwards it to the transformation backend.
func (s *Server) generate(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	attrs := identity.Attrs{
		Phone:     c.GetHeader("X-User-Phone"),
		DeviceID:  c.GetHeader("X-Device-Id"),
		AccountID: c.GetHeader("X-Account-Id"),
	}

	decision, err := s.pipeline.Admit(c.Request.Context(), attrs)
	if err != nil {
		// Fail closed: a store outage never silently admits.
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "Quota check unavailable, try again"})
		return
	}
	if !decision.Admitted {
		c.JSON(decision.Code.HTTPStatus(), errorResponse{
			Error: decision.Code.Message(),
			Code:  string(decision.Code),
			Used:  decision.Used,
			Limit: decision.Limit,
		})
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "imageBase64 is required"})
		return
	}

	result, err := s.generator.Generate(c.Request.Context(), generation.Request{
		ImageBase64: req.ImageBase64,
		Style:       req.Style,
		MimeType:    req.MimeType,
		Note:        req.Prompt,
	})
	if err != nil {
		s.renderGenerationError(c, decision, err)
		return
	}

	c.JSON(http.StatusOK, generateResponse{
		ImageBase64: result.ImageBase64,
		Trial:       usage{Used: decision.Used, Limit: decision.Limit},
		Hourly:      usage{Used: decision.HourlyUsed, Limit: decision.HourlyLimit},
	})
}

func (s *Server) renderGenerationError(c *gin.Context, decision admission.Decision, err error) {
	var upstream *generation.UpstreamError
	switch {
	case errors.Is(err, generation.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "Image payload too large. Compress and try again."})
	case errors.As(err, &upstream):
		c.JSON(upstream.StatusCode, errorResponse{Error: upstream.Message})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "Timeout generating image"})
	case errors.Is(err, generation.ErrNoImage):
		c.JSON(http.StatusBadGateway, errorResponse{Error: "No image returned"})
	default:
		s.logger.Error("generation failed",
			zap.String("scope", decision.Scope.Key()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, errorResponse{Error: "Image generation failed"})
	}
}
