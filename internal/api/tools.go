package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/generator"
	"github.com/vaultguard/vaultguard/internal/strength"
)

type generateRequest struct {
	Length           int   `json:"length"`
	Lowercase        *bool `json:"lowercase"`
	Uppercase        *bool `json:"uppercase"`
	Digits           *bool `json:"digits"`
	Symbols          *bool `json:"symbols"`
	ExcludeAmbiguous *bool `json:"exclude_ambiguous"`
}

// handleGenerate produces a random password and scores it
func (s *Server) handleGenerate(c *gin.Context) {
	req := generateRequest{Length: generator.DefaultLength}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, &errors.ErrValidation{Field: "body", Reason: "malformed generate request"})
			return
		}
	}
	if req.Length == 0 {
		req.Length = generator.DefaultLength
	}

	opts := generator.DefaultOptions()
	if req.Lowercase != nil {
		opts.IncludeLowercase = *req.Lowercase
	}
	if req.Uppercase != nil {
		opts.IncludeUppercase = *req.Uppercase
	}
	if req.Digits != nil {
		opts.IncludeNumbers = *req.Digits
	}
	if req.Symbols != nil {
		opts.IncludeSymbols = *req.Symbols
	}
	if req.ExcludeAmbiguous != nil {
		opts.ExcludeAmbiguous = *req.ExcludeAmbiguous
	}

	password, err := generator.Generate(req.Length, opts)
	if err != nil {
		s.metrics.RecordPasswordGenerated("error")
		s.writeError(c, err)
		return
	}

	result := strength.Score(password)
	s.metrics.RecordPasswordGenerated("success")
	c.JSON(http.StatusOK, gin.H{
		"password": password,
		"strength": result,
	})
}

type strengthRequest struct {
	Candidate string `json:"candidate"`
}

// handleStrength scores a candidate password
func (s *Server) handleStrength(c *gin.Context) {
	var req strengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, &errors.ErrValidation{Field: "body", Reason: "malformed strength request"})
		return
	}

	result := strength.Score(req.Candidate)
	s.metrics.RecordStrengthScore(result.Score)
	c.JSON(http.StatusOK, result)
}
