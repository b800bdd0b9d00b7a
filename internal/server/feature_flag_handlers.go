package server

import (
	"jnestagram/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatures returns the evaluated feature flags for the caller.
// @Summary Feature flags
// @Description Stored flags for this stage, overridden by FEATURE_FLAGS from the environment
// @Tags features
// @Produce json
// @Success 200 {object} object{flags=map[string]bool}
// @Router /features [get]
func (s *Server) GetFeatures(c *fiber.Ctx) error {
	flags, err := s.gate.Snapshot(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"flags": flags})
}

// GetAdminFeatures lists stored features alongside the environment overrides.
// @Summary Stored features
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{features=[]models.Feature,overrides=map[string]string}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/features [get]
func (s *Server) GetAdminFeatures(c *fiber.Ctx) error {
	features, err := s.gate.ListFeatures(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"features":  features,
		"overrides": s.flags.Raw(),
	})
}

// SaveFeature creates or updates a feature by name.
// @Summary Save a feature
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.Feature true "Feature"
// @Success 200 {object} models.Feature
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/features [put]
func (s *Server) SaveFeature(c *fiber.Ctx) error {
	var req struct {
		Name              string `json:"name"`
		Developer         string `json:"developer"`
		StagingEnabled    bool   `json:"staging_enabled"`
		ProductionEnabled bool   `json:"production_enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	feature := &models.Feature{
		Name:              req.Name,
		Developer:         req.Developer,
		StagingEnabled:    req.StagingEnabled,
		ProductionEnabled: req.ProductionEnabled,
	}
	if err := s.gate.SaveFeature(c.UserContext(), feature); err != nil {
		return respondError(c, err)
	}
	return c.JSON(feature)
}

// GetLandingPages lists the site-wide landing pages.
// @Summary Landing pages
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.LandingPage
// @Router /admin/landing-pages [get]
func (s *Server) GetLandingPages(c *fiber.Ctx) error {
	pages, err := s.gate.ListLandingPages(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pages)
}

// SetLandingPage switches a landing page on or off. "Maintenance" closes the
// public API.
// @Summary Switch a landing page
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "Landing page name"
// @Param request body object{is_active=bool} true "State"
// @Success 200 {object} object{name=string,is_active=bool}
// @Router /admin/landing-pages/{name} [put]
func (s *Server) SetLandingPage(c *fiber.Ctx) error {
	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	name := c.Params("name")
	if err := s.gate.SetLandingPage(c.UserContext(), name, req.IsActive); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"name": name, "is_active": req.IsActive})
}

// RecountCounters rebuilds every denormalized counter from its source rows.
// @Summary Recount counters
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{corrected=map[string]int,total=int}
// @Router /admin/counters/recount [post]
func (s *Server) RecountCounters(c *fiber.Ctx) error {
	report, err := s.counters.RecountAll(c.UserContext(), s.db)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"corrected": report,
		"total":     report.Total(),
	})
}
