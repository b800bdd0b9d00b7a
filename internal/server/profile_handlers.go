package server

import (
	"jnestagram/internal/models"
	"jnestagram/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetOwnProfile handles GET /api/profile
// @Summary My profile
// @Description Includes private posts and the comments waiting for approval.
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.OwnProfile
// @Router /profile [get]
func (s *Server) GetOwnProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.OwnProfile(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateProfile handles PUT /api/profile
// @Summary Update my profile
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{email=string,phone_number=int,country_id=int,bio=string} true "Profile"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Router /profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		Email       string `json:"email"`
		PhoneNumber *int64 `json:"phone_number"`
		CountryID   *uint  `json:"country_id"`
		Bio         string `json:"bio"`
	}
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	profile, err := s.profileService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:      viewerID(c),
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		CountryID:   req.CountryID,
		Bio:         req.Bio,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UploadAvatar handles POST /api/profile/avatar
// @Summary Upload an avatar
// @Description The image is resized to fit the configured square and stored as WebP.
// @Tags profile
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Image"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Router /profile/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	content, err := readUpload(c, "avatar")
	if err != nil {
		return respondError(c, err)
	}
	if content == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}

	profile, err := s.profileService.UploadAvatar(c.UserContext(), viewerID(c), content)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetPublicProfile handles GET /api/users/:username
// @Summary A user's public profile
// @Tags profile
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} service.PublicProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username} [get]
func (s *Server) GetPublicProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.PublicProfile(c.UserContext(), c.Params("username"), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetCountries handles GET /api/countries
// @Summary Selectable countries
// @Tags profile
// @Produce json
// @Success 200 {array} models.Country
// @Router /countries [get]
func (s *Server) GetCountries(c *fiber.Ctx) error {
	countries, err := s.profileService.Countries(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(countries)
}
