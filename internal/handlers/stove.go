package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"stove_control/internal/models"
	"stove_control/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK      = "ok"
	statusSuccess = "success"
	statusError   = "error"

	statusAgeReceived  = "age_verification_received"
	statusFireReceived = "cooking_fire_status_received"
	statusFoodReceived = "food_detection_received"

	msgInternalError   = "Internal Server Error"
	errInvalidBodyPref = "invalid body: "
)

type commandRequest struct {
	Command string `json:"command" binding:"required" example:"start cooking"`
}

// CommandResponse is returned by POST /command.
type CommandResponse struct {
	Status      string            `json:"status" example:"success"`
	Message     string            `json:"message" example:"Cooking mode activated. Gas valve opened."`
	SystemState models.SystemMode `json:"systemState" example:"COOKING_ACTIVE"`
	ValveState  bool              `json:"valveState" example:"true"`
}

type verifyAgeRequest struct {
	Status string `json:"status" binding:"required" example:"VERIFIED"`
	Age    string `json:"age" binding:"required" example:"ADULT"`
}

type fireStatusRequest struct {
	CookingStatus string `json:"cookingStatus" binding:"required" example:"COOKING_SAFE"`
}

type foodRequest struct {
	DetectedFood string `json:"detectedFood" example:"pasta"`
}

// jsonError writes the {status:"error"} body used by every stove endpoint.
func jsonError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"status": statusError, "message": msg})
}

// bindStove binds the request body and answers 400 on failure.
func (h *Handler) bindStove(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.log.Infow("stove_bad_request_body", "path", c.Request.URL.Path, "err", err)
		jsonError(c, http.StatusBadRequest, errInvalidBodyPref+err.Error())
		return false
	}
	return true
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Current stove snapshot
// @Tags         stove
// @Produce      json
// @Success      200  {object}  models.SystemSnapshot
// @Router       /api/status [get]
func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Snapshot())
}

// @Summary      Apply a user command
// @Description  Commands: wake, activate system, sleep, shut down, start cooking, boil water, stop cooking, turn off, emergency stop.
// @Tags         stove
// @Accept       json
// @Produce      json
// @Param        body  body      commandRequest  true  "Command"
// @Success      200   {object}  CommandResponse
// @Failure      400   {object}  map[string]string
// @Router       /api/command [post]
func (h *Handler) postCommand(c *gin.Context) {
	var req commandRequest
	if !h.bindStove(c, &req) {
		return
	}

	res, err := h.services.ApplyCommand(c.Request.Context(), req.Command)
	resp := CommandResponse{
		Status:      statusSuccess,
		Message:     res.Message,
		SystemState: res.SystemState,
		ValveState:  res.ValveState,
	}
	if err != nil {
		// Rejections are an answer, not a transport failure.
		resp.Status = statusError
		resp.Message = sentence(err.Error())
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Report age verification
// @Tags         perception
// @Accept       json
// @Produce      json
// @Param        body  body      verifyAgeRequest  true  "PENDING|VERIFIED and UNKNOWN|ADULT|CHILD"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Router       /api/verify_age [post]
func (h *Handler) verifyAge(c *gin.Context) {
	var req verifyAgeRequest
	if !h.bindStove(c, &req) {
		return
	}

	status := models.VerificationStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	age := models.UserAgeClass(strings.ToUpper(strings.TrimSpace(req.Age)))
	if err := h.services.SetVerification(c.Request.Context(), status, age); err != nil {
		h.stoveInputError(c, err, service.ErrInvalidVerification, "verify_age_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             statusAgeReceived,
		"verificationStatus": status,
		"userAge":            age,
	})
}

// @Summary      Report cooking/fire status
// @Tags         perception
// @Accept       json
// @Produce      json
// @Param        body  body      fireStatusRequest  true  "IDLE|COOKING_SAFE|FIRE_OUTBREAK"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Router       /api/cooking_fire_status [post]
func (h *Handler) cookingFireStatus(c *gin.Context) {
	var req fireStatusRequest
	if !h.bindStove(c, &req) {
		return
	}

	status := models.CookingFireStatus(strings.ToUpper(strings.TrimSpace(req.CookingStatus)))
	if err := h.services.SetCookingFireStatus(c.Request.Context(), status); err != nil {
		h.stoveInputError(c, err, service.ErrInvalidFireStatus, "cooking_fire_status_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusFireReceived})
}

// @Summary      Report detected food
// @Tags         perception
// @Accept       json
// @Produce      json
// @Param        body  body      foodRequest  true  "Free-form label"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Router       /api/food_detected [post]
func (h *Handler) foodDetected(c *gin.Context) {
	var req foodRequest
	if !h.bindStove(c, &req) {
		return
	}
	h.services.SetFoodDetected(c.Request.Context(), req.DetectedFood)
	c.JSON(http.StatusOK, gin.H{"status": statusFoodReceived})
}

// stoveInputError answers 400 for a rejected enum value and 500 otherwise.
func (h *Handler) stoveInputError(c *gin.Context, err, invalid error, logKey string) {
	if errors.Is(err, invalid) {
		h.log.Infow(logKey, "err", err)
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Errorw(logKey, "err", err)
	jsonError(c, http.StatusInternalServerError, msgInternalError)
}

// sentence capitalizes msg and ends it with a period.
func sentence(msg string) string {
	if msg == "" {
		return msg
	}
	r := []rune(msg)
	r[0] = unicode.ToUpper(r[0])
	if !strings.HasSuffix(msg, ".") {
		r = append(r, '.')
	}
	return string(r)
}
