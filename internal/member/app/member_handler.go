package app

import (
	"task_chat_service/internal/member/domain"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"
	"task_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MemberHandler device registration REST handler
type MemberHandler struct {
	Usecase MemberUseCase
}

// NewMemberHandler create MemberHandler
func NewMemberHandler(uc MemberUseCase) *MemberHandler {
	return &MemberHandler{Usecase: uc}
}

// RegisterDevice register push token
// @Summary Register push device
// @Tags Member
// @Accept json
// @Produce json
// @Param body body domain.MemberDevice true "device"
// @Success 204
// @Failure 400 {object} map[string]interface{}
// @Router /devices [put]
func (h *MemberHandler) RegisterDevice(c *fiber.Ctx) error {
	var device domain.MemberDevice
	if err := c.BodyParser(&device); err != nil {
		return errprocess.Respond(c, errprocess.Wrap(errprocess.KindValidation, err, "invalid body"))
	}
	memberID := middlewares.MemberID(c)
	if err := h.Usecase.RegisterDevice(c.UserContext(), memberID, &device); err != nil {
		logger.Log.Error("RegisterDevice Err", zap.String("member_id", memberID), zap.Error(err))
		return errprocess.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UnregisterDevice remove push token
// @Summary Unregister push device
// @Tags Member
// @Param device_id path string true "device id"
// @Success 204
// @Router /devices/{device_id} [delete]
func (h *MemberHandler) UnregisterDevice(c *fiber.Ctx) error {
	if err := h.Usecase.UnregisterDevice(c.UserContext(), middlewares.MemberID(c), c.Params("device_id")); err != nil {
		return errprocess.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
