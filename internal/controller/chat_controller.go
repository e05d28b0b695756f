package controller

import (
	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/apperror"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, authMiddleware fiber.Handler)
	Save(ctx *fiber.Ctx) error
	Ask(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	ListGrouped(ctx *fiber.Ctx) error
	Get(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router, authMiddleware fiber.Handler) {
	h := r.Group("/chat", authMiddleware)
	h.Post("/save", c.Save)
	h.Post("/chatResponse", c.Ask)
	h.Get("/:userId", c.List)
	// Registered before /:userId/:chatId so "grouped" is not read as a chat id.
	h.Get("/:userId/grouped", c.ListGrouped)
	h.Get("/:userId/:chatId", c.Get)
	h.Delete("/:userId/:chatId", c.Delete)
}

func (c *chatController) Save(ctx *fiber.Ctx) error {
	var req dto.SaveChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	session, chatId, err := c.service.SaveTurns(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"chat":    session,
		"chatId":  chatId,
	})
}

func (c *chatController) Ask(ctx *fiber.Ctx) error {
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.service.Ask(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *chatController) List(ctx *fiber.Ctx) error {
	sessions, err := c.service.ListSessions(ctx.Context(), ctx.Params("userId"))
	if err != nil {
		return err
	}
	return ctx.JSON(sessions)
}

func (c *chatController) ListGrouped(ctx *fiber.Ctx) error {
	groups, err := c.service.ListSessionsGrouped(ctx.Context(), ctx.Params("userId"))
	if err != nil {
		return err
	}
	return ctx.JSON(groups)
}

func (c *chatController) Get(ctx *fiber.Ctx) error {
	turns, err := c.service.GetSession(ctx.Context(), ctx.Params("userId"), ctx.Params("chatId"))
	if err != nil {
		return err
	}
	return ctx.JSON(turns)
}

func (c *chatController) Delete(ctx *fiber.Ctx) error {
	if err := c.service.DeleteSession(ctx.Context(), ctx.Params("userId"), ctx.Params("chatId")); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"message": "Chat deleted successfully",
	})
}
