package controller

import (
	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/apperror"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
	VerifyEmail(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	ForgotPassword(ctx *fiber.Ctx) error
	ResetPassword(ctx *fiber.Ctx) error
}

type authController struct {
	service service.IAuthService
}

func NewAuthController(service service.IAuthService) IAuthController {
	return &authController{service: service}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth")
	h.Post("/register", c.Register)
	h.Get("/verify-email", c.VerifyEmail)
	h.Post("/login", c.Login)
	h.Post("/forgot-password", c.ForgotPassword)
	h.Post("/reset-password", c.ResetPassword)
}

func (c *authController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.service.Register(ctx.Context(), &req)
	if err != nil {
		return err
	}

	message := "Registration successful. Please check your email to verify your account."
	if res.EmailDeferred {
		message = "Registration successful, but the verification email could not be sent. Please try logging in later to receive a new one."
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
	})
}

func (c *authController) VerifyEmail(ctx *fiber.Ctx) error {
	token := ctx.Query("token")

	if err := c.service.VerifyEmail(ctx.Context(), token); err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"message": "Email verified successfully. You can now log in.",
	})
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.service.Login(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"message": "Login successful",
		"user":    res.User,
		"token":   res.Token,
	})
}

func (c *authController) ForgotPassword(ctx *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	if err := c.service.ForgotPassword(ctx.Context(), &req); err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"message": "If an account with that email exists, a password reset link has been sent.",
	})
}

func (c *authController) ResetPassword(ctx *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	if err := c.service.ResetPassword(ctx.Context(), &req); err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"message": "Password has been reset successfully. You can now log in.",
	})
}
