package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// RegisterAuthRoutes mounts the account endpoints on app. Mount
// ErrorTranslator and the authentication middleware before calling it.
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Put(controller.Routes.Register, controller.Register).Name("register.put")
	app.Post(controller.Routes.ActivateAccount, controller.ActivateAccount).Name("activate-account.post")
	app.Post(controller.Routes.Login, controller.Login).Name("login.post")
	app.Post(controller.Routes.Logout, RequireRole(RoleUser), controller.Logout).Name("logout.post")
	app.Post(controller.Routes.ResendActivation, controller.ResendActivation).Name("resend-activate-email.post")
	app.Post(controller.Routes.SendResetPassword, controller.SendResetPassword).Name("send-reset-password-email.post")
	app.Post(controller.Routes.UpdatePassword, RequireRole(RoleUser), controller.UpdatePassword).Name("update-password.post")
	app.Post(controller.Routes.TestNoAuth, controller.TestNoAuth).Name("test-no-auth.post")
	app.Post(controller.Routes.TestWithAuth, RequireRole(RoleAdmin), controller.TestWithAuth).Name("test-with-auth.post")
	app.Get(controller.Routes.Index, controller.Index).Name("index.get")

	return controller
}

type AuthControllerRoutes struct {
	Register          string
	ActivateAccount   string
	Login             string
	Logout            string
	ResendActivation  string
	SendResetPassword string
	UpdatePassword    string
	TestNoAuth        string
	TestWithAuth      string
	Index             string
}

type AuthController struct {
	Debug       bool
	Logger      Logger
	Repo        RepositoryManager
	Routes      *AuthControllerRoutes
	Auther      *Auther
	HTTP        *RouteAuthenticator
	Notifier    Notifier
	Activity    ActivitySink
	DefaultRole string
	ResetTTL    time.Duration
}

type AuthControllerOption func(*AuthController) *AuthController

func WithRepositoryManager(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithAuther(auther *Auther) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithHTTPAuthenticator(a *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.HTTP = a
		return c
	}
}

func WithNotifier(n Notifier) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Notifier = n
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithLifecycleConfig applies the default role and reset token lifetime
func WithLifecycleConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.DefaultRole = cfg.GetDefaultRole()
		c.ResetTTL = cfg.GetResetTokenTTL()
		return c
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:      defLogger{},
		Activity:    noopActivitySink{},
		DefaultRole: RoleUser,
		ResetTTL:    15 * time.Minute,
		Routes: &AuthControllerRoutes{
			Register:          "/register",
			ActivateAccount:   "/activate-account",
			Login:             "/login",
			Logout:            "/logout",
			ResendActivation:  "/resend-activate-email",
			SendResetPassword: "/send-reset-password-email",
			UpdatePassword:    "/update-password",
			TestNoAuth:        "/test-no-auth",
			TestWithAuth:      "/test-with-auth",
			Index:             "/index",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if c.HTTP == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// Register creates an inactive account and mails its activation link
func (a *AuthController) Register(ctx *fiber.Ctx) error {
	payload := new(RegisterAccountMessage)
	if err := bindBody(ctx, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return invalidPayload(err)
	}

	a.debug("register", map[string]any{"username": payload.Username, "email": payload.Email})

	handler := RegisterAccountHandler{
		repo:        a.Repo,
		notifier:    a.Notifier,
		activity:    a.Activity,
		logger:      a.Logger,
		defaultRole: a.DefaultRole,
	}
	if err := handler.Execute(ctx.UserContext(), *payload); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusOK)
}

// ActivateAccount flips the account matching the activation token in the body
func (a *AuthController) ActivateAccount(ctx *fiber.Ctx) error {
	token, err := rawBodyValue(ctx)
	if err != nil {
		return err
	}

	activated := false
	msg := ActivateAccountMessage{
		Token: token,
		OnResponse: func(ok bool) {
			activated = ok
		},
	}
	if err := msg.Validate(); err != nil {
		return invalidPayload(err)
	}

	handler := ActivateAccountHandler{repo: a.Repo, activity: a.Activity, logger: a.Logger}
	if err := handler.Execute(ctx.UserContext(), msg); err != nil {
		return err
	}

	return ctx.JSON(activated)
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// GetIdentifier returns the identifier, falling back to username
func (r LoginRequest) GetIdentifier() string {
	if strings.TrimSpace(r.Identifier) != "" {
		return strings.TrimSpace(r.Identifier)
	}
	return strings.TrimSpace(r.Username)
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	r.Identifier = r.GetIdentifier()
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// Login checks the credentials, sets the access cookie and returns the
// account snapshot.
func (a *AuthController) Login(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := bindBody(ctx, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return invalidPayload(err)
	}

	res, err := a.Auther.Login(ctx.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		return err
	}

	a.HTTP.SetCookieToken(ctx, res.Token)
	return ctx.JSON(res.Account)
}

// Logout clears the access cookie
func (a *AuthController) Logout(ctx *fiber.Ctx) error {
	a.HTTP.Logout(ctx)

	if identity, ok := GetIdentity(ctx); ok {
		emitActivity(ctx.UserContext(), a.Activity, a.Logger, ActivityEvent{
			EventType: ActivityEventLogout,
			AccountID: identity.ID,
		})
	}

	return ctx.SendStatus(fiber.StatusOK)
}

// ResendActivation mails the original activation link again
func (a *AuthController) ResendActivation(ctx *fiber.Ctx) error {
	identifier, err := rawBodyValue(ctx)
	if err != nil {
		return err
	}

	msg := ResendActivationMessage{Identifier: identifier}
	if err := msg.Validate(); err != nil {
		return invalidPayload(err)
	}

	handler := ResendActivationHandler{
		repo:     a.Repo,
		notifier: a.Notifier,
		activity: a.Activity,
		logger:   a.Logger,
	}
	if err := handler.Execute(ctx.UserContext(), msg); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusOK)
}

// SendResetPassword mails a reset link. The response never reveals whether
// the account exists.
func (a *AuthController) SendResetPassword(ctx *fiber.Ctx) error {
	email, err := rawBodyValue(ctx)
	if err != nil {
		return err
	}

	msg := InitializePasswordResetMessage{Email: email}
	if err := msg.Validate(); err != nil {
		return invalidPayload(err)
	}

	handler := InitializePasswordResetHandler{
		repo:     a.Repo,
		tokens:   a.Auther.TokenService(),
		notifier: a.Notifier,
		activity: a.Activity,
		logger:   a.Logger,
		ttl:      a.ResetTTL,
	}
	if err := handler.Execute(ctx.UserContext(), msg); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusOK)
}

// UpdatePassword sets the password of the authenticated identity
func (a *AuthController) UpdatePassword(ctx *fiber.Ctx) error {
	identity, ok := GetIdentity(ctx)
	if !ok {
		return ErrTokenMissing
	}

	password, err := rawBodyValue(ctx)
	if err != nil {
		return err
	}

	updated := false
	msg := UpdatePasswordMessage{
		Identity: identity,
		Password: password,
		OnResponse: func(ok bool) {
			updated = ok
		},
	}
	if err := msg.Validate(); err != nil {
		return invalidPayload(err)
	}

	handler := UpdatePasswordHandler{
		repo:     a.Repo,
		tokens:   a.Auther.TokenService(),
		activity: a.Activity,
		logger:   a.Logger,
	}
	if err := handler.Execute(ctx.UserContext(), msg); err != nil {
		return err
	}

	return ctx.JSON(updated)
}

func (a *AuthController) TestNoAuth(ctx *fiber.Ctx) error {
	return ctx.SendString("OK-no-auth")
}

func (a *AuthController) TestWithAuth(ctx *fiber.Ctx) error {
	return ctx.SendString("OK-with-auth")
}

func (a *AuthController) Index(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"service": "planner-auth",
		"status":  "ok",
	})
}

func (a *AuthController) debug(action string, payload any) {
	if !a.Debug {
		return
	}
	a.Logger.Debug("auth request", "action", action, "payload", print.MaybePrettyJSON(payload))
}

// bindBody binds a JSON request body into payload
func bindBody(ctx *fiber.Ctx, payload any) error {
	if len(strings.TrimSpace(string(ctx.Body()))) == 0 {
		return annotate(ErrInvalidPayload, nil, map[string]any{"body": "empty"})
	}
	if err := ctx.BodyParser(payload); err != nil {
		return annotate(ErrInvalidPayload, err, map[string]any{
			"content_type": string(ctx.Request().Header.ContentType()),
		})
	}
	return nil
}

// rawBodyValue reads a body that carries a single bare value, either as
// plain text or as a JSON string literal.
func rawBodyValue(ctx *fiber.Ctx) (string, error) {
	body := strings.TrimSpace(string(ctx.Body()))
	if strings.HasPrefix(body, `"`) {
		var s string
		if err := json.Unmarshal([]byte(body), &s); err != nil {
			return "", annotate(ErrInvalidPayload, err, nil)
		}
		body = strings.TrimSpace(s)
	}
	if body == "" {
		return "", annotate(ErrInvalidPayload, nil, map[string]any{"body": "empty"})
	}
	return body, nil
}

func invalidPayload(err error) error {
	return annotate(ErrInvalidPayload, err, map[string]any{
		"validation": FormatValidationErrorToMap(err),
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors by field
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}
	if err != nil {
		out["error"] = fmt.Sprint(err)
	}
	return out
}
