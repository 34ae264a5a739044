package access

import (
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController handles the auth and permissions JSON routes.
type HTTPController struct {
	Debug  bool
	Logger Logger
	Repo   RepositoryManager
	Auther Authenticator
	Config HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// AuthPrefix for token routes (default: "/auth")
	AuthPrefix string

	// PermissionsPrefix for workflow routes (default: "/permissions")
	PermissionsPrefix string

	// ContextKey is the router locals key the auth middleware stores the
	// live user under (default: "user")
	ContextKey string

	// Authenticated guards routes that need a valid token + live user
	Authenticated router.MiddlewareFunc

	// AdminOnly guards the review endpoints, runs after Authenticated
	AdminOnly router.MiddlewareFunc

	// Activity receives audit events for access decisions (optional)
	Activity ActivitySink
}

// NewHTTPController creates the controller, panicking on missing collaborators
// the same way the rest of the package treats wiring errors.
func NewHTTPController(repo RepositoryManager, auther Authenticator, cfg HTTPConfig) *HTTPController {
	if repo == nil {
		panic("Missing RepositoryManager in access controller...")
	}
	if auther == nil {
		panic("Missing Authenticator in access controller...")
	}

	if cfg.AuthPrefix == "" {
		cfg.AuthPrefix = "/auth"
	}
	if cfg.PermissionsPrefix == "" {
		cfg.PermissionsPrefix = "/permissions"
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}
	cfg.Activity = normalizeActivitySink(cfg.Activity)

	return &HTTPController{
		Logger: defLogger{},
		Repo:   repo,
		Auther: auther,
		Config: cfg,
	}
}

func (a *HTTPController) WithLogger(l Logger) *HTTPController {
	if l != nil {
		a.Logger = l
	}
	return a
}

// RegisterRoutes registers auth and permissions routes.
func (a *HTTPController) RegisterRoutes(app RouteRegistrar) {
	auth := a.Config.AuthPrefix
	perms := a.Config.PermissionsPrefix

	app.Post(auth+"/login", a.Login).SetName("auth.login")
	app.Post(auth+"/register", a.Register).SetName("auth.register")
	app.Post(auth+"/refresh", a.RefreshToken).SetName("auth.refresh")
	app.Post(auth+"/logout", a.Logout).SetName("auth.logout")
	app.Get(auth+"/me", a.Me, a.Config.Authenticated).SetName("auth.me")

	app.Post(perms+"/request-access", a.RequestAccess, a.Config.Authenticated).
		SetName("permissions.request")
	app.Get(perms+"/requests", a.ListRequests, a.Config.Authenticated, a.Config.AdminOnly).
		SetName("permissions.list")
	app.Post(perms+"/approve/:id", a.Approve, a.Config.Authenticated, a.Config.AdminOnly).
		SetName("permissions.approve")
	app.Post(perms+"/deny/:id", a.Deny, a.Config.Authenticated, a.Config.AdminOnly).
		SetName("permissions.deny")
}

// UserRecord is the user projection returned by the API
type UserRecord struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	HasPostingAccess bool       `json:"hasPostingAccess"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
}

func NewUserDTO(user *User) UserRecord {
	return UserRecord{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Role:             string(user.Role),
		HasPostingAccess: user.HasPostingAccess,
		LastLogin:        user.LastLogin,
		CreatedAt:        user.CreatedAt,
	}
}

// AccessRequestRecord is the joined request projection for admin review
type AccessRequestRecord struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"userId"`
	UserName  string     `json:"userName,omitempty"`
	UserEmail string     `json:"userEmail,omitempty"`
	Reason    string     `json:"reason"`
	Status    string     `json:"status"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func NewAccessRequestDTO(record *AccessRequest) AccessRequestRecord {
	dto := AccessRequestRecord{
		ID:        record.ID,
		UserID:    record.UserID,
		Reason:    record.Reason,
		Status:    record.Status,
		CreatedAt: record.CreatedAt,
	}

	if record.User != nil {
		dto.UserName = record.User.Name
		dto.UserEmail = record.User.Email
	}

	return dto
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(
				&r.Email,
				validation.Required,
				is.Email,
			),
			validation.Field(
				&r.Password,
				validation.Required,
			),
		)
	}, "Invalid login request payload")
}

func (a *HTTPController) Login(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return WriteError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return WriteError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= ACCESS LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===========================")
	}

	pair, user, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login failed", "error", err, "email", NormalizeEmail(payload.Email))
		return WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"token":        pair.Token,
		"refreshToken": pair.RefreshToken,
		"user":         NewUserDTO(user),
	})
}

// RegisterRequest payload
type RegisterRequest struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Role     string `form:"role" json:"role"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
			validation.Field(&r.Role, validation.In(
				string(RoleMember),
				string(RoleDoctor),
				string(RoleAdmin),
			)),
			validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		)
	}, "Invalid registration payload")
}

func (a *HTTPController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return WriteError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return WriteError(ctx, err)
	}

	var user *User
	msg := RegisterUserMessage{
		Name:     payload.Name,
		Email:    payload.Email,
		Role:     payload.Role,
		Password: payload.Password,
		OnResponse: func(u *User) {
			user = u
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo)
	if err := registerUser.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("register user error", "error", err)
		return WriteError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"user": NewUserDTO(user),
	})
}

// RefreshRequest payload
type RefreshRequest struct {
	RefreshToken string `form:"refreshToken" json:"refreshToken"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.RefreshToken, validation.Required),
		)
	}, "Invalid refresh request payload")
}

func (a *HTTPController) RefreshToken(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return WriteError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return WriteError(ctx, err)
	}

	token, _, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		a.Logger.Error("refresh failed", "error", err)
		return WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"token": token,
	})
}

// LogoutRequest carries the access token being retired
type LogoutRequest struct {
	Token string `form:"token" json:"token"`
}

// Validate will run validation rules
func (r LogoutRequest) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Token, validation.Required),
		)
	}, "Invalid logout payload")
}

// Logout acknowledges the client purge. Tokens are stateless so there is
// nothing to revoke server side; the endpoint exists so clients have a single
// place to report logout and a hook for future denylisting.
func (a *HTTPController) Logout(ctx router.Context) error {
	payload := new(LogoutRequest)

	if err := ctx.Bind(payload); err != nil {
		return WriteError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// Me returns the live user attached by the auth middleware
func (a *HTTPController) Me(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, a.Config.ContextKey)
	if !ok {
		return WriteError(ctx, ErrTokenMalformed)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": NewUserDTO(user),
	})
}

// RequestAccessPayload is the posting access petition body
type RequestAccessPayload struct {
	Reason string `form:"reason" json:"reason"`
}

// Validate will run validation rules. The reason is free text and may be
// empty; only runaway payloads are rejected.
func (r RequestAccessPayload) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Reason, validation.Length(0, 2000)),
		)
	}, "Invalid access request payload")
}

func (a *HTTPController) RequestAccess(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, a.Config.ContextKey)
	if !ok {
		return WriteError(ctx, ErrTokenMalformed)
	}

	payload := new(RequestAccessPayload)
	if err := ctx.Bind(payload); err != nil {
		return WriteError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return WriteError(ctx, err)
	}

	var record *AccessRequest
	msg := RequestAccessMessage{
		UserID: user.ID,
		Reason: payload.Reason,
		OnResponse: func(r *AccessRequest) {
			record = r
		},
	}

	requestAccess := NewRequestAccessHandler(a.Repo)
	if err := requestAccess.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("request access error", "error", err, "user_id", user.ID)
		return WriteError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"requestId": record.ID,
		"status":    record.Status,
	})
}

func (a *HTTPController) ListRequests(ctx router.Context) error {
	status := ctx.Query("status")
	if status != "" {
		switch status {
		case RequestStatusPending, RequestStatusApproved, RequestStatusDenied:
		default:
			return WriteError(ctx, goerrors.New("invalid status filter", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithMetadata(map[string]any{"status": status}))
		}
	}

	records, err := a.Repo.AccessRequests().List(ctx.Context(), status)
	if err != nil {
		a.Logger.Error("list requests error", "error", err)
		return WriteError(ctx, err)
	}

	requests := make([]AccessRequestRecord, 0, len(records))
	for _, record := range records {
		requests = append(requests, NewAccessRequestDTO(record))
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"requests": requests,
		"total":    len(requests),
	})
}

func (a *HTTPController) Approve(ctx router.Context) error {
	requestID, err := a.requestIDParam(ctx)
	if err != nil {
		return WriteError(ctx, err)
	}

	var user *User
	msg := ApproveAccessMessage{
		RequestID: requestID,
		OnResponse: func(r *AccessRequest, u *User) {
			user = u
		},
	}

	approve := NewApproveAccessHandler(a.Repo).WithActivitySink(a.Config.Activity)
	if err := approve.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("approve request error", "error", err, "request_id", requestID)
		return WriteError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"user":    NewUserDTO(user),
	})
}

// DenyPayload carries the optional denial reason, echoed but not persisted
type DenyPayload struct {
	Reason string `form:"reason" json:"reason"`
}

func (a *HTTPController) Deny(ctx router.Context) error {
	requestID, err := a.requestIDParam(ctx)
	if err != nil {
		return WriteError(ctx, err)
	}

	payload := new(DenyPayload)
	// body is optional for deny
	_ = ctx.Bind(payload)

	var record *AccessRequest
	msg := DenyAccessMessage{
		RequestID: requestID,
		Reason:    payload.Reason,
		OnResponse: func(r *AccessRequest) {
			record = r
		},
	}

	deny := NewDenyAccessHandler(a.Repo).WithActivitySink(a.Config.Activity)
	if err := deny.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("deny request error", "error", err, "request_id", requestID)
		return WriteError(ctx, err)
	}

	response := map[string]any{
		"success": true,
		"request": NewAccessRequestDTO(record),
	}
	if payload.Reason != "" {
		response["reason"] = payload.Reason
	}

	return ctx.JSON(router.StatusOK, response)
}

func (a *HTTPController) requestIDParam(ctx router.Context) (uuid.UUID, error) {
	raw := ctx.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, goerrors.New("invalid request id", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"id": raw})
	}
	return id, nil
}
