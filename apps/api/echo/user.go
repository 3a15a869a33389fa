package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/report"
	"github.com/vigilsat/vigil/core/user"
)

const passwordResetMessage = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type userApi struct {
	svc       *user.Service
	reportSvc *report.Service
	validate  *validator.Validate
	conf      *core.Config
}

func registerAuthAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *user.Service,
	reportSvc *report.Service,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := userApi{
		svc:       svc,
		reportSvc: reportSvc,
		validate:  validate,
		conf:      conf,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/register", api.register)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.GET("/profile", api.profile, jwt)
	ag.PUT("/profile", api.updateProfile, jwt)
	ag.POST("/change-password", api.changePassword, jwt)
	ag.POST("/refresh", api.refreshToken, jwt)
	ag.POST("/logout", api.logout, jwt)
	ag.POST("/mfa/setup", api.setupMFA, jwt)
	ag.POST("/mfa/verify", api.verifyMFA, jwt)
	ag.POST("/mfa/disable", api.disableMFA, jwt)

	pg := g.Group("/profile", jwt)
	pg.GET("", api.profile)
	pg.GET("/stats", api.stats)

	ug := g.Group("/users", jwt)
	ug.GET("", api.query, staffOnly)
	ug.PUT("/:id", api.update, adminOnly)
	ug.DELETE("/:id", api.destroy, adminOnly)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password, data.MFACode)
	if err != nil {
		return userError(err, "authenticating")
	}
	return api.tokenResponse(ctx, http.StatusOK, usr)
}

func (api *userApi) register(ctx echo.Context) error {
	var data RegisterRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), user.NewUser{
		Username:   data.Username,
		Email:      data.Email,
		Password:   data.Password,
		FirstName:  data.FirstName,
		LastName:   data.LastName,
		Department: data.Department,
		Role:       user.RoleEmployee,
	})
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return api.tokenResponse(ctx, http.StatusCreated, usr)
}

func (api *userApi) tokenResponse(ctx echo.Context, code int, usr user.User) error {
	token, err := GenerateToken(api.conf, NewUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(code, LoginResponse{Token: token, User: &usr})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetMessage})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if _, err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return userError(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) ctxUser(ctx echo.Context) (user.User, error) {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), id.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

func (api *userApi) profile(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateProfile
	if err = bind(ctx, &data); err != nil {
		return err
	}
	usr, err := api.svc.UpdateProfile(ctx.Request().Context(), id.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) stats(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	stats, err := api.reportSvc.UserStats(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "computing user stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *userApi) changePassword(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	var data user.ChangePassword
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = api.svc.ChangePassword(ctx.Request().Context(), id.ID, data); err != nil {
		return userError(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been changed."})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// logout is stateless: the client drops its token.
func (api *userApi) logout(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Logged out."})
}

func (api *userApi) setupMFA(ctx echo.Context) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	setup, err := api.svc.SetupMFA(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "setting up mfa")
	}
	return ctx.JSON(http.StatusOK, setup)
}

func (api *userApi) verifyMFA(ctx echo.Context) error {
	return api.toggleMFA(ctx, true)
}

func (api *userApi) disableMFA(ctx echo.Context) error {
	return api.toggleMFA(ctx, false)
}

func (api *userApi) toggleMFA(ctx echo.Context, enable bool) error {
	id, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	var data MFACodeRequest
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	if enable {
		err = api.svc.EnableMFA(rctx, id.ID, data.Code)
	} else {
		err = api.svc.DisableMFA(rctx, id.ID, data.Code)
	}
	if err != nil {
		return userError(err, "toggling mfa")
	}

	msg := "MFA disabled."
	if enable {
		msg = "MFA enabled."
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: msg})
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}

	users, err := api.svc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err = bind(ctx, &data); err != nil {
		return err
	}

	// admins cannot demote or deactivate themselves
	ctxID, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	if id == ctxID.ID && ((data.Role != nil && *data.Role != user.RoleAdmin) || (data.IsActive != nil && !*data.IsActive)) {
		return errHttpForbidden
	}

	usr, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxID, err := ctxIdentity(ctx)
	if err != nil {
		return err
	}
	if id == ctxID.ID {
		return errHttpForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
		MFACode  string `json:"mfa_code"`
	}

	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	RegisterRequest struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		Department string `json:"department"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	MFACodeRequest struct {
		Code string `json:"code" validate:"required"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
