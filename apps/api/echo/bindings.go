package echoapi

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/authz"
	"github.com/MagetoJ/EduKE-sub001/core/token"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		Remember bool   `json:"remember"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	// ChangePasswordRequest leaves password strength to the service so a weak password is
	// always reported as such.
	ChangePasswordRequest struct {
		NewPassword string `json:"newPassword"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email" validate:"required"`
	}

	ResetPasswordRequest struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password"`
	}

	VerifyEmailRequest struct {
		Token string `json:"token" validate:"required"`
	}

	RoleRequest struct {
		Role account.Role `json:"role" validate:"required,role"`
	}

	SuccessResponse struct {
		Message string `json:"message"`
	}

	GrantResponse struct {
		Outcome auth.Outcome `json:"outcome"`
		token.Grant
		ExpiresAt time.Time         `json:"expiresAt"`
		User      account.Principal `json:"user"`
	}

	MeResponse struct {
		User         account.Principal  `json:"user"`
		Capabilities []authz.Capability `json:"capabilities"`
	}

	RegisterSchoolResponse struct {
		School account.School  `json:"school"`
		User   account.Account `json:"user"`
	}
)

func newGrantResponse(res auth.LoginResult) GrantResponse {
	return GrantResponse{
		Outcome:   res.Outcome,
		Grant:     res.Grant,
		ExpiresAt: res.Grant.AccessExpiresAt,
		User:      res.Principal,
	}
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (rr *RefreshRequest) Validate(validate *validator.Validate) error {
	rr.RefreshToken = core.CleanString(rr.RefreshToken)
	return validate.Struct(rr)
}

func (rr *ResetPasswordRequest) Validate(validate *validator.Validate) error {
	rr.Token = core.CleanString(rr.Token)
	return validate.Struct(rr)
}

func (vr *VerifyEmailRequest) Validate(validate *validator.Validate) error {
	vr.Token = core.CleanString(vr.Token)
	return validate.Struct(vr)
}

func (rr *RoleRequest) Validate(validate *validator.Validate) error {
	rr.Role = account.Role(core.CleanString(string(rr.Role), true /* lower */))
	return validate.Struct(rr)
}
