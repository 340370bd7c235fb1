package account

import (
	"github.com/go-playground/validator/v10"

	"github.com/MagetoJ/EduKE-sub001/core"
)

// NewSchool contains what is needed to register a school and its first administrator.
type NewSchool struct {
	SchoolName string `json:"schoolName" validate:"required,max=200"`
	Curriculum string `json:"curriculum" validate:"required,curriculum"`
	AdminName  string `json:"adminName" validate:"required,max=200"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Password   string `json:"password" validate:"required"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.SchoolName = core.CleanString(ns.SchoolName)
	ns.Curriculum = core.CleanString(ns.Curriculum, true /* lower */)
	if ns.Curriculum == "" {
		ns.Curriculum = DefaultCurriculum
	}
	ns.AdminName = core.CleanString(ns.AdminName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.Phone != "" {
		ns.Phone, _ = NormalizePhone(ns.Phone)
	}
	return nil
}

// NewAccount contains what an administrator provides to create an account in their school.
// The account is created with a temporary password that must be changed at first login.
type NewAccount struct {
	TenantID     string `json:"tenantId"`
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Role         Role   `json:"role" validate:"required,role"`
	Phone        string `json:"phone" validate:"omitempty,phone"`
	TempPassword string `json:"temporaryPassword" validate:"required,min=6"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.TenantID = core.CleanString(na.TenantID)
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Role = Role(core.CleanString(string(na.Role), true /* lower */))
	na.Phone = core.CleanString(na.Phone)

	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.Phone != "" {
		na.Phone, _ = NormalizePhone(na.Phone)
	}
	return nil
}
