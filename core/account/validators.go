package account

import (
	"bufio"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/MagetoJ/EduKE-sub001/core"
)

// Password minimums. A forced change (temporary password handed out by an admin) only
// asks for MinForcedChangePasswordLen; registration and reset ask for MinPasswordLen.
const (
	MinForcedChangePasswordLen = 6
	MinPasswordLen             = 8
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// DefaultPhoneRegion is used to parse phone numbers entered without a country code.
const DefaultPhoneRegion = "KE"

var (
	rolesTag  = "role"
	rolesText = "invalid role"

	curriculumTag  = "curriculum"
	curriculumText = "unsupported curriculum"

	phoneTag  = "phone"
	phoneText = "enter a valid phone number"

	pwdMinLenTag   = "pwdminlen"
	pwdMinLenText  = fmt.Sprintf("password must contain at least %d characters", MinPasswordLen)
	pwdMaxLenTag   = "pwdmaxlen"
	pwdMaxLenText  = fmt.Sprintf("password must not be longer than %d bytes", MaxPasswordBytes)
	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not start or end with whitespace"
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your name or email"
	pwdNoCommonTag = "pwdnocommon"
	pwdCommonText  = "password is too common"
	pwdMaxSim      = .7

	//go:embed common-passwords.txt
	commonPasswordsRaw string
	commonPasswords    = loadCommonPasswords(commonPasswordsRaw)
)

func loadCommonPasswords(raw string) []string {
	pwds := make([]string, 0, 128)
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, strings.ToLower(pwd))
		}
	}
	sort.Strings(pwds)
	return pwds
}

// RegisterValidators adds the account tags and struct validations to validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(rolesTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, rolesTag, rolesText)

	_ = validate.RegisterValidation(curriculumTag, curriculumValidation)
	core.RegisterCustomTranslation(validate, translator, curriculumTag, curriculumText)

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	core.RegisterCustomTranslation(validate, translator, phoneTag, phoneText, true)

	validate.RegisterStructValidation(registrationStructValidation, NewSchool{})
	validate.RegisterStructValidation(newAccountStructValidation, NewAccount{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdMaxLenTag, pwdMaxLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdCommonText)
}

func roleValidation(fl validator.FieldLevel) bool {
	return Role(fl.Field().String()).IsValid()
}

func curriculumValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, c := range Curricula {
		if val == c {
			return true
		}
	}
	return false
}

func phoneValidation(fl validator.FieldLevel) bool {
	_, err := NormalizePhone(fl.Field().String())
	return err == nil
}

// NormalizePhone parses a phone number (local numbers default to DefaultPhoneRegion) and
// returns it in E.164 form.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func registrationStructValidation(sl validator.StructLevel) {
	ns, ok := sl.Current().Interface().(NewSchool)
	if !ok {
		return
	}
	if tag := passwordPolicyTag(ns.Password, MinPasswordLen, ns.AdminName, ns.Email); tag != "" {
		sl.ReportError(ns.Password, "password", "Password", tag, "")
	}
}

func newAccountStructValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewAccount)
	if !ok {
		return
	}
	if len(na.TempPassword) > MaxPasswordBytes {
		sl.ReportError(na.TempPassword, "temporaryPassword", "TempPassword", pwdMaxLenTag, "")
	}
}

// passwordPolicyTag applies the password policy and returns the tag of the first rule broken:
// - minimum length
// - maximum length in bytes
// - no leading or trailing whitespace
// - not similar to the account's name or email
// - not a common password
func passwordPolicyTag(pwd string, minLen int, attrs ...string) string {
	if len([]rune(pwd)) < minLen {
		return pwdMinLenTag
	}
	if len(pwd) > MaxPasswordBytes {
		return pwdMaxLenTag
	}
	runes := []rune(pwd)
	if unicode.IsSpace(runes[0]) || unicode.IsSpace(runes[len(runes)-1]) {
		return pwdNoSpaceTag
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		attr = strings.ToLower(attr)
		if attr == "" {
			continue
		}
		if i := strings.IndexByte(attr, '@'); i > 0 {
			attr = attr[:i]
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(attr, "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}

	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) && commonPasswords[idx] == lpwd {
		return pwdNoCommonTag
	}
	return ""
}

var policyTexts = map[string]string{
	pwdMaxLenTag:   pwdMaxLenText,
	pwdNoSpaceTag:  pwdNoSpaceText,
	pwdAttrSimTag:  pwdAttrSimText,
	pwdNoCommonTag: pwdCommonText,
}

// CheckPassword applies the password policy with the given minimum length and returns a
// WeakPassword error describing the first rule broken.
func CheckPassword(pwd string, minLen int, attrs ...string) error {
	tag := passwordPolicyTag(pwd, minLen, attrs...)
	switch tag {
	case "":
		return nil
	case pwdMinLenTag:
		return &core.AuthError{
			Code:    core.CodeWeakPassword,
			Message: fmt.Sprintf("password must contain at least %d characters", minLen),
		}
	default:
		return &core.AuthError{Code: core.CodeWeakPassword, Message: policyTexts[tag]}
	}
}
