package account

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kyleking/gen-console/internal/errors"
)

const maskedPassword = "******"

// mobilePattern accepts mainland numbers (13x-19x, 11 digits) or E.164
var mobilePattern = regexp.MustCompile(`^(1[3-9]\d{9}|\+[1-9]\d{6,14})$`)

// Record is an account as the backend returns it. It never carries a password.
type Record struct {
	ID        string    `json:"id"`
	Account   string    `json:"account"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	Email     string    `json:"email"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Page is one page of GET /user-center
type Page struct {
	Items  []Record `json:"items"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// Form is the editable account. ID is hidden and only set in edit mode.
type Form struct {
	ID       string `json:"id,omitempty"`
	Account  string `json:"account"  validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=255"`
	Name     string `json:"name"     validate:"max=20"`
	Mobile   string `json:"mobile"   validate:"omitempty,max=20,mobile"`
	Email    string `json:"email"    validate:"required,max=50,email"`
	Enabled  bool   `json:"enabled"`
}

// String masks the password so forms can be logged safely
func (f Form) String() string {
	password := ""
	if f.Password != "" {
		password = maskedPassword
	}

	return fmt.Sprintf("{id:%s account:%s password:%s name:%s mobile:%s email:%s enabled:%t}",
		f.ID, f.Account, password, f.Name, f.Mobile, f.Email, f.Enabled)
}

// GoString keeps %#v from printing the password either
func (f Form) GoString() string {
	return "account.Form" + f.String()
}

// FormFromRecord pre-fills a form for editing; the password is left blank
func FormFromRecord(r Record) Form {
	return Form{
		ID:      r.ID,
		Account: r.Account,
		Name:    r.Name,
		Mobile:  r.Mobile,
		Email:   r.Email,
		Enabled: r.Enabled,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}

			return name
		})

		err := v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
			return mobilePattern.MatchString(fl.Field().String())
		})
		if err != nil {
			panic(fmt.Sprintf("account: register mobile validation: %v", err))
		}

		validate = v
	})

	return validate
}

// Validate checks every field constraint and reports the first failing
// field; the others are listed as suggestions.
func Validate(f Form) error {
	err := formValidator().Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !asValidationErrors(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, errors.ErrTypeValidation, "invalid account form")
	}

	first := fieldErrs[0]
	out := errors.NewValidationError(first.Field(), describe(first))

	for _, fe := range fieldErrs[1:] {
		out.WithSuggestion(fmt.Sprintf("%s %s", fe.Field(), describe(fe)))
	}

	return out
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}

	return ok
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "mobile":
		return "must be a valid phone number"
	default:
		return fmt.Sprintf("failed the %q check", fe.Tag())
	}
}
