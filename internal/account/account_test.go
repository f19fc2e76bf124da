package account

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/gen-console/internal/errors"
)

func validForm() Form {
	return Form{
		Account:  "alice",
		Password: "s3cret",
		Name:     "Alice",
		Mobile:   "13800138000",
		Email:    "alice@example.com",
		Enabled:  true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Form)
		wantField string
	}{
		{name: "valid", mutate: func(*Form) {}},
		{name: "optional fields empty", mutate: func(f *Form) { f.Name, f.Mobile = "", "" }},
		{name: "e164 mobile", mutate: func(f *Form) { f.Mobile = "+447911123456" }},
		{name: "account required", mutate: func(f *Form) { f.Account = "" }, wantField: "account"},
		{name: "account too long", mutate: func(f *Form) { f.Account = strings.Repeat("a", 256) }, wantField: "account"},
		{name: "password required", mutate: func(f *Form) { f.Password = "" }, wantField: "password"},
		{name: "password too long", mutate: func(f *Form) { f.Password = strings.Repeat("p", 256) }, wantField: "password"},
		{name: "name too long", mutate: func(f *Form) { f.Name = strings.Repeat("n", 21) }, wantField: "name"},
		{name: "name counts runes", mutate: func(f *Form) { f.Name = strings.Repeat("名", 20) }},
		{name: "mobile malformed", mutate: func(f *Form) { f.Mobile = "12345" }, wantField: "mobile"},
		{name: "mobile too long", mutate: func(f *Form) { f.Mobile = "+1234567890123456789012" }, wantField: "mobile"},
		{name: "email required", mutate: func(f *Form) { f.Email = "" }, wantField: "email"},
		{name: "email malformed", mutate: func(f *Form) { f.Email = "not-an-email" }, wantField: "email"},
		{name: "email too long", mutate: func(f *Form) { f.Email = strings.Repeat("e", 45) + "@x.com" }, wantField: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)

			err := Validate(f)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

			var structErr *errors.Error
			require.ErrorAs(t, err, &structErr)
			assert.Equal(t, tt.wantField, structErr.Field)
		})
	}
}

func TestValidateReportsRemainingFieldsAsSuggestions(t *testing.T) {
	err := Validate(Form{})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "account")
	suggestions := errors.Suggestions(err)
	assert.Contains(t, suggestions, "password is required")
	assert.Contains(t, suggestions, "email is required")
}

func TestFormMasksPassword(t *testing.T) {
	f := validForm()

	for _, out := range []string{f.String(), fmt.Sprintf("%v", f), fmt.Sprintf("%+v", f), fmt.Sprintf("%#v", f)} {
		assert.NotContains(t, out, "s3cret")
		assert.Contains(t, out, maskedPassword)
	}

	f.Password = ""
	assert.NotContains(t, f.String(), maskedPassword)
}

func TestFormFromRecord(t *testing.T) {
	f := FormFromRecord(Record{ID: "42", Account: "bob", Email: "bob@example.com", Enabled: true})

	assert.Equal(t, "42", f.ID)
	assert.Equal(t, "bob", f.Account)
	assert.Empty(t, f.Password)
	assert.True(t, f.Enabled)
}

func TestMobileValidationIsRegistered(t *testing.T) {
	require.NotPanics(t, func() { formValidator() })

	v := formValidator()

	assert.NoError(t, v.Var("13800138000", "mobile"))
	assert.NoError(t, v.Var("+442071838750", "mobile"))
	assert.Error(t, v.Var("12345", "mobile"))
}
