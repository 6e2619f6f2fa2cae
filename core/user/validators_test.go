package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielortegac/qlase/core"
)

func newValidator() (*validator.Validate, func(err error) map[string]string) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	translate := func(err error) map[string]string {
		fields := make(map[string]string)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Translate(translator)
			}
		}
		return fields
	}
	return validate, translate
}

func TestNewUser_Validate_password(t *testing.T) {
	validate, translate := newValidator()

	tests := []struct {
		name    string
		pwd     string
		wantErr string
	}{
		{name: "too short", pwd: "Ab1!", wantErr: pwdMinLenText},
		{name: "whitespace", pwd: "Abcd 1234!", wantErr: pwdNoSpaceText},
		{name: "numeric", pwd: "1234567890", wantErr: pwdNotAllNumText},
		{name: "no special", pwd: "Abcdefgh1", wantErr: pwdComplexityText},
		{name: "no upper", pwd: "abcdefg1!", wantErr: pwdComplexityText},
		{name: "similar to email", pwd: "ada.Lovelace1@example.com", wantErr: pwdAttrSimText},
		{name: "ok", pwd: "Tr0ub4dor&3x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{
				Name:            "Someone",
				Email:           "ada.lovelace1@example.com",
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := nu.Validate(validate)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, translate(err)["password"])
		})
	}
}

func TestNewUser_Validate_fields(t *testing.T) {
	validate, translate := newValidator()

	nu := NewUser{
		Name:            "  ",
		Email:           "not-an-email",
		Password:        "Tr0ub4dor&3x",
		PasswordConfirm: "something else",
		Roles:           []string{"wizard:"},
	}
	fields := translate(nu.Validate(validate))
	assert.Equal(t, "this field is required", fields["name"])
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password_confirm")
	assert.Equal(t, allRolesText, fields["roles"])
}

func TestUpdateUser_Validate(t *testing.T) {
	validate, translate := newValidator()
	orig := User{Name: "Ada", Email: "ada@example.com"}

	uu := UpdateUser{Status: "deleted"}
	fields := translate(uu.Validate(orig, validate))
	assert.Contains(t, fields, "status")
	assert.Equal(t, "Ada", uu.Name, "blank fields fall back to the current values")
	assert.Equal(t, "ada@example.com", uu.Email)

	uu = UpdateUser{Password: "Tr0ub4dor&3x"}
	fields = translate(uu.Validate(orig, validate))
	assert.Equal(t, "this field is required", fields["password_confirm"])
}

func TestSetPassword_Validate(t *testing.T) {
	validate, translate := newValidator()
	usr := User{Name: "Grace Hopper", Email: "grace@example.com"}

	assert.NoError(t, NewSetPassword(usr, "Tr0ub4dor&3x", "Tr0ub4dor&3x").Validate(validate))

	fields := translate(NewSetPassword(usr, "Grace.Hopper1", "Grace.Hopper1").Validate(validate))
	assert.Equal(t, pwdAttrSimText, fields["password"])
}
