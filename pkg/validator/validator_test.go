package validator_test

import (
	"testing"

	"adminpanel/internal/models"
	"adminpanel/pkg/validator"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProduct() models.Product {
	return models.Product{
		Name:        "Mouse",
		Description: "Wireless mouse",
		Price:       decimal.RequireFromString("19.99"),
		Category:    models.CategoryElectronics,
		Stock:       50,
		Image:       "abc.png",
	}
}

func TestValidateProduct(t *testing.T) {
	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)

	assert.NoError(t, v.Validate(validProduct()))

	free := validProduct()
	free.Price = decimal.Zero
	assert.NoError(t, v.Validate(free), "zero price is allowed")
}

func TestValidateProductReportsJSONFieldNames(t *testing.T) {
	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)

	p := validProduct()
	p.Name = ""
	p.Price = decimal.RequireFromString("-1")
	p.Stock = -5
	p.Category = "groceries"

	err = v.Validate(p)
	require.Error(t, err)
	assert.True(t, validator.IsValidationError(err))

	fields := validator.FieldErrors(err)
	assert.Equal(t, "field is required", fields["name"])
	assert.Equal(t, "must be greater than or equal to 0", fields["price"])
	assert.Equal(t, "must be greater than or equal to 0", fields["stock"])
	assert.Contains(t, fields["category"], "groceries")
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, validator.FieldErrors(assert.AnError))
}

func TestValidateExceptSkipsImage(t *testing.T) {
	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)

	p := validProduct()
	p.Image = ""

	assert.Error(t, v.Validate(p))
	assert.NoError(t, v.ValidateExcept(p, "Image"))

	p.Stock = -1
	err = v.ValidateExcept(p, "Image")
	require.Error(t, err)
	assert.Contains(t, validator.FieldErrors(err), "stock")
}

func TestValidateProductRejectsBlankText(t *testing.T) {
	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)

	p := validProduct()
	p.Name = "   "
	p.Description = "\t\n"

	fields := validator.FieldErrors(v.Validate(p))
	assert.Equal(t, "field is required", fields["name"])
	assert.Equal(t, "field is required", fields["description"])
}

func TestValidateProductPrice(t *testing.T) {
	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		price   string
		message string
	}{
		{"two places", "19.99", ""},
		{"trailing zeros", "19.900", ""},
		{"largest", "9999999999.99", ""},
		{"too many places", "19.999", "must have at most 2 decimal places"},
		{"too large", "10000000000", "must be less than 10000000000"},
		{"negative", "-0.01", "must be greater than or equal to 0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validProduct()
			p.Price = decimal.RequireFromString(tc.price)

			err := v.Validate(p)
			if tc.message == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.message, validator.FieldErrors(err)["price"])
		})
	}
}
