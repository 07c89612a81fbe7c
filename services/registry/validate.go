package registry

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Validation is pure and synchronous: every rule runs against the raw input
// and all violations are returned together, one FieldError per field.

const dateLayout = "2006-01-02"

type violations struct {
	fields []FieldError
}

func (v *violations) add(field, message string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: message})
}

func (v *violations) requireString(field, value, label string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		v.add(field, fmt.Sprintf("%s is required", label))
	}
	return trimmed
}

func (v *violations) requireDate(field, value, label string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		v.add(field, fmt.Sprintf("%s is required", label))
		return trimmed
	}
	if _, err := time.Parse(dateLayout, trimmed); err != nil {
		v.add(field, fmt.Sprintf("%s must be a valid date (YYYY-MM-DD)", label))
	}
	return trimmed
}

func (v *violations) requireEnum(field, value, label string, allowed ...string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		v.add(field, fmt.Sprintf("%s is required", label))
		return trimmed
	}
	for _, a := range allowed {
		if trimmed == a {
			return trimmed
		}
	}
	v.add(field, fmt.Sprintf("%s must be one of %s", label, strings.Join(allowed, ", ")))
	return trimmed
}

func (v *violations) err() *ValidationError {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// ValidateAsset checks an asset create payload. The returned error is nil when
// the input satisfies the schema.
func ValidateAsset(in AssetInput) *ValidationError {
	var v violations
	v.requireString("name", in.Name, "Name")
	v.requireString("category", in.Category, "Category")
	v.requireString("location", in.Location, "Location")
	v.requireDate("purchaseDate", in.PurchaseDate, "Purchase date")

	if strings.TrimSpace(in.PurchasePrice.String()) == "" {
		v.add("purchasePrice", "Purchase price is required")
	} else if price, err := in.PurchasePrice.Float64(); err != nil {
		v.add("purchasePrice", "Purchase price must be a number")
	} else if price < 0 {
		v.add("purchasePrice", "Purchase price must not be negative")
	}

	return v.err()
}

// ValidateLocation checks a location create payload.
func ValidateLocation(in LocationInput) *ValidationError {
	var v violations
	v.requireString("name", in.Name, "Name")
	v.requireEnum("type", in.Type, "Type",
		string(LocationTypeBuilding), string(LocationTypeFloor), string(LocationTypeRoom))
	return v.err()
}

// ValidateMutation checks a mutation create payload, including the cross-field
// rule that the source and destination locations differ. That violation is
// attached to toLocation.
func ValidateMutation(in MutationInput) *ValidationError {
	var v violations
	v.requireString("assetId", in.AssetID, "Asset")
	from := v.requireString("fromLocation", in.FromLocation, "From location")
	to := v.requireString("toLocation", in.ToLocation, "To location")
	v.requireDate("date", in.Date, "Date")
	v.requireString("requester", in.Requester, "Requester")

	if from != "" && to != "" && from == to {
		v.add("toLocation", "From location and to location must not be the same")
	}

	return v.err()
}

// ValidateUser checks a user create payload.
func ValidateUser(in UserInput) *ValidationError {
	var v violations
	v.requireString("name", in.Name, "Name")
	email := v.requireString("email", in.Email, "Email")
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			v.add("email", "Email must be a valid address")
		}
	}
	v.requireString("password", in.Password, "Password")
	// bcrypt rejects inputs past 72 bytes; catch that here so it surfaces as a
	// field violation instead of a hashing failure.
	if len(in.Password) > 72 {
		v.add("password", "Password must be at most 72 bytes")
	}
	v.requireEnum("role", in.Role, "Role",
		string(UserRoleAdmin), string(UserRoleManager), string(UserRoleStaff), string(UserRoleViewer))
	return v.err()
}
