package contact

import (
	"testing"

	"github.com/contactflow/importer/internal/mapping"
)

func resolve(t *testing.T, m mapping.Mapping, headers []string) *mapping.Resolved {
	t.Helper()
	return m.Resolve(headers)
}

func TestValidateTrimsAndDefaults(t *testing.T) {
	r := resolve(t, mapping.Mapping{
		mapping.FieldClientNumber: "ClientID",
		mapping.FieldLastName:     "Last",
		mapping.FieldPhone:        "Phone",
	}, []string{"ClientID", "Last", "Phone"})

	v := NewValidator(r, Policy{}, "imported", "active")

	c, _, ok := v.Validate([]string{"  C1  ", " Doe ", " 0102030405 "})
	if !ok {
		t.Fatal("expected valid row")
	}
	if c.ClientNumber != "C1" || c.LastName != "Doe" || c.Phone != "0102030405" {
		t.Fatalf("values not trimmed: %+v", c)
	}
	if c.Profile != "imported" || c.Status != "active" {
		t.Fatalf("defaults not applied: %+v", c)
	}
}

func TestValidateMissingClientNumber(t *testing.T) {
	r := resolve(t, mapping.Mapping{
		mapping.FieldClientNumber: "ClientID",
	}, []string{"ClientID"})

	v := NewValidator(r, Policy{}, "", "")

	_, reason, ok := v.Validate([]string{"   "})
	if ok {
		t.Fatal("expected rejection")
	}
	if reason != ReasonMissingClientNumber {
		t.Fatalf("expected MISSING_CLIENT_NUMBER, got %s", reason)
	}
}

func TestValidateDuplicatePhoneAllowedByDefault(t *testing.T) {
	r := resolve(t, mapping.Mapping{
		mapping.FieldClientNumber: "ClientID",
		mapping.FieldPhone:        "Phone",
	}, []string{"ClientID", "Phone"})

	v := NewValidator(r, Policy{}, "", "")

	if _, _, ok := v.Validate([]string{"C1", "0102030405"}); !ok {
		t.Fatal("first row should be valid")
	}
	if _, _, ok := v.Validate([]string{"C2", "0102030405"}); !ok {
		t.Fatal("duplicate phone must pass under default policy")
	}
}

func TestValidatePolicyChecks(t *testing.T) {
	headers := []string{"ClientID", "Phone", "Email"}
	m := mapping.Mapping{
		mapping.FieldClientNumber: "ClientID",
		mapping.FieldPhone:        "Phone",
		mapping.FieldEmail:        "Email",
	}

	t.Run("duplicate phone", func(t *testing.T) {
		v := NewValidator(resolve(t, m, headers), Policy{CheckDuplicatePhone: true}, "", "")
		if _, _, ok := v.Validate([]string{"C1", "0102030405", ""}); !ok {
			t.Fatal("first occurrence should pass")
		}
		_, reason, ok := v.Validate([]string{"C2", "0102030405", ""})
		if ok || reason != ReasonDuplicatePhone {
			t.Fatalf("expected DUPLICATE_PHONE, got ok=%v reason=%s", ok, reason)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		v := NewValidator(resolve(t, m, headers), Policy{CheckDuplicateEmail: true}, "", "")
		v.Validate([]string{"C1", "", "a@example.com"})
		_, reason, ok := v.Validate([]string{"C2", "", "a@example.com"})
		if ok || reason != ReasonDuplicateEmail {
			t.Fatalf("expected DUPLICATE_EMAIL, got ok=%v reason=%s", ok, reason)
		}
	})

	t.Run("invalid email format", func(t *testing.T) {
		v := NewValidator(resolve(t, m, headers), Policy{ValidateEmailFormat: true}, "", "")
		_, reason, ok := v.Validate([]string{"C1", "", "not-an-email"})
		if ok || reason != ReasonInvalidEmail {
			t.Fatalf("expected INVALID_EMAIL, got ok=%v reason=%s", ok, reason)
		}
	})

	t.Run("invalid phone format", func(t *testing.T) {
		v := NewValidator(resolve(t, m, headers), Policy{ValidatePhoneFormat: true}, "", "")
		_, reason, ok := v.Validate([]string{"C1", "abc", ""})
		if ok || reason != ReasonInvalidPhone {
			t.Fatalf("expected INVALID_PHONE, got ok=%v reason=%s", ok, reason)
		}
	})

	t.Run("strict mode requires phone value", func(t *testing.T) {
		v := NewValidator(resolve(t, m, headers), Policy{StrictMode: true}, "", "")
		_, reason, ok := v.Validate([]string{"C1", "", ""})
		if ok || reason != ReasonInvalidPhone {
			t.Fatalf("expected rejection for missing phone, got ok=%v reason=%s", ok, reason)
		}
	})
}

func TestValidateLeadingZerosPreserved(t *testing.T) {
	r := resolve(t, mapping.Mapping{
		mapping.FieldClientNumber: "ClientID",
		mapping.FieldPhone:        "Phone",
	}, []string{"ClientID", "Phone"})

	v := NewValidator(r, Policy{}, "", "")
	c, _, ok := v.Validate([]string{"007", "0102030405"})
	if !ok {
		t.Fatal("expected valid row")
	}
	if c.ClientNumber != "007" || c.Phone != "0102030405" {
		t.Fatalf("leading zeros lost: %+v", c)
	}
}
