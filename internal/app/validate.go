package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"jetstay/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so errors line up with the request body
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// checkStruct runs the struct tags and converts failures into
// domain.ValidationErrors.
func checkStruct(s any) domain.ValidationErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ValidationErrors{{Field: "request", Message: err.Error()}}
	}
	out := make(domain.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, domain.ValidationError{Field: fieldPath(fe), Message: tagMessage(fe)})
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "is invalid"
	}
}

func validateRoomRequest(req domain.RoomBookingRequest) error {
	errs := checkStruct(req)
	if !req.CheckIn.IsZero() && !req.CheckOut.IsZero() {
		switch d := req.Dates(); {
		case !d.Valid():
			errs = append(errs, domain.ValidationError{Field: "check_out", Message: "must be after check_in"})
		case d.Nights() > domain.MaxStayNights:
			errs = append(errs, domain.ValidationError{Field: "check_out", Message: fmt.Sprintf("stay must be at most %d nights", domain.MaxStayNights)})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateTicketRequest(req domain.TicketBookingRequest) error {
	if errs := checkStruct(req); len(errs) > 0 {
		return errs
	}
	return nil
}

func validateReviewRequest(req domain.ReviewRequest) error {
	if errs := checkStruct(req); len(errs) > 0 {
		return errs
	}
	return nil
}
