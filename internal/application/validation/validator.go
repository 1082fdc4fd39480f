// Package validation checks raw application payloads against the per-type
// form rules and converts them into typed submissions.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockPattern   = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	indexSuffix    = regexp.MustCompile(`\.\d+`)
)

var dateTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// form is implemented by every per-type payload shape
type form interface {
	children() []child
	check(loc *time.Location) ValidationErrors
	submission(loc *time.Location) *entity.Submission
}

// child is a nested collection validated element by element
type child struct {
	name  string
	items []any
}

// Validator validates raw payloads. Dates without a zone are read in its location.
type Validator struct {
	validate *validator.Validate
	location *time.Location
}

// New creates a validator. A nil loc means UTC.
func New(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, ok := parseDate(fl.Field().String(), loc)
		return ok
	})
	mustRegister(v, "isodatetime", func(fl validator.FieldLevel) bool {
		_, ok := parseDateTime(fl.Field().String(), loc)
		return ok
	})
	mustRegister(v, "hhmm", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v, location: loc}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Validate decodes raw as a payload of type t and checks every rule.
// On failure the error is ValidationErrors listing all problems found.
func (v *Validator) Validate(t entity.Type, raw []byte) (*entity.Submission, error) {
	var f form
	switch t {
	case entity.TypeGroupVisit:
		f = &groupVisitForm{}
	case entity.TypePortAccess:
		f = &portAccessForm{}
	case entity.TypeGoodsInOut:
		f = &goodsInOutForm{}
	case entity.TypeVisitR3:
		f = &visitR3Form{}
	default:
		return nil, ValidationErrors{{Field: "type", Message: "지원하지 않는 신청 유형입니다"}}
	}

	typeErrs, ok := decode(raw, f)
	if !ok {
		return nil, typeErrs
	}
	trimStrings(reflect.ValueOf(f))

	ruleErrs := v.structErrors("", f)
	for _, c := range f.children() {
		for i, item := range c.items {
			ruleErrs = append(ruleErrs, v.structErrors(fmt.Sprintf("%s.%d", c.name, i), item)...)
		}
	}
	ruleErrs = append(ruleErrs, f.check(v.location)...)

	// a mistyped value is reported once, as a type error, and nothing
	// beneath it is reported again
	errs := typeErrs
	for _, fe := range ruleErrs {
		if !typeErrs.covers(fe.Field) {
			errs = append(errs, fe)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	sub := f.submission(v.location)
	if err := sub.Validate(); err != nil {
		return nil, ValidationErrors{{Field: "type", Message: err.Error()}}
	}
	return sub, nil
}

func (v *Validator) structErrors(prefix string, s any) ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{{Field: "payload", Message: err.Error()}}
	}

	scope := indexSuffix.ReplaceAllString(prefix, "")
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Field()
		if prefix != "" {
			path = prefix + "." + path
		}
		out = append(out, FieldError{Field: path, Message: message(scope, fe.Field(), fe.Tag())})
	}
	return out
}

// decode fills dst from raw. A body that is not a single JSON object is
// reported as one "payload" error with ok=false. Otherwise every value of
// the wrong JSON type is reported at its indexed path and dst is filled
// with whatever did decode, so the struct rules can still run.
func decode(raw []byte, dst any) (ValidationErrors, bool) {
	unreadable := ValidationErrors{{Field: "payload", Message: "요청 본문을 해석할 수 없습니다"}}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return unreadable, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return unreadable, false
	}
	if _, ok := tree.(map[string]any); !ok {
		return unreadable, false
	}

	errs := typeErrors("", tree, reflect.TypeOf(dst).Elem())

	// encoding/json keeps decoding past type mismatches
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return unreadable, false
		}
	}
	return errs, true
}

// typeErrors walks a generic JSON value against the form type t
func typeErrors(path string, value any, t reflect.Type) ValidationErrors {
	if value == nil {
		return nil
	}
	mismatch := ValidationErrors{{Field: path, Message: "입력 형식이 올바르지 않습니다"}}

	switch t.Kind() {
	case reflect.Struct:
		obj, ok := value.(map[string]any)
		if !ok {
			return mismatch
		}
		var out ValidationErrors
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				out = append(out, typeErrors(path, value, f.Type)...)
				continue
			}
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if !f.IsExported() || name == "" || name == "-" {
				continue
			}
			if v, ok := obj[name]; ok {
				out = append(out, typeErrors(joinPath(path, name), v, f.Type)...)
			}
		}
		return out
	case reflect.Slice:
		arr, ok := value.([]any)
		if !ok {
			return mismatch
		}
		var out ValidationErrors
		for i, v := range arr {
			out = append(out, typeErrors(fmt.Sprintf("%s.%d", path, i), v, t.Elem())...)
		}
		return out
	case reflect.String:
		if _, ok := value.(string); !ok {
			return mismatch
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := value.(json.Number)
		if !ok {
			return mismatch
		}
		if _, err := n.Int64(); err != nil {
			return mismatch
		}
	}
	return nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// trimStrings trims every string reachable through structs and slices
func trimStrings(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			trimStrings(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Type().Field(i); f.IsExported() || f.Anonymous {
				trimStrings(v.Field(i))
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			trimStrings(v.Index(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(strings.TrimSpace(v.String()))
		}
	}
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	if !isoDatePattern.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseDateTime(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func pointers[T any](s []T) []any {
	out := make([]any, len(s))
	for i := range s {
		out[i] = &s[i]
	}
	return out
}
