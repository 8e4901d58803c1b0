package core

import (
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	fr_translations "github.com/go-playground/validator/v10/translations/fr"
)

// Texts maps a locale to a validation message.
type Texts map[string]string

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)
	alphaNumUnderTexts = Texts{
		LocaleEN: "only alphanumeric characters and underscores are allowed",
		LocaleFR: "seuls les caractères alphanumériques et les tirets bas sont autorisés",
	}

	isoDateTag   = "isodate"
	isoDateTexts = Texts{
		LocaleEN: "must be a valid date (YYYY-MM-DD)",
		LocaleFR: "doit être une date valide (AAAA-MM-JJ)",
	}

	clockTag   = "clock"
	clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	clockTexts = Texts{
		LocaleEN: "must be a valid time (HH:MM)",
		LocaleFR: "doit être une heure valide (HH:MM)",
	}

	quarterTag   = "quarter"
	quarterTexts = Texts{
		LocaleEN: "must be a multiple of 0.25",
		LocaleFR: "doit être un multiple de 0,25",
	}

	centsTag   = "cents"
	centsTexts = Texts{
		LocaleEN: "must have at most 2 decimal places",
		LocaleFR: "ne doit pas avoir plus de 2 décimales",
	}

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredTexts   = Texts{
		LocaleEN: "this field is required",
		LocaleFR: "ce champ est obligatoire",
	}
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, uni *ut.UniversalTranslator) {
	if trans, found := uni.GetTranslator(LocaleEN); found {
		_ = en_translations.RegisterDefaultTranslations(validate, trans)
	}
	if trans, found := uni.GetTranslator(LocaleFR); found {
		_ = fr_translations.RegisterDefaultTranslations(validate, trans)
	}

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterLocalizedTranslation(validate, uni, alphaNumUnderTag, alphaNumUnderTexts)

	_ = validate.RegisterValidation(isoDateTag, isoDateValidation)
	RegisterLocalizedTranslation(validate, uni, isoDateTag, isoDateTexts)

	_ = validate.RegisterValidation(clockTag, clockValidation)
	RegisterLocalizedTranslation(validate, uni, clockTag, clockTexts)

	_ = validate.RegisterValidation(quarterTag, quarterValidation)
	RegisterLocalizedTranslation(validate, uni, quarterTag, quarterTexts)

	_ = validate.RegisterValidation(centsTag, centsValidation)
	RegisterLocalizedTranslation(validate, uni, centsTag, centsTexts)

	RegisterLocalizedTranslation(validate, uni, requiredTag, requiredTexts, true)
	RegisterLocalizedTranslation(validate, uni, requiredWithTag, requiredTexts, true)
}

// NewValidate returns a validator with every core validation registered.
func NewValidate(uni *ut.UniversalTranslator) *validator.Validate {
	validate := validator.New()
	InitValidators(validate, uni)
	return validate
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// RegisterLocalizedTranslation registers texts for every locale uni knows about.
func RegisterLocalizedTranslation(validate *validator.Validate, uni *ut.UniversalTranslator, tag string, texts Texts, override ...bool) {
	for locale, text := range texts {
		if trans, found := uni.GetTranslator(locale); found {
			RegisterCustomTranslation(validate, trans, tag, text, override...)
		}
	}
}

// TranslateErrors maps validator errors to {field: message}.
func TranslateErrors(errs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(errs))
	for _, vErr := range errs {
		fldErrs[vErr.Field()] = vErr.Translate(translator)
	}
	return fldErrs
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// isoDateValidation accepts YYYY-MM-DD calendar dates.
func isoDateValidation(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}

// clockValidation accepts 24h HH:MM times.
func clockValidation(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(fl.Field().String())
}

func quarterValidation(fl validator.FieldLevel) bool {
	return IsQuarterStep(floatField(fl))
}

func centsValidation(fl validator.FieldLevel) bool {
	v := floatField(fl)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return math.Abs(v*100-math.Round(v*100)) < 1e-6
}

func floatField(fl validator.FieldLevel) float64 {
	fld := fl.Field()
	switch fld.Kind() {
	case reflect.Float32, reflect.Float64:
		return fld.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(fld.Int())
	}
	return math.NaN()
}

// IsQuarterStep reports whether v is a finite multiple of 0.25.
func IsQuarterStep(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v*4 == math.Trunc(v*4)
}
