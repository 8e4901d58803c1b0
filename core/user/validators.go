package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/ecolehub/backend/core"
)

var (
	allRolesTag   = "allroles"
	allRolesTexts = core.Texts{
		core.LocaleEN: "invalid roles",
		core.LocaleFR: "rôles invalides",
	}

	usernameOrEmailTag   = "username_or_email"
	usernameOrEmailTexts = core.Texts{
		core.LocaleEN: "one of username or email is required",
		core.LocaleFR: "le nom d'utilisateur ou l'e-mail est obligatoire",
	}

	// password policy
	pwdMinLen      = 8
	pwdMinLenTag   = "pwdminlen"
	pwdMinLenTexts = core.Texts{
		core.LocaleEN: fmt.Sprintf("password must contain at least %d characters", pwdMinLen),
		core.LocaleFR: fmt.Sprintf("le mot de passe doit contenir au moins %d caractères", pwdMinLen),
	}

	pwdNoSpaceTag   = "pwdnospace"
	pwdNoSpaceTexts = core.Texts{
		core.LocaleEN: "password must not contain whitespace",
		core.LocaleFR: "le mot de passe ne doit pas contenir d'espace",
	}

	pwdNotAllNumTag   = "pwdnotallnum"
	pwdNotAllNumTexts = core.Texts{
		core.LocaleEN: "password cannot be entirely numeric",
		core.LocaleFR: "le mot de passe ne peut pas être entièrement numérique",
	}

	pwdComplexityTag   = "pwdcplx"
	pwdComplexityTexts = core.Texts{
		core.LocaleEN: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		core.LocaleFR: "le mot de passe doit contenir au moins 1 majuscule, 1 minuscule, 1 chiffre et 1 caractère spécial",
	}
	specialRegex = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim       = .7
	pwdAttrSimTag   = "pwdtoosim"
	pwdAttrSimTexts = core.Texts{
		core.LocaleEN: "password cannot be similar to user attributes",
		core.LocaleFR: "le mot de passe ne peut pas ressembler aux informations de l'utilisateur",
	}

	pwdNoCommonTag   = "pwdnocommon"
	pwdNoCommonTexts = core.Texts{
		core.LocaleEN: "password is too common",
		core.LocaleFR: "le mot de passe est trop courant",
	}

	commonPasswords   []string
	commonPasswordsMu sync.RWMutex
)

// InitValidators registers the user validations and their translations.
func InitValidators(validate *validator.Validate, uni *ut.UniversalTranslator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterLocalizedTranslation(validate, uni, allRolesTag, allRolesTexts)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{}, ResetUserPassword{})
	core.RegisterLocalizedTranslation(validate, uni, usernameOrEmailTag, usernameOrEmailTexts)
	core.RegisterLocalizedTranslation(validate, uni, pwdMinLenTag, pwdMinLenTexts)
	core.RegisterLocalizedTranslation(validate, uni, pwdNoSpaceTag, pwdNoSpaceTexts)
	core.RegisterLocalizedTranslation(validate, uni, pwdNotAllNumTag, pwdNotAllNumTexts)
	core.RegisterLocalizedTranslation(validate, uni, pwdComplexityTag, pwdComplexityTexts)
	core.RegisterLocalizedTranslation(validate, uni, pwdAttrSimTag, pwdAttrSimTexts)
	core.RegisterLocalizedTranslation(validate, uni, pwdNoCommonTag, pwdNoCommonTexts)
}

// LoadCommonPasswords reads the gzipped common passwords list shipped in fsys.
func LoadCommonPasswords(fsys fs.FS, logger core.Logger) {
	file, err := fsys.Open("assets/common-passwords.txt.gz")
	if err != nil {
		logger.Error(fmt.Sprintf("opening common passwords: %v", err), err)
		return
	}
	defer func() { _ = file.Close() }()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		logger.Error(fmt.Sprintf("reading common passwords: %v", err), err)
		return
	}
	pwds := make([]string, 0, 128)
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, pwd)
		}
	}
	sort.Strings(pwds)

	commonPasswordsMu.Lock()
	commonPasswords = pwds
	commonPasswordsMu.Unlock()
}

func isCommonPassword(pwd string) bool {
	commonPasswordsMu.RLock()
	defer commonPasswordsMu.RUnlock()
	if idx := sort.SearchStrings(commonPasswords, pwd); idx < len(commonPasswords) {
		return commonPasswords[idx] == pwd
	}
	return false
}

// Custom Validators

// allRolesValidation checks that provided user roles are all in AllRoles
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if !core.StringInSlice(role, AllRoles) {
			return false
		}
	}
	return true
}

// userStructValidation does struct level validation on NewUser, UpdateUser and ResetUserPassword structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validateUsernameAndEmail(usr, sl)
		validatePassword(usr.Password, usr.Name, usr.Username, usr.Email, sl)
	case UpdateUser:
		if usr.Password != "" {
			validatePassword(usr.Password, usr.Name, usr.Username, usr.Email, sl)
		}
	case ResetUserPassword:
		validatePassword(usr.Password, "", "", "", sl)
	}
}

// validateUsernameAndEmail checks that one of Username or Email is provided
func validateUsernameAndEmail(nu NewUser, sl validator.StructLevel) {
	if len(nu.Username) == 0 && len(nu.Email) == 0 {
		sl.ReportError(nu.Username, "username", "Username", usernameOrEmailTag, "")
		sl.ReportError(nu.Email, "email", "Email", usernameOrEmailTag, "")
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no user attrs similarity
// - no common password
func validatePassword(pwd, name, uname, email string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	pwdRunes := []rune(pwd)
	pwdLen := len(pwdRunes)
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range pwdRunes {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
		return
	}

	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		reportErr(pwdComplexityTag)
		return
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(pass), ""), strings.Split(strings.ToLower(usrAttr), "")).QuickRatio()
	}
	if getRatio(pwd, name) >= pwdMaxSim ||
		getRatio(pwd, uname) >= pwdMaxSim ||
		getRatio(pwd, email) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
		return
	}

	if isCommonPassword(strings.ToLower(pwd)) {
		reportErr(pwdNoCommonTag)
	}
}
