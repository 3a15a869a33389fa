package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/vigilsat/vigil/core"
	appfs "github.com/vigilsat/vigil/fs"
)

const commonPasswordsAsset = "assets/common-passwords.txt.gz"

var (
	roleTag  = "role"
	roleText = "invalid role"

	// password policy
	pwdMinLen     = 8
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceText    = "password must not contain whitespace"
	pwdNotAllNumText  = "password cannot be entirely numeric"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonText = "password is too common"
	commonPasswords []string
	commonPwdOnce   sync.Once
)

// RegisterValidators registers the user validation tags.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}

func roleValidation(fl validator.FieldLevel) bool {
	return IsValidRole(fl.Field().String())
}

func loadCommonPasswords() {
	f, err := appfs.FS.Open(commonPasswordsAsset)
	if err != nil {
		return
	}
	defer f.Close()

	gzRdr, err := gzip.NewReader(f)
	if err != nil {
		return
	}
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			commonPasswords = append(commonPasswords, strings.ToLower(pwd))
		}
	}
	sort.Strings(commonPasswords)
}

func isCommonPassword(pwd string) bool {
	commonPwdOnce.Do(loadCommonPasswords)
	lpwd := strings.ToLower(pwd)
	idx := sort.SearchStrings(commonPasswords, lpwd)
	return idx < len(commonPasswords) && commonPasswords[idx] == lpwd
}

// ValidatePassword applies the password policy to pwd and reports violations on field:
//   - minLen: 8
//   - no whitespace
//   - no all numeric
//   - complexity: 1 upper, 1 lower, 1 digit, 1 special
//   - no user attrs similarity
//   - no common password
func ValidatePassword(field, pwd string, attrs ...string) error {
	fail := func(text string) error {
		return core.NewValidationError(errors.New(text), core.FieldError{Field: field, Error: text})
	}

	var (
		digitCount         int
		hasUpper, hasLower bool
	)

	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		return fail(pwdMinLenText)
	}
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return fail(pwdNoSpaceText)
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if unicode.IsUpper(char) {
			hasUpper = true
		}
		if unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == pwdLen {
		return fail(pwdNotAllNumText)
	}

	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		return fail(pwdComplexityText)
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(pass), ""), strings.Split(strings.ToLower(usrAttr), "")).QuickRatio()
	}
	for _, attr := range attrs {
		if getRatio(pwd, attr) >= pwdMaxSim {
			return fail(pwdAttrSimText)
		}
	}

	if isCommonPassword(pwd) {
		return fail(pwdNoCommonText)
	}
	return nil
}
