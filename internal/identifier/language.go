package identifier

import (
	"fmt"
	"slices"
	"strings"
)

type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageGo         Language = "go"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguageCSharp     Language = "csharp"
	LanguagePHP        Language = "php"
	LanguageRuby       Language = "ruby"
	LanguageSwift      Language = "swift"
	LanguageKotlin     Language = "kotlin"
	// Returned when the file is not in a language we generate tests for
	LanguageInvalid Language = ""
)

var Languages = []Language{
	LanguageJavaScript,
	LanguageTypeScript,
	LanguagePython,
	LanguageJava,
	LanguageGo,
	LanguageC,
	LanguageCPP,
	LanguageCSharp,
	LanguagePHP,
	LanguageRuby,
	LanguageSwift,
	LanguageKotlin,
}

func toLanguage(v string) (Language, error) {
	vLanguage := Language(strings.ToLower(v))
	if slices.Contains(Languages, vLanguage) {
		return vLanguage, nil
	}

	return LanguageInvalid, fmt.Errorf("must be one of %v", Languages)
}

func (l Language) String() string {
	return string(l)
}

// Allow use as a cobra flag

func (l *Language) Set(v string) error {
	vLanguage, err := toLanguage(v)
	if err != nil {
		return err
	}

	*l = vLanguage
	return nil
}

func (*Language) Type() string {
	return "Language"
}

// go-enry to useful language mappings
var languageMapping = map[string]Language{
	"JavaScript": LanguageJavaScript,
	"JSX":        LanguageJavaScript,
	"TypeScript": LanguageTypeScript,
	"TSX":        LanguageTypeScript,
	"Python":     LanguagePython,
	"Java":       LanguageJava,
	"Go":         LanguageGo,
	"C":          LanguageC,
	"C++":        LanguageCPP,
	"C#":         LanguageCSharp,
	"PHP":        LanguagePHP,
	"Hack":       LanguagePHP,
	"Ruby":       LanguageRuby,
	"Swift":      LanguageSwift,
	"Kotlin":     LanguageKotlin,
}
