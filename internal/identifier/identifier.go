package identifier

import (
	"path"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// Source extensions that can be snapshotted into a job
var supportedExtensions = map[string]Language{
	".js":    LanguageJavaScript,
	".jsx":   LanguageJavaScript,
	".ts":    LanguageTypeScript,
	".tsx":   LanguageTypeScript,
	".py":    LanguagePython,
	".java":  LanguageJava,
	".go":    LanguageGo,
	".c":     LanguageC,
	".cpp":   LanguageCPP,
	".cs":    LanguageCSharp,
	".php":   LanguagePHP,
	".rb":    LanguageRuby,
	".swift": LanguageSwift,
	".kt":    LanguageKotlin,
}

// IsSupported reports whether filename has an extension tests can be generated for
func IsSupported(filename string) bool {
	_, ok := supportedExtensions[strings.ToLower(path.Ext(filename))]
	return ok
}

// Heuristically determine the language of a file given its metadata and content
func GetLanguage(filename string, content []byte) Language {
	if l, ok := supportedExtensions[strings.ToLower(path.Ext(filename))]; ok {
		return l
	}
	if strings.HasSuffix(filename, ".h") || strings.HasSuffix(filename, ".c.in") ||
		strings.HasSuffix(filename, ".h.in") {
		return LanguageC
	}

	candidates := enry.GetLanguages(filename, content)
	for _, candidate := range candidates {
		mapping := languageMapping[candidate]
		if mapping != LanguageInvalid {
			return mapping
		}
	}

	return LanguageInvalid
}
