package generation

import (
	"path"
	"slices"
	"strings"

	"github.com/testsmith/testsmith/internal/identifier"
)

type Framework string

const (
	FrameworkJest       Framework = "jest"
	FrameworkVitest     Framework = "vitest"
	FrameworkMocha      Framework = "mocha"
	FrameworkPytest     Framework = "pytest"
	FrameworkJUnit      Framework = "junit"
	FrameworkGoTesting  Framework = "testing"
	FrameworkXUnit      Framework = "xunit"
	FrameworkNUnit      Framework = "nunit"
	FrameworkRSpec      Framework = "rspec"
	FrameworkPHPUnit    Framework = "phpunit"
	FrameworkGoogleTest Framework = "googletest"
	FrameworkXCTest     Framework = "xctest"
)

// Used for languages without an entry in defaultFrameworks
const FallbackFramework = FrameworkJest

var defaultFrameworks = map[identifier.Language]Framework{
	identifier.LanguageJavaScript: FrameworkJest,
	identifier.LanguageTypeScript: FrameworkJest,
	identifier.LanguagePython:     FrameworkPytest,
	identifier.LanguageJava:       FrameworkJUnit,
	identifier.LanguageKotlin:     FrameworkJUnit,
	identifier.LanguageGo:         FrameworkGoTesting,
	identifier.LanguageCSharp:     FrameworkXUnit,
	identifier.LanguageRuby:       FrameworkRSpec,
	identifier.LanguagePHP:        FrameworkPHPUnit,
	identifier.LanguageC:          FrameworkGoogleTest,
	identifier.LanguageCPP:        FrameworkGoogleTest,
	identifier.LanguageSwift:      FrameworkXCTest,
}

// Frameworks that can test a language, default first
var frameworkFamilies = map[identifier.Language][]Framework{
	identifier.LanguageJavaScript: {FrameworkJest, FrameworkVitest, FrameworkMocha},
	identifier.LanguageTypeScript: {FrameworkJest, FrameworkVitest, FrameworkMocha},
	identifier.LanguageCSharp:     {FrameworkXUnit, FrameworkNUnit},
}

var runCommands = map[Framework]string{
	FrameworkJest:       "npm test",
	FrameworkVitest:     "npx vitest run",
	FrameworkMocha:      "npx mocha",
	FrameworkPytest:     "pytest",
	FrameworkJUnit:      "mvn test",
	FrameworkGoTesting:  "go test ./...",
	FrameworkXUnit:      "dotnet test",
	FrameworkNUnit:      "dotnet test",
	FrameworkRSpec:      "bundle exec rspec",
	FrameworkPHPUnit:    "vendor/bin/phpunit",
	FrameworkGoogleTest: "ctest",
	FrameworkXCTest:     "swift test",
}

func (f Framework) String() string {
	return string(f)
}

func (f Framework) Known() bool {
	_, ok := runCommands[f]
	return ok
}

// RunCommand is the conventional command that runs a suite written with f.
func (f Framework) RunCommand() string {
	if cmd, ok := runCommands[f]; ok {
		return cmd
	}
	return runCommands[FallbackFramework]
}

func DefaultFramework(language string) Framework {
	if f, ok := defaultFrameworks[identifier.Language(strings.ToLower(language))]; ok {
		return f
	}
	return FallbackFramework
}

// Supports reports whether f can test language. Languages without a default
// accept any known framework.
func (f Framework) Supports(language string) bool {
	if !f.Known() {
		return false
	}
	lang := identifier.Language(strings.ToLower(language))
	if family, ok := frameworkFamilies[lang]; ok {
		return slices.Contains(family, f)
	}
	if def, ok := defaultFrameworks[lang]; ok {
		return f == def
	}
	return true
}

// ResolveFramework returns preferred when it is a known framework for language
// and the language default otherwise.
func ResolveFramework(language string, preferred string) Framework {
	f := Framework(strings.ToLower(strings.TrimSpace(preferred)))
	if f.Supports(language) {
		return f
	}
	return DefaultFramework(language)
}

var jsExtensions = map[string]bool{"js": true, "jsx": true, "ts": true, "tsx": true}

// TestFilename derives the test file name for sourcePath by replacing its
// extension with the naming convention of framework.
func TestFilename(sourcePath string, framework Framework, language string) string {
	base := path.Base(sourcePath)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" || name == "." || name == "/" {
		name = "generated"
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	if !framework.Known() {
		framework = DefaultFramework(language)
	}

	switch framework {
	case FrameworkJest, FrameworkVitest, FrameworkMocha:
		if !jsExtensions[ext] {
			ext = "js"
		}
		return name + ".test." + ext
	case FrameworkPytest:
		return name + "_test.py"
	case FrameworkJUnit:
		if ext == "kt" || identifier.Language(language) == identifier.LanguageKotlin {
			return name + "Test.kt"
		}
		return name + "Test.java"
	case FrameworkGoTesting:
		return name + "_test.go"
	case FrameworkXUnit, FrameworkNUnit:
		return name + "Tests.cs"
	case FrameworkRSpec:
		return name + "_spec.rb"
	case FrameworkPHPUnit:
		return name + "Test.php"
	case FrameworkGoogleTest:
		return name + "_test.cpp"
	case FrameworkXCTest:
		return name + "Tests.swift"
	default:
		return name + ".test.js"
	}
}
