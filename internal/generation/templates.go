package generation

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"regexp"
	"strings"
	"text/template"
	"unicode"

	"github.com/testsmith/testsmith/internal/identifier"
	"github.com/testsmith/testsmith/internal/types"
)

//go:embed templates
var templateFS embed.FS

var templates = template.Must(
	template.New("generation").
		Funcs(template.FuncMap{
			"esc":   escapeSingleQuoted,
			"line":  singleLine,
			"upper": upperCamel,
			"lower": lowerCamel,
			"snake": snakeCase,
		}).
		ParseFS(templateFS, "templates/skeleton/*.tmpl", "templates/prompt/*.tmpl"),
)

var skeletonTemplates = map[Framework]string{
	FrameworkJest:       "jest.tmpl",
	FrameworkVitest:     "jest.tmpl",
	FrameworkMocha:      "jest.tmpl",
	FrameworkPytest:     "pytest.tmpl",
	FrameworkJUnit:      "junit.tmpl",
	FrameworkGoTesting:  "go.tmpl",
	FrameworkXUnit:      "xunit.tmpl",
	FrameworkNUnit:      "xunit.tmpl",
	FrameworkRSpec:      "rspec.tmpl",
	FrameworkPHPUnit:    "phpunit.tmpl",
	FrameworkGoogleTest: "googletest.tmpl",
	FrameworkXCTest:     "xctest.tmpl",
}

// Declarations worth naming in a placeholder test, per language
var functionPatterns = map[identifier.Language][]*regexp.Regexp{
	identifier.LanguageJavaScript: jsPatterns,
	identifier.LanguageTypeScript: jsPatterns,
	identifier.LanguagePython:     {regexp.MustCompile(`(?m)^def\s+([A-Za-z][A-Za-z0-9_]*)\s*\(`)},
	identifier.LanguageGo:         {regexp.MustCompile(`(?m)^func\s+([A-Za-z][A-Za-z0-9_]*)\s*[\[(]`)},
	identifier.LanguageJava:       jvmPatterns,
	identifier.LanguageCSharp:     jvmPatterns,
	identifier.LanguageKotlin:     {regexp.MustCompile(`(?m)^\s*(?:public\s+)?fun\s+([A-Za-z][A-Za-z0-9_]*)\s*\(`)},
	identifier.LanguageRuby:       {regexp.MustCompile(`(?m)^\s*def\s+(?:self\.)?([a-z][A-Za-z0-9_]*)`)},
	identifier.LanguagePHP:        {regexp.MustCompile(`function\s+([A-Za-z][A-Za-z0-9_]*)\s*\(`)},
	identifier.LanguageSwift:      {regexp.MustCompile(`func\s+([A-Za-z][A-Za-z0-9_]*)\s*[<(]`)},
}

var (
	jsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`),
		regexp.MustCompile(
			`(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s*)?(?:\([^)]*\)|[A-Za-z_$][A-Za-z0-9_$]*)\s*=>`,
		),
	}
	jvmPatterns = []*regexp.Regexp{
		regexp.MustCompile(
			`(?m)^\s*(?:public|protected|internal)\s+(?:static\s+)?(?:async\s+)?[A-Za-z_][A-Za-z0-9_<>,\[\]]*\s+([A-Za-z][A-Za-z0-9_]*)\s*\(`,
		),
	}
)

const maxSkeletonFunctions = 5

type skeletonData struct {
	Summary types.Summary
	// Repository path of the file under test
	Source string
	// Import path of Source relative to the tests directory, extension stripped
	Module string
	// Dotted module name, passed to importlib as a string so any file name works
	PyModule  string
	ClassName string
	Functions []skeletonFunction
}

// skeletonFunction carries a discovered declaration and the test names derived
// from it. Each derived name is unique within one skeleton.
type skeletonFunction struct {
	Name  string
	Upper string
	Lower string
	Snake string
}

// uniqueNames hands out names, suffixing repeats with 2, 3...
type uniqueNames struct {
	seen map[string]struct{}
	sep  string
}

func (u *uniqueNames) take(name string) string {
	if u.seen == nil {
		u.seen = map[string]struct{}{}
	}
	candidate := name
	for i := 2; ; i++ {
		if _, ok := u.seen[candidate]; !ok {
			break
		}
		candidate = fmt.Sprintf("%s%s%d", name, u.sep, i)
	}
	u.seen[candidate] = struct{}{}
	return candidate
}

func skeletonFunctions(names []string) []skeletonFunction {
	upper := uniqueNames{}
	lower := uniqueNames{}
	snake := uniqueNames{sep: "_"}

	out := make([]skeletonFunction, 0, len(names))
	for _, name := range names {
		out = append(out, skeletonFunction{
			Name:  name,
			Upper: upper.take(upperCamel(name)),
			Lower: lower.take(lowerCamel(name)),
			Snake: snake.take(snakeCase(name)),
		})
	}
	return out
}

// identifierSafe maps s onto a name valid in every skeleton language: letters,
// digits and underscores, never starting with a digit.
func identifierSafe(s string) string {
	out := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
	if out == "" {
		return "Generated"
	}
	if unicode.IsDigit([]rune(out)[0]) {
		return "_" + out
	}
	return out
}

func discoverFunctions(language string, content string) []string {
	seen := map[string]struct{}{}
	var found []string
	for _, pattern := range functionPatterns[identifier.Language(language)] {
		for _, m := range pattern.FindAllStringSubmatch(content, -1) {
			name := m[1]
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			found = append(found, name)
			if len(found) == maxSkeletonFunctions {
				return found
			}
		}
	}
	return found
}

func renderSkeleton(
	file types.FileSnapshot,
	summary types.Summary,
	framework Framework,
	filename string,
) (string, error) {
	name, ok := skeletonTemplates[framework]
	if !ok {
		name = skeletonTemplates[FallbackFramework]
	}
	if framework == FrameworkJUnit && strings.HasSuffix(filename, ".kt") {
		name = "kotlin.tmpl"
	}

	modulePath := strings.TrimSuffix(file.Path, path.Ext(file.Path))
	data := skeletonData{
		Summary:   summary,
		Source:    file.Path,
		Module:    "../" + strings.TrimPrefix(modulePath, "/"),
		PyModule:  strings.ReplaceAll(strings.Trim(modulePath, "/"), "/", "."),
		ClassName: identifierSafe(strings.TrimSuffix(filename, path.Ext(filename))),
		Functions: skeletonFunctions(discoverFunctions(file.Language, file.Content)),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}

	return buf.String(), nil
}

type promptData struct {
	Language  string
	Framework Framework
	Filename  string
	Summary   types.Summary
	Files     []types.FileSnapshot
}

func renderPrompt(name string, data promptData, maxPreview int) (string, error) {
	previews := make([]types.FileSnapshot, len(data.Files))
	for i, f := range data.Files {
		previews[i] = f
		previews[i].Content = preview(f.Content, maxPreview)
	}
	data.Files = previews

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}

	return buf.String(), nil
}

func preview(content string, limit int) string {
	if limit <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "\n..."
}

func escapeSingleQuoted(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", " ", "\r", "").Replace(s)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func upperCamel(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		r := []rune(w)
		b.WriteRune(unicode.ToUpper(r[0]))
		b.WriteString(string(r[1:]))
	}
	out := b.String()
	if out == "" {
		return "Generated"
	}
	if unicode.IsDigit([]rune(out)[0]) {
		return "Case" + out
	}
	return out
}

func lowerCamel(s string) string {
	r := []rune(upperCamel(s))
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func snakeCase(s string) string {
	var parts []string
	for _, w := range words(s) {
		var b strings.Builder
		for i, r := range w {
			if unicode.IsUpper(r) && i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		}
		parts = append(parts, b.String())
	}
	if len(parts) == 0 {
		return "generated"
	}
	return strings.Join(parts, "_")
}
