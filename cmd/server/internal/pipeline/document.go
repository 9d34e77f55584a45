package pipeline

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/testsmith/testsmith/internal/generation"
	"github.com/testsmith/testsmith/internal/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var documents = template.Must(
	template.New("").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

type (
	documentFile struct {
		Path      string
		Framework string
		Language  string
	}

	runCommand struct {
		Framework string
		Command   string
	}

	documentData struct {
		Repository string
		Files      []documentFile
		Failed     []string
		Frameworks []string
		Languages  []string
		Commands   []runCommand
	}
)

func newDocumentData(repo types.Repository, committed []committedFile, failed []string) documentData {
	data := documentData{
		Repository: repo.FullNameOrDefault(),
		Files:      make([]documentFile, len(committed)),
		Failed:     failed,
	}

	seenFramework := map[string]struct{}{}
	seenLanguage := map[string]struct{}{}
	for i, c := range committed {
		a := c.Artifact
		data.Files[i] = documentFile{Path: c.Path, Framework: a.Framework, Language: a.Language}

		if _, ok := seenFramework[a.Framework]; !ok && a.Framework != "" {
			seenFramework[a.Framework] = struct{}{}
			data.Frameworks = append(data.Frameworks, a.Framework)

			command := a.RunCommand
			if command == "" {
				command = generation.Framework(a.Framework).RunCommand()
			}
			if command != "" {
				data.Commands = append(data.Commands, runCommand{Framework: a.Framework, Command: command})
			}
		}
		if _, ok := seenLanguage[a.Language]; !ok && a.Language != "" {
			seenLanguage[a.Language] = struct{}{}
			data.Languages = append(data.Languages, a.Language)
		}
	}

	return data
}

func render(name string, data documentData) (string, error) {
	var buf bytes.Buffer
	if err := documents.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderReadme(repo types.Repository, committed []committedFile) (string, error) {
	return render("readme.md.tmpl", newDocumentData(repo, committed, nil))
}

func renderPullRequestBody(repo types.Repository, committed []committedFile, failed []string) (string, error) {
	return render("pull_request.md.tmpl", newDocumentData(repo, committed, failed))
}

func pullRequestTitle(count int) string {
	if count == 1 {
		return "Add generated tests (1 test)"
	}
	return fmt.Sprintf("Add generated tests (%d tests)", count)
}

// uniqueFilenames returns the artifact filenames, inserting _2, _3 before the
// first dot after the first character of any name already used earlier in the batch.
func uniqueFilenames(artifacts []types.CodeArtifact) []string {
	names := make([]string, len(artifacts))
	used := make(map[string]struct{}, len(artifacts))
	for i, a := range artifacts {
		name := a.Filename
		// a leading dot belongs to the stem
		stem, rest := name, ""
		if len(name) > 1 {
			if dot := strings.Index(name[1:], "."); dot >= 0 {
				stem, rest = name[:dot+1], name[dot+1:]
			}
		}

		candidate := name
		for n := 2; ; n++ {
			if _, ok := used[candidate]; !ok {
				break
			}
			candidate = fmt.Sprintf("%s_%d%s", stem, n, rest)
		}

		used[candidate] = struct{}{}
		names[i] = candidate
	}
	return names
}
