package ci

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Contributor is one author's aggregated line contribution.
type Contributor struct {
	Name  string `json:"name"`
	ORCID string `json:"orcid,omitempty"`
	Lines int    `json:"-"`
}

// ParseContributors reads a contributors file: one tab-separated record per
// line of name, ORCID (may be empty), and contributed line count. Blank
// lines and # comments are skipped. Records for the same name are merged by
// summing line counts; the first non-empty ORCID wins.
func ParseContributors(r io.Reader) ([]Contributor, error) {
	byName := make(map[string]*Contributor)
	var order []string

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("contributors line %d: expected name<TAB>orcid<TAB>lines, got %d fields", lineNo, len(fields))
		}

		name := strings.TrimSpace(fields[0])
		if name == "" {
			return nil, fmt.Errorf("contributors line %d: name cannot be empty", lineNo)
		}

		lines, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil || lines < 0 {
			return nil, fmt.Errorf("contributors line %d: bad line count %q", lineNo, fields[2])
		}

		c, ok := byName[name]
		if !ok {
			c = &Contributor{Name: name}
			byName[name] = c
			order = append(order, name)
		}
		c.Lines += lines
		if c.ORCID == "" {
			c.ORCID = strings.TrimSpace(fields[1])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read contributors file: %w", err)
	}

	contributors := make([]Contributor, 0, len(order))
	for _, name := range order {
		contributors = append(contributors, *byName[name])
	}

	// Largest contribution first; ties break alphabetically so the
	// citation file is stable between runs.
	sort.SliceStable(contributors, func(i, j int) bool {
		if contributors[i].Lines != contributors[j].Lines {
			return contributors[i].Lines > contributors[j].Lines
		}
		return contributors[i].Name < contributors[j].Name
	})

	return contributors, nil
}

// UpdateZenodo rewrites the creators block of the .zenodo.json citation file
// at path from the given contributors, preserving every other field. A
// missing file starts from an empty document.
func UpdateZenodo(path string, contributors []Contributor) error {
	doc := map[string]interface{}{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse existing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	creators := make([]map[string]string, 0, len(contributors))
	for _, c := range contributors {
		creator := map[string]string{"name": c.Name}
		if c.ORCID != "" {
			creator["orcid"] = c.ORCID
		}
		creators = append(creators, creator)
	}
	doc["creators"] = creators

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	out = append(out, '\n')

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
